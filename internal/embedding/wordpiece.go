package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxWordPieceChars = 100

// WordPieceTokenizer implements the uncased BERT tokenizer used by MiniLM sentence models:
// lowercase, strip accents, split on whitespace and punctuation, then greedy longest-match
// WordPiece against a vocabulary.
type WordPieceTokenizer struct {
	vocab map[string]int64
	unkID int64
	clsID int64
	sepID int64
}

// LoadWordPieceTokenizer reads a vocab.txt file (one token per line, line number is the ID).
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPieceTokenizer(tokens)
}

// NewWordPieceTokenizer builds a tokenizer from an ordered vocabulary. The vocabulary must
// contain [UNK], [CLS], and [SEP].
func NewWordPieceTokenizer(tokens []string) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, tok := range tokens {
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = int64(i)
		}
	}
	t := &WordPieceTokenizer{vocab: vocab}
	for name, dst := range map[string]*int64{"[UNK]": &t.unkID, "[CLS]": &t.clsID, "[SEP]": &t.sepID} {
		id, ok := vocab[name]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", name)
		}
		*dst = id
	}
	return t, nil
}

// Tokenize produces [CLS] pieces... [SEP] padded to maxTokens. Pieces beyond maxTokens-2 are
// dropped.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	ids := t.Encode(text)
	if room := max(maxTokens-2, 0); len(ids) > room {
		ids = ids[:room]
	}
	inputIDs[0] = t.clsID
	attentionMask[0] = 1
	pos := 1
	for _, id := range ids {
		inputIDs[pos] = id
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = t.sepID
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Encode returns the WordPiece IDs for text without special tokens or padding.
func (t *WordPieceTokenizer) Encode(text string) []int64 {
	var ids []int64
	for _, word := range basicTokenize(text) {
		ids = append(ids, t.wordPieces(word)...)
	}
	return ids
}

func (t *WordPieceTokenizer) wordPieces(word string) []int64 {
	chars := []rune(word)
	if len(chars) > maxWordPieceChars {
		return []int64{t.unkID}
	}
	var pieces []int64
	for start := 0; start < len(chars); {
		end := len(chars)
		found := int64(-1)
		for ; start < end; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{t.unkID}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// stripAccents returns a fresh chain per call; a transform.Chain keeps state.
func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// basicTokenize lowercases, strips accents, and splits on whitespace and punctuation.
func basicTokenize(text string) []string {
	text = strings.ToLower(text)
	if stripped, _, err := transform.String(stripAccents(), text); err == nil {
		text = stripped
	}
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
