package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/storage"
)

type memoryUsers map[string]*models.User

func (m memoryUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
}

type memoryCatalog []*models.Certification

func (m memoryCatalog) ListCertifications(context.Context) ([]*models.Certification, error) {
	return m, nil
}

func unrelatedCatalog() memoryCatalog {
	rows := [][3]string{
		{"Pottery Basics", "Throwing bowls on a wheel", "Ceramics"},
		{"Wine Tasting", "Sommelier palate training", "Hospitality"},
		{"Yoga Instructor", "Breathing and posture", "Fitness"},
		{"Forklift Operator", "Warehouse safety handling", "Logistics"},
		{"Piano Grade Five", "Scales arpeggios sight reading", "Music"},
		{"Beekeeping", "Hive management and honey", "Agriculture"},
		{"Scuba Diver", "Open water diving", "Recreation"},
		{"Pastry Chef", "Laminated dough and croissants", "Culinary"},
		{"Calligraphy", "Brush lettering strokes", "Arts"},
	}
	cat := make(memoryCatalog, len(rows))
	for i, r := range rows {
		cat[i] = &models.Certification{ID: fmt.Sprintf("c%d", i), Title: r[0], Description: r[1], Domain: r[2]}
	}
	return cat
}

func readyEmbedder(t *testing.T) *embedding.TextEmbedder {
	t.Helper()
	lc := embedding.NewLifecycle(embedding.StaticLoader(embedding.NewMockModel(embedding.DefaultDimensions)))
	require.NoError(t, lc.Initialize(context.Background()))
	return embedding.NewTextEmbedder(lc, embedding.DefaultDimensions)
}

func ids(certs []*models.Certification) []string {
	out := make([]string, len(certs))
	for i, c := range certs {
		out[i] = c.ID
	}
	return out
}

func TestRecommend_MatchingDomainRanksFirst(t *testing.T) {
	catalog := append(unrelatedCatalog(), &models.Certification{
		ID: "match", Title: "X", Description: "Y", Domain: "Cloud Computing",
	})
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Cloud Computing"}}}
	svc := NewService(users, catalog, readyEmbedder(t), Config{Workers: 3}, nil)

	got, err := svc.Recommend(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "match", got[0].ID)
}

func TestRecommend_EmptyInterestsKeepCatalogOrder(t *testing.T) {
	catalog := unrelatedCatalog()
	users := memoryUsers{"s1": {ID: "s1", Interests: nil}}
	svc := NewService(users, catalog, readyEmbedder(t), Config{}, nil)

	got, err := svc.Recommend(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, ids(catalog), ids(got))

	explained, err := svc.Explain(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "", explained.QueryText)
	for _, r := range explained.Results {
		assert.Zero(t, r.Score)
	}
}

func TestRecommend_AtMostTopK(t *testing.T) {
	var catalog memoryCatalog
	for i := 0; i < 25; i++ {
		catalog = append(catalog, &models.Certification{ID: fmt.Sprintf("c%02d", i), Title: "Cloud", Domain: "Cloud"})
	}
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Cloud"}}}

	got, err := NewService(users, catalog, readyEmbedder(t), Config{}, nil).Recommend(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, got, DefaultTopK)
	assert.Equal(t, "c00", got[0].ID, "identical scores keep catalog order")

	got, err = NewService(users, catalog[:4], readyEmbedder(t), Config{}, nil).Recommend(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = NewService(users, memoryCatalog(nil), readyEmbedder(t), Config{}, nil).Recommend(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type nullUsers struct{}

func (nullUsers) GetUser(context.Context, string) (*models.User, error) { return nil, nil }

func TestRecommend_NilUserIsNotFound(t *testing.T) {
	svc := NewService(nullUsers{}, unrelatedCatalog(), readyEmbedder(t), Config{}, nil)

	got, err := svc.Recommend(context.Background(), "ghost")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Explain(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecommend_NotReady(t *testing.T) {
	model := embedding.NewMockModel(embedding.DefaultDimensions)
	lc := embedding.NewLifecycle(embedding.StaticLoader(model))
	emb := embedding.NewTextEmbedder(lc, embedding.DefaultDimensions)
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Cloud"}}}
	svc := NewService(users, unrelatedCatalog(), emb, Config{}, nil)

	got, err := svc.Recommend(context.Background(), "s1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, embedding.ErrNotReady)
	assert.Zero(t, model.Calls())

	// Readiness is checked before the student lookup.
	_, err = svc.Recommend(context.Background(), "unknown-id")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestRecommend_InitFailure(t *testing.T) {
	boom := errors.New("model.onnx: no such file")
	lc := embedding.NewLifecycle(func(context.Context) (embedding.Model, error) { return nil, boom })
	_ = lc.Initialize(context.Background())
	emb := embedding.NewTextEmbedder(lc, embedding.DefaultDimensions)
	svc := NewService(memoryUsers{}, unrelatedCatalog(), emb, Config{}, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Recommend(context.Background(), "s1")
		var initErr *embedding.InitError
		require.ErrorAs(t, err, &initErr)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrServiceUnavailable)
	}
}

func TestRecommend_UnknownStudent(t *testing.T) {
	svc := NewService(memoryUsers{}, unrelatedCatalog(), readyEmbedder(t), Config{}, nil)
	_, err := svc.Recommend(context.Background(), "unknown-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

// failingEmbedder fails on one specific text.
type failingEmbedder struct {
	inner  *embedding.TextEmbedder
	failOn string
	mu     sync.Mutex
	seen   int
}

func (f *failingEmbedder) Ready() error { return f.inner.Ready() }

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.seen++
	f.mu.Unlock()
	if text == f.failOn {
		return nil, errors.New("inference failed")
	}
	return f.inner.Embed(ctx, text)
}

func TestRecommend_CandidateFailureFailsWholeRequest(t *testing.T) {
	catalog := unrelatedCatalog()
	emb := &failingEmbedder{inner: readyEmbedder(t), failOn: catalog[4].EmbeddingText()}
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Music"}}}
	svc := NewService(users, catalog, emb, Config{Workers: 2}, nil)

	got, err := svc.Recommend(context.Background(), "s1")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c4")
}

// slowEmbedder blocks until the context ends.
type slowEmbedder struct{}

func (slowEmbedder) Ready() error { return nil }

func (slowEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRecommend_Timeout(t *testing.T) {
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Cloud"}}}
	svc := NewService(users, unrelatedCatalog(), slowEmbedder{}, Config{Timeout: 20 * time.Millisecond}, nil)
	_, err := svc.Recommend(context.Background(), "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExplain(t *testing.T) {
	catalog := append(unrelatedCatalog(), &models.Certification{
		ID: "match", Title: "X", Description: "Y", Domain: "Cloud Computing",
	})
	users := memoryUsers{"s1": {ID: "s1", Interests: []string{"Cloud Computing"}}}
	svc := NewService(users, catalog, readyEmbedder(t), Config{TopK: 3}, nil)

	out, err := svc.Explain(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", out.StudentID)
	assert.Equal(t, "Cloud Computing", out.QueryText)
	assert.Equal(t, 10, out.Candidates)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "match", out.Results[0].Certification.ID)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.InDelta(t, 0.7071, out.Results[0].Score, 1e-3)
	for i := 1; i < len(out.Results); i++ {
		assert.LessOrEqual(t, out.Results[i].Score, out.Results[i-1].Score)
	}
}
