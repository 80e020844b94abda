package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/config"
	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/keyword"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/recommend"
	"github.com/hyperjump/certiquest/internal/storage"
)

const testDims = embedding.DefaultDimensions

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

type testEnv struct {
	srv     *Server
	catalog *catalog.Service
	handler http.Handler
}

type modelState int

const (
	modelReady modelState = iota
	modelLoading
	modelFailed
)

func newTestEnv(t *testing.T, state modelState, watch WatchService) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	cat := catalog.NewService(store, store, catalog.WithIndex(idx))

	var loader embedding.Loader
	if state == modelFailed {
		loader = func(context.Context) (embedding.Model, error) {
			return nil, errors.New("model file missing")
		}
	} else {
		loader = embedding.StaticLoader(embedding.NewMockModel(testDims))
	}
	lc := embedding.NewLifecycle(loader)
	if state != modelLoading {
		_ = lc.Initialize(context.Background())
	}
	emb := embedding.NewTextEmbedder(lc, testDims)
	rec := recommend.NewService(cat, cat, emb, recommend.Config{TopK: 10, Workers: 2}, nil)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = ""
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = testDims

	srv := NewServer(cat, rec, lc, cfg, zap.NewNop(), watch, "")
	return &testEnv{srv: srv, catalog: cat, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func (e *testEnv) addCert(t *testing.T, title, description, domain string) *models.Certification {
	t.Helper()
	cost := 0.0
	cert, err := e.catalog.AddCertification(context.Background(), &models.CertificationInput{
		Title:       title,
		Provider:    "Provider",
		Link:        "https://example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Domain:      domain,
		Cost:        &cost,
		Deadline:    "2025-12-31",
		Description: description,
	})
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func (e *testEnv) addUser(t *testing.T, email, role string, interests ...string) *models.User {
	t.Helper()
	user, err := e.catalog.CreateUser(context.Background(), &models.UserInput{
		Email:     email,
		FullName:  "Test User",
		Role:      role,
		Interests: interests,
	})
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func validCertBody() map[string]interface{} {
	return map[string]interface{}{
		"title":       "AWS Solutions Architect",
		"provider":    "Amazon",
		"link":        "https://aws.amazon.com/certification",
		"domain":      "Cloud Computing",
		"cost":        150,
		"deadline":    "2025-06-30",
		"description": "Design distributed systems on AWS",
	}
}

func TestHandleRoot(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	w := env.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := w.Body.String(); got != "CertiQuest API is running" {
		t.Errorf("body: got %q", got)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["status"] != "ok" {
		t.Errorf("status field: got %q", out["status"])
	}
}

func TestHandleRecommendations(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	env.addCert(t, "Wine Tasting", "Learn to taste wine", "Hospitality")
	match := env.addCert(t, "Cloud Practitioner", "Cloud computing fundamentals", "Cloud Computing")
	student := env.addUser(t, "student@uni.edu", "Student", "cloud computing")

	for _, path := range []string{"/recommendations/", "/api/recommendations/"} {
		w := env.do(t, http.MethodGet, path+student.ID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", path, w.Code, w.Body.String())
		}
		var out models.RecommendationResponse
		decodeBody(t, w, &out)
		if len(out.SuggestedCertifications) != 2 {
			t.Fatalf("%s: expected 2 suggestions, got %d", path, len(out.SuggestedCertifications))
		}
		if out.SuggestedCertifications[0].ID != match.ID {
			t.Errorf("%s: expected %s first, got %s", path, match.Title, out.SuggestedCertifications[0].Title)
		}
	}
}

func TestHandleRecommendations_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	student := env.addUser(t, "student@uni.edu", "Student", "security")
	w := env.do(t, http.MethodGet, "/recommendations/"+student.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"suggestedCertifications":[]`) {
		t.Errorf("expected an empty array, got %s", w.Body.String())
	}
}

func TestHandleRecommendations_WithScores(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	env.addCert(t, "Cloud Practitioner", "Cloud computing fundamentals", "Cloud Computing")
	student := env.addUser(t, "student@uni.edu", "Student", "cloud computing")

	w := env.do(t, http.MethodGet, "/recommendations/"+student.ID+"?scores=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.ExplainedRecommendation
	decodeBody(t, w, &out)
	if out.StudentID != student.ID || out.QueryText != "cloud computing" {
		t.Errorf("unexpected header: %+v", out)
	}
	if len(out.Results) != 1 || out.Results[0].Score <= 0 || out.Results[0].Rank != 1 {
		t.Errorf("unexpected results: %+v", out.Results)
	}
}

func TestHandleRecommendations_UnknownStudent(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	w := env.do(t, http.MethodGet, "/recommendations/nobody", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleRecommendations_ModelLoading(t *testing.T) {
	env := newTestEnv(t, modelLoading, nil)
	student := env.addUser(t, "student@uni.edu", "Student", "cloud")
	w := env.do(t, http.MethodGet, "/recommendations/"+student.ID, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["message"] == "" {
		t.Error("expected a message")
	}
}

func TestHandleRecommendations_ModelFailed(t *testing.T) {
	env := newTestEnv(t, modelFailed, nil)
	student := env.addUser(t, "student@uni.edu", "Student", "cloud")
	w := env.do(t, http.MethodGet, "/recommendations/"+student.ID, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["message"] == "" || !strings.Contains(out["error"], "model file missing") {
		t.Errorf("unexpected body: %v", out)
	}
}

func TestHandleAddCertification(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)

	w := env.do(t, http.MethodPost, "/api/certifications/add", validCertBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Message       string               `json:"message"`
		Success       bool                 `json:"success"`
		Certification models.Certification `json:"certification"`
	}
	decodeBody(t, w, &out)
	if out.Message != "Certification added successfully" || !out.Success {
		t.Errorf("unexpected body: %+v", out)
	}
	if out.Certification.ID == "" || out.Certification.Credibility != models.CredibilityNew {
		t.Errorf("unexpected certification: %+v", out.Certification)
	}

	w = env.do(t, http.MethodPost, "/api/certifications/add", validCertBody())
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Certification already exists") {
		t.Errorf("duplicate: got %d %s", w.Code, w.Body.String())
	}
}

func TestHandleAddCertification_MissingFields(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	body := validCertBody()
	delete(body, "deadline")
	w := env.do(t, http.MethodPost, "/api/certifications/add", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["message"] != "Missing required fields" {
		t.Errorf("message: got %q", out["message"])
	}

	w = env.do(t, http.MethodPost, "/api/certifications/add", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %d", w.Code)
	}
}

func TestHandleListAndGetCertifications(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	cert := env.addCert(t, "CKA", "Kubernetes administration", "DevOps")

	w := env.do(t, http.MethodGet, "/api/certifications", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var list struct {
		Certifications []models.Certification `json:"certifications"`
	}
	decodeBody(t, w, &list)
	if len(list.Certifications) != 1 || list.Certifications[0].ID != cert.ID {
		t.Errorf("list: got %+v", list.Certifications)
	}

	w = env.do(t, http.MethodGet, "/api/certifications/"+cert.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/certifications/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing: got %d", w.Code)
	}
}

func TestHandleSearchCertifications(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	env.addCert(t, "Certified Kubernetes Administrator", "Run production clusters", "DevOps")
	env.addCert(t, "Wine Tasting", "Learn to taste wine", "Hospitality")

	w := env.do(t, http.MethodGet, "/api/certifications/search?q=kubernetes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Certifications []models.Certification `json:"certifications"`
		Total          int                    `json:"total"`
	}
	decodeBody(t, w, &out)
	if out.Total != 1 || out.Certifications[0].Title != "Certified Kubernetes Administrator" {
		t.Errorf("unexpected results: %+v", out)
	}

	if w := env.do(t, http.MethodGet, "/api/certifications/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/certifications/search?q=x&limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", w.Code)
	}
}

func TestHandleAddReview(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	cert := env.addCert(t, "CKA", "Kubernetes administration", "DevOps")

	for _, rating := range []float64{4, 5} {
		w := env.do(t, http.MethodPost, "/api/certifications/review", map[string]interface{}{
			"certificationId": cert.ID, "user": "u1", "rating": rating, "text": "good",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
		}
	}
	got, err := env.catalog.GetCertification(context.Background(), cert.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Reviews != 2 || got.Rating != 4.5 {
		t.Errorf("reviews=%d rating=%v, want 2 and 4.5", got.Reviews, got.Rating)
	}

	w := env.do(t, http.MethodPost, "/api/certifications/review", map[string]interface{}{"certificationId": cert.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/certifications/review", map[string]interface{}{
		"certificationId": "missing", "user": "u1", "rating": 3,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown cert: got %d", w.Code)
	}
}

func TestHandleVerify(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	cert := env.addCert(t, "CKA", "Kubernetes administration", "DevOps")
	faculty := env.addUser(t, "prof@uni.edu", "Faculty")
	student := env.addUser(t, "student@uni.edu", "Student")

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing", map[string]interface{}{"certificationId": cert.ID}, http.StatusBadRequest},
		{"student", map[string]interface{}{"certificationId": cert.ID, "facultyId": student.ID}, http.StatusForbidden},
		{"unknown user", map[string]interface{}{"certificationId": cert.ID, "facultyId": "ghost"}, http.StatusForbidden},
		{"unknown cert", map[string]interface{}{"certificationId": "missing", "facultyId": faculty.ID}, http.StatusNotFound},
		{"ok", map[string]interface{}{"certificationId": cert.ID, "facultyId": faculty.ID}, http.StatusOK},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPost, "/api/certifications/verify", tt.body)
		if w.Code != tt.want {
			t.Errorf("%s: got %d, want %d (%s)", tt.name, w.Code, tt.want, w.Body.String())
		}
	}
	got, _ := env.catalog.GetCertification(context.Background(), cert.ID)
	if !got.FacultyVerified {
		t.Error("certification should be faculty verified")
	}
}

func TestHandleUsers(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)

	w := env.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"email": "ada@uni.edu", "fullName": "Ada", "role": "student", "interests": []string{"AI"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		User models.User `json:"user"`
	}
	decodeBody(t, w, &created)
	if created.User.Role != models.RoleStudent {
		t.Errorf("role: got %q", created.User.Role)
	}

	w = env.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"email": "ADA@uni.edu", "fullName": "Ada again", "role": "Student",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate email: got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/users", nil)
	var list struct {
		Users []models.User `json:"users"`
	}
	decodeBody(t, w, &list)
	if len(list.Users) != 1 {
		t.Errorf("list: got %d users", len(list.Users))
	}

	w = env.do(t, http.MethodPut, "/api/users/"+created.User.ID+"/interests", map[string]interface{}{
		"interests": []string{"Security", " ", "Cloud"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("interests: got %d", w.Code)
	}
	user, _ := env.catalog.GetUser(context.Background(), created.User.ID)
	if len(user.Interests) != 2 || user.Interests[0] != "Security" {
		t.Errorf("interests: got %v", user.Interests)
	}

	w = env.do(t, http.MethodDelete, "/api/users/"+created.User.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "User deleted successfully") {
		t.Errorf("delete: got %d %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodDelete, "/api/users/"+created.User.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again: got %d", w.Code)
	}
}

func TestHandleToggleBookmark(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	user := env.addUser(t, "student@uni.edu", "Student")
	path := "/api/users/" + user.ID + "/bookmark"

	w := env.do(t, http.MethodPut, path, map[string]string{"certificationId": "c1"})
	if w.Code != http.StatusOK {
		t.Fatalf("add: got %d", w.Code)
	}
	var out struct {
		Message   string   `json:"message"`
		Bookmarks []string `json:"bookmarks"`
	}
	decodeBody(t, w, &out)
	if out.Message != "Bookmark updated successfully" || len(out.Bookmarks) != 1 {
		t.Errorf("add: got %+v", out)
	}

	w = env.do(t, http.MethodPut, path, map[string]string{"certificationId": "c1"})
	decodeBody(t, w, &out)
	if len(out.Bookmarks) != 0 {
		t.Errorf("toggle off: got %v", out.Bookmarks)
	}

	if w := env.do(t, http.MethodPut, path, map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing id: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/api/users/ghost/bookmark", map[string]string{"certificationId": "c1"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown user: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, modelFailed, nil)
	env.addCert(t, "CKA", "Kubernetes administration", "DevOps")

	w := env.do(t, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Certifications int64 `json:"certifications"`
		IndexedDocs    int64 `json:"indexed_docs"`
		Embedder       struct {
			State string `json:"state"`
			Error string `json:"error"`
		} `json:"embedder"`
		DiskUsage int64 `json:"disk_usage_bytes"`
	}
	decodeBody(t, w, &out)
	if out.Certifications != 1 || out.IndexedDocs != 1 {
		t.Errorf("counts: %+v", out)
	}
	if out.Embedder.State != "failed" || out.Embedder.Error == "" {
		t.Errorf("embedder: %+v", out.Embedder)
	}
	if out.DiskUsage <= 0 {
		t.Errorf("disk usage: got %d", out.DiskUsage)
	}
}

func TestHandleImportDirectories(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/srv/seeds"}}
	env := newTestEnv(t, modelReady, mock)

	w := env.do(t, http.MethodGet, "/api/import/directories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	decodeBody(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/srv/seeds" {
		t.Errorf("directories: got %v", out.Directories)
	}

	dir := t.TempDir()
	w = env.do(t, http.MethodPost, "/api/import/directories", map[string]string{"path": dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d, body %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 2 {
		t.Errorf("expected 2 directories, got %v", mock.dirs)
	}

	w = env.do(t, http.MethodPost, "/api/import/directories", map[string]string{"path": filepath.Join(dir, "nope")})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/import/directories", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty path: got %d", w.Code)
	}
}

func TestHandleImportDirectories_NotEnabled(t *testing.T) {
	env := newTestEnv(t, modelReady, nil)
	w := env.do(t, http.MethodGet, "/api/import/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}
