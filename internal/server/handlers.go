package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/catalog"
	"github.com/hyperjump/certiquest/internal/config"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/storage"
)

const maxSearchLimit = 100

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("CertiQuest API is running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.respondServerError(w, "status", err)
		return
	}
	resp := map[string]interface{}{
		"certifications": stats.Certifications,
		"users":          stats.Users,
		"indexed_docs":   stats.IndexedDocs,
	}
	if s.model != nil {
		embedder := map[string]interface{}{"state": s.model.State().String()}
		if err := s.model.Err(); err != nil {
			embedder["error"] = err.Error()
		}
		resp["embedder"] = embedder
	}

	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"top_k":                s.config.Recommend.TopK,
		"workers":              s.config.Recommend.Workers,
		"database_path":        s.config.Storage.DatabasePath,
		"bleve_index_path":     s.config.Storage.BleveIndexPath,
	}
	paths := storage.DatabaseFiles(s.config.Storage.DatabasePath)
	if s.config.Storage.BleveIndexPath != "" {
		paths = append(paths, s.config.Storage.BleveIndexPath)
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCertifications(w http.ResponseWriter, r *http.Request) {
	certs, err := s.catalog.ListCertifications(r.Context())
	if err != nil {
		s.respondServerError(w, "list certifications", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"certifications": certs})
}

func (s *Server) handleSearchCertifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "Missing search query")
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	fuzzy, _ := strconv.ParseBool(q.Get("fuzzy"))

	s.logger.Debug("search request", zap.String("query", query), zap.Int("limit", limit), zap.Bool("fuzzy", fuzzy))
	result, err := s.catalog.Search(r.Context(), query, limit, fuzzy)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, "Missing search query")
			return
		}
		s.respondServerError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCertification(w http.ResponseWriter, r *http.Request) {
	cert, err := s.catalog.GetCertification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Certification not found")
			return
		}
		s.respondServerError(w, "get certification", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"certification": cert})
}

func (s *Server) handleAddCertification(w http.ResponseWriter, r *http.Request) {
	var input models.CertificationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if missing := input.MissingFields(); len(missing) > 0 {
		s.logger.Warn("missing required fields for certification add", zap.Strings("missing", missing))
		s.respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	cert, err := s.catalog.AddCertification(r.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrDuplicate):
			s.respondError(w, http.StatusBadRequest, "Certification already exists")
		case errors.Is(err, catalog.ErrInvalidInput):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondServerError(w, "add certification", err)
		}
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "Certification added successfully",
		"certification": cert,
		"success":       true,
	})
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var input models.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cert, err := s.catalog.AddReview(r.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidInput):
			msg := "Missing required fields"
			if input.Rating < 0 || input.Rating > 5 {
				msg = "Rating must be between 0 and 5"
			}
			s.respondError(w, http.StatusBadRequest, msg)
		case errors.Is(err, catalog.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "Certification not found")
		default:
			s.respondServerError(w, "add review", err)
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Review added successfully",
		"certification": cert,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var input models.VerifyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cert, err := s.catalog.Verify(r.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidInput):
			s.respondError(w, http.StatusBadRequest, "Missing certificationId or facultyId")
		case errors.Is(err, catalog.ErrForbidden):
			s.respondError(w, http.StatusForbidden, "Unauthorized: Not a faculty member")
		case errors.Is(err, catalog.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "Certification not found")
		default:
			s.respondServerError(w, "verify certification", err)
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Certification verified successfully",
		"certification": cert,
	})
}

func (s *Server) handleDeleteCertification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.DeleteCertification(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Certification not found")
			return
		}
		s.respondServerError(w, "delete certification", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Certification deleted successfully"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.catalog.ListUsers(r.Context())
	if err != nil {
		s.respondServerError(w, "list users", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var input models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := s.catalog.CreateUser(r.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrDuplicate):
			s.respondError(w, http.StatusBadRequest, "User already exists")
		case errors.Is(err, catalog.ErrInvalidInput):
			s.respondError(w, http.StatusBadRequest, "Missing required fields")
		default:
			s.respondServerError(w, "create user", err)
		}
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    user,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.catalog.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(w, "get user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(w, "delete user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

type interestsRequest struct {
	Interests []string `json:"interests"`
}

func (s *Server) handleSetInterests(w http.ResponseWriter, r *http.Request) {
	var req interestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := s.catalog.SetInterests(r.Context(), chi.URLParam(r, "id"), req.Interests)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(w, "set interests", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Interests updated successfully",
		"interests": user.Interests,
	})
}

type bookmarkRequest struct {
	CertificationID string `json:"certificationId"`
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CertificationID == "" {
		s.respondError(w, http.StatusBadRequest, "Missing certificationId")
		return
	}
	bookmarks, err := s.catalog.ToggleBookmark(r.Context(), chi.URLParam(r, "id"), req.CertificationID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "User not found")
			return
		}
		s.respondServerError(w, "toggle bookmark", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Bookmark updated successfully",
		"bookmarks": bookmarks,
	})
}

func (s *Server) handleImportDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "import watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type directoryAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleImportDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "import watch not enabled")
		return
	}
	var req directoryAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondServerError(w, "stat import directory", err)
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("import directory add request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.respondServerError(w, "add import directory", err)
		return
	}
	if s.configPath != "" {
		s.configMu.Lock()
		s.config.Catalog.WatchDirectories = s.watch.Directories()
		err := config.Save(s.configPath, s.config)
		s.configMu.Unlock()
		if err != nil {
			s.logger.Warn("failed to persist import directories", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"message": message})
}

// respondServerError logs err and answers 500 with the error text.
func (s *Server) respondServerError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	s.respondJSON(w, http.StatusInternalServerError, map[string]string{
		"message": "Server error",
		"error":   err.Error(),
	})
}
