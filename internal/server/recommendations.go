package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/certiquest/internal/embedding"
	"github.com/hyperjump/certiquest/internal/models"
	"github.com/hyperjump/certiquest/internal/recommend"
)

// handleRecommendations serves GET /recommendations/{studentId}. With ?scores=true the
// response carries similarity scores instead of the plain list.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	explain, _ := strconv.ParseBool(r.URL.Query().Get("scores"))
	s.logger.Debug("recommendation request", zap.String("student", studentID), zap.Bool("scores", explain))

	if explain {
		result, err := s.recommend.Explain(r.Context(), studentID)
		if err != nil {
			s.respondRecommendError(w, studentID, err)
			return
		}
		s.respondJSON(w, http.StatusOK, result)
		return
	}

	certs, err := s.recommend.Recommend(r.Context(), studentID)
	if err != nil {
		s.respondRecommendError(w, studentID, err)
		return
	}
	if certs == nil {
		certs = []*models.Certification{}
	}
	s.respondJSON(w, http.StatusOK, models.RecommendationResponse{SuggestedCertifications: certs})
}

func (s *Server) respondRecommendError(w http.ResponseWriter, studentID string, err error) {
	var initErr *embedding.InitError
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, recommend.ErrServiceUnavailable):
		s.logger.Debug("recommendation requested before model is ready", zap.String("student", studentID))
		w.Header().Set("Retry-After", "5")
		s.respondError(w, http.StatusServiceUnavailable, "Recommendation service is initializing, please try again shortly")
	case errors.As(err, &initErr):
		s.logger.Error("recommendation model failed to initialize", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Recommendation service failed to initialize",
			"error":   err.Error(),
		})
	default:
		s.logger.Error("recommendation failed", zap.String("student", studentID), zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Error generating recommendations",
			"error":   err.Error(),
		})
	}
}
