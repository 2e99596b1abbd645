package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pharmaguard/pgx-server/internal/domain"
	"github.com/pharmaguard/pgx-server/internal/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleAssess(c *gin.Context) {
	var req service.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	resp, err := s.pipeline.Assess(c.Request.Context(), req)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFeedback(c *gin.Context) {
	var event domain.FeedbackEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.learner.Update(c.Request.Context(), event)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListPriors(c *gin.Context) {
	priors, err := s.store.ListPriors(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priors": priors, "count": len(priors)})
}

func (s *Server) handleSetPrior(c *gin.Context) {
	// Diplotypes contain slashes, so the target rides in the body.
	var body struct {
		Diplotype string  `json:"diplotype" binding:"required"`
		Value     float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	gene := c.Param("gene")
	err := s.learner.SetPrior(c.Request.Context(), gene, body.Diplotype, body.Value)
	if err != nil {
		var oob *domain.PriorOutOfBoundsError
		if errors.As(err, &oob) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          oob.Error(),
				"code":           domain.ErrCodePriorOutOfBounds,
				"correlation_id": c.GetString("correlation_id"),
			})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gene": gene, "diplotype": body.Diplotype, "value": body.Value})
}

func (s *Server) handleRecalibrate(c *gin.Context) {
	rebuilt, err := s.learner.Recalibrate(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priors_rebuilt": rebuilt})
}

func (s *Server) handleCalibrationReport(c *gin.Context) {
	if s.monitor == nil {
		s.unavailable(c, "calibration monitor not configured")
		return
	}
	report, err := s.monitor.Report(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleResolveOutcome(c *gin.Context) {
	if s.monitor == nil {
		s.unavailable(c, "calibration monitor not configured")
		return
	}
	var body struct {
		ActualDiplotype string `json:"actual_diplotype" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	correct, err := s.monitor.ResolveOutcome(c.Request.Context(), c.Param("id"), body.ActualDiplotype)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":          err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "correct": correct})
}

func (s *Server) handleListParams(c *gin.Context) {
	if s.registry == nil {
		s.unavailable(c, "parameter registry not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": s.registry.List()})
}

func (s *Server) handleCurrentParams(c *gin.Context) {
	if s.registry == nil {
		s.unavailable(c, "parameter registry not configured")
		return
	}
	current := s.registry.Current()
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no parameter snapshot tagged"})
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) handleDiffParams(c *gin.Context) {
	if s.registry == nil {
		s.unavailable(c, "parameter registry not configured")
		return
	}
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to query parameters are required"})
		return
	}
	changes, err := s.registry.Diff(from, to)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "changes": changes})
}

func (s *Server) handleRollbackParams(c *gin.Context) {
	if s.registry == nil {
		s.unavailable(c, "parameter registry not configured")
		return
	}
	snapshot, err := s.registry.Rollback(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          err.Error(),
		"code":           domain.ErrCodeInvalidRequest,
		"correlation_id": c.GetString("correlation_id"),
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":          err.Error(),
		"code":           domain.ErrCodeStoreUnavailable,
		"correlation_id": c.GetString("correlation_id"),
	})
}

func (s *Server) unavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
}
