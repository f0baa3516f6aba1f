// Package api exposes the review surface over HTTP: pending requests,
// request detail and history, reviewer decisions, and pipeline stats.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/scribeops/scribe/internal/gate"
	"github.com/scribeops/scribe/internal/model"
	"github.com/scribeops/scribe/internal/store"
)

// Server wires the gate and store behind a gin router.
type Server struct {
	gate   *gate.Gate
	store  *store.Store
	logger *slog.Logger
}

func NewServer(g *gate.Gate, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gate: g, store: st, logger: logger}
}

// Router builds the HTTP routes. AllowedOrigins configures CORS for the
// review frontend; empty means no cross-origin access.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
		}))
	}

	r.GET("/health", s.getHealth)
	r.GET("/api/requests/pending", s.getPending)
	r.GET("/api/requests/:id", s.getRequest)
	r.GET("/api/requests/:id/history", s.getHistory)
	r.POST("/api/requests/:id/decision", s.postDecision)
	r.GET("/api/stats", s.getStats)

	return r
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getPending(c *gin.Context) {
	pending, err := s.gate.ListPending(c.Request.Context())
	if err != nil {
		s.logger.Error("listing pending requests failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	resp := PendingResponse{Requests: make([]RequestResponse, 0, len(pending)), Total: len(pending)}
	for _, req := range pending {
		resp.Requests = append(resp.Requests, toRequestResponse(req))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getRequest(c *gin.Context) {
	req, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	if err != nil {
		s.logger.Error("fetching request failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, toRequestResponse(req))
}

func (s *Server) getHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		s.logger.Error("fetching request failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	trail, err := s.store.AuditTrail(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("fetching audit trail failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	resp := HistoryResponse{RequestID: id, Entries: make([]AuditEntryResponse, 0, len(trail))}
	for _, entry := range trail {
		resp.Entries = append(resp.Entries, AuditEntryResponse{
			FromState: string(entry.FromState),
			ToState:   string(entry.ToState),
			Actor:     entry.Actor,
			Note:      entry.Note,
			At:        entry.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) postDecision(c *gin.Context) {
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.gate.Decide(c.Request.Context(), c.Param("id"), gate.Ruling{
		Decision:   model.Decision(body.Decision),
		EditedText: body.EditedText,
		Reviewer:   body.Reviewer,
		Note:       body.Note,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case model.IsStaleState(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		if isBadDecision(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("applying decision failed", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decision failed"})
	default:
		c.JSON(http.StatusOK, toRequestResponse(req))
	}
}

func isBadDecision(err error) bool {
	var de *gate.BadRulingError
	return errors.As(err, &de)
}

func (s *Server) getStats(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window duration"})
			return
		}
		window = parsed
	}

	stats, err := s.store.CountByState(c.Request.Context())
	if err != nil {
		s.logger.Error("counting states failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	outcomes, err := s.store.OutcomesSince(c.Request.Context(), window)
	if err != nil {
		s.logger.Error("counting outcomes failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	byState := make(map[string]int, len(stats.ByState))
	for state, n := range stats.ByState {
		byState[string(state)] = n
	}
	c.JSON(http.StatusOK, StatsResponse{
		ByState:   byState,
		Total:     stats.Total,
		Published: outcomes.Published,
		Rejected:  outcomes.Rejected,
		Failed:    outcomes.Failed,
		WindowSec: int64(window.Seconds()),
	})
}
