package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetloop/lastmile-dispatch/internal/database"
	"github.com/fleetloop/lastmile-dispatch/internal/metrics"
	"github.com/fleetloop/lastmile-dispatch/pkg/engine"
	"github.com/fleetloop/lastmile-dispatch/pkg/models"
)

// Server represents the API server
type Server struct {
	router    *gin.Engine
	engine    *engine.Engine
	repo      *database.Repository
	collector *metrics.Collector
	addr      string
}

// stateRequest is the full-snapshot body for POST /state.
type stateRequest struct {
	Orders map[string]*models.Order `json:"orders"`
	Riders map[string]*models.Rider `json:"riders"`
}

// tripObservation feeds a completed trip into the ETA rider model.
type tripObservation struct {
	RiderID          string  `json:"rider_id" binding:"required"`
	ActualMinutes    float64 `json:"actual_minutes" binding:"required"`
	EstimatedMinutes float64 `json:"estimated_minutes" binding:"required"`
	Zone             string  `json:"zone"`
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, repo *database.Repository, collector *metrics.Collector, addr string) *Server {
	router := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	server := &Server{
		router:    router,
		engine:    eng,
		repo:      repo,
		collector: collector,
		addr:      addr,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// Engine state
	api.POST("/state", s.updateState)
	api.GET("/state", s.getState)

	// Cycle execution and history
	api.POST("/cycles", s.executeCycle)
	api.GET("/cycles", s.listCycles)
	api.GET("/cycles/:id", s.getCycle)
	api.GET("/cycles/:id/decisions", s.getCycleDecisions)

	// Per-order audit trails
	api.GET("/orders/:id/history", s.getOrderHistory)
	api.GET("/orders/:id/reassignments", s.getOrderReassignments)

	// ETA feedback
	api.POST("/eta/observations", s.recordTripObservation)

	// Telemetry
	api.GET("/engine/metrics", s.getEngineMetrics)
	api.GET("/summary", s.getSummary)
	api.GET("/surge/history", s.getSurgeHistory)

	// Health check
	api.GET("/health", s.healthCheck)

	// Prometheus scrape endpoint
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start starts the server
func (s *Server) Start() error {
	return s.router.Run(s.addr)
}

// Handler implementations

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now(),
	})
}

func (s *Server) updateState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for id, order := range req.Orders {
		if order == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "null order " + id})
			return
		}
		if err := order.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "order_id": id})
			return
		}
	}
	for id, rider := range req.Riders {
		if rider == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "null rider " + id})
			return
		}
		if err := rider.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "rider_id": id})
			return
		}
	}

	s.engine.UpdateState(req.Orders, req.Riders)
	c.JSON(http.StatusOK, gin.H{
		"orders": len(req.Orders),
		"riders": len(req.Riders),
	})
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetState())
}

func (s *Server) executeCycle(c *gin.Context) {
	started := time.Now()
	result := s.engine.ExecuteCycle()
	elapsed := time.Since(started)

	state := s.engine.GetState()
	if s.collector != nil {
		s.collector.ObserveCycle(result, state.SurgeState, elapsed)
		s.collector.ObserveReassignments(len(result.Reassignments))
	}

	if s.repo != nil {
		pending := result.SuccessCount + result.FailureCount
		if err := s.repo.SaveCycle(result, pending, state.SurgeState.DemandSupplyRatio); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := s.repo.SaveSurgeState(state.SurgeState, result.Timestamp); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, event := range result.Reassignments {
			if err := s.repo.SaveReassignment(event, result.Timestamp); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

// requireRepo rejects history requests on servers running without a
// checkpoint store.
func (s *Server) requireRepo(c *gin.Context) bool {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence not configured"})
		return false
	}
	return true
}

func (s *Server) listCycles(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}

	// With a start/end window the listing switches to a range query.
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr != "" || endStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start time"})
			return
		}
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end time"})
			return
		}

		cycles, err := s.repo.GetCyclesInRange(start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cycles)
		return
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	cycles, err := s.repo.ListCycles(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cycles)
}

func (s *Server) getCycle(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	id := c.Param("id")

	cycle, err := s.repo.GetCycle(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cycle not found"})
		return
	}

	c.JSON(http.StatusOK, cycle)
}

func (s *Server) getCycleDecisions(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	id := c.Param("id")

	decisions, err := s.repo.GetDecisions(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decisions)
}

func (s *Server) getOrderHistory(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	id := c.Param("id")

	history, err := s.repo.GetOrderHistory(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) getOrderReassignments(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	id := c.Param("id")

	records, err := s.repo.GetReassignments(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (s *Server) recordTripObservation(c *gin.Context) {
	var obs tripObservation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.engine.ETAModel().UpdateRiderModel(obs.RiderID, obs.ActualMinutes, obs.EstimatedMinutes, obs.Zone)
	c.JSON(http.StatusOK, gin.H{
		"rider_id":         obs.RiderID,
		"speed_multiplier": s.engine.ETAModel().RiderSpeedMultiplier(obs.RiderID),
	})
}

func (s *Server) getEngineMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetMetrics())
}

func (s *Server) getSummary(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	summary, err := s.repo.GetSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) getSurgeHistory(c *gin.Context) {
	if !s.requireRepo(c) {
		return
	}
	startStr := c.Query("start")
	endStr := c.Query("end")

	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end times required"})
		return
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start time"})
		return
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end time"})
		return
	}

	records, err := s.repo.GetSurgeHistory(start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}
