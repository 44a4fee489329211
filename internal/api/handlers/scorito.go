package handlers

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/scorito-sim/internal/cache"
	"github.com/stitts-dev/scorito-sim/internal/simulation"
	"github.com/stitts-dev/scorito-sim/internal/types"
	"github.com/stitts-dev/scorito-sim/internal/websocket"
	"github.com/stitts-dev/scorito-sim/pkg/config"
)

// ScoritoHandler handles scorito aggregation endpoints
type ScoritoHandler struct {
	cache  *cache.ReportCacheService
	wsHub  *websocket.Hub
	config *config.Config
	logger *logrus.Logger
}

// NewScoritoHandler creates a new scorito handler
func NewScoritoHandler(
	cache *cache.ReportCacheService,
	wsHub *websocket.Hub,
	config *config.Config,
	logger *logrus.Logger,
) *ScoritoHandler {
	return &ScoritoHandler{
		cache:  cache,
		wsHub:  wsHub,
		config: config,
		logger: logger,
	}
}

// OptimizeRequest is a request to run the Monte Carlo aggregation over
// a draw snapshot.
type OptimizeRequest struct {
	Entries        []types.DrawEntry  `json:"entries"`
	Ratings        types.RatingTable  `json:"ratings"`
	Scoring        types.ScoringTable `json:"scoring,omitempty"`
	Weights        *types.EloWeights  `json:"weights,omitempty"`
	NumSimulations int                `json:"num_simulations"`
	Gender         types.Gender       `json:"gender"`
	Seed           int64              `json:"seed,omitempty"`
}

// OptimizeResponse wraps the aggregation report with request metadata.
type OptimizeResponse struct {
	SimulationID string                   `json:"simulation_id"`
	Report       *types.AggregationReport `json:"report"`
	Cached       bool                     `json:"cached"`
	CreatedAt    time.Time                `json:"created_at"`
}

// ScoreRequest asks for the cumulative points of one tier/stage pair.
type ScoreRequest struct {
	Tier    types.Tier         `json:"tier"`
	Stage   string             `json:"stage"`
	Scoring types.ScoringTable `json:"scoring,omitempty"`
}

// Optimize handles aggregation requests
func (h *ScoritoHandler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	if req.NumSimulations <= 0 {
		req.NumSimulations = h.config.DefaultSimulations
	}
	if err := h.validateOptimizeRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid aggregation parameters",
			Code:  "INVALID_AGGREGATION",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	// Identical requests with a fixed seed produce identical reports,
	// so the request digest doubles as the cache key.
	cacheKey := requestDigest(req)
	if req.Seed != 0 && h.cache.Enabled() {
		if cached, err := h.cache.GetReport(c.Request.Context(), cacheKey); err == nil {
			c.JSON(http.StatusOK, OptimizeResponse{
				SimulationID: cacheKey[:16],
				Report:       cached,
				Cached:       true,
				CreatedAt:    time.Now(),
			})
			return
		}
	}

	aggregator, err := h.buildAggregator(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid draw snapshot",
			Code:  "INVALID_DRAW",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	simulationID := uuid.New().String()

	// Forward progress to WebSocket subscribers of this simulation ID.
	progressChan := make(chan types.ProgressUpdate, 100)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for update := range progressChan {
			h.wsHub.BroadcastToSimulation(simulationID, update)
		}
	}()

	cfg := simulation.AggregatorConfig{
		SimulationID:   simulationID,
		NumSimulations: req.NumSimulations,
		Workers:        h.config.SimulationWorkers,
		Seed:           req.Seed,
		Gender:         req.Gender,
	}

	report, err := aggregator.Run(c.Request.Context(), cfg, progressChan)
	close(progressChan)
	<-progressDone
	if err != nil {
		h.logger.WithError(err).Error("Aggregation failed")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Aggregation failed",
			Code:  "AGGREGATION_ERROR",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	if req.Seed != 0 && h.cache.Enabled() {
		ttl := time.Duration(h.config.CacheTTLSeconds) * time.Second
		if err := h.cache.SetReport(c.Request.Context(), cacheKey, report, ttl); err != nil {
			h.logger.WithError(err).Warn("Failed to cache aggregation report")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"simulation_id":   simulationID,
		"num_simulations": req.NumSimulations,
		"players":         len(report.Results),
		"failed_runs":     report.FailedRuns,
		"execution_time":  report.ExecutionTime,
	}).Info("Aggregation completed successfully")

	c.JSON(http.StatusOK, OptimizeResponse{
		SimulationID: simulationID,
		Report:       report,
		CreatedAt:    time.Now(),
	})
}

// GetScoringRules returns the standard tier scoring increments
func (h *ScoritoHandler) GetScoringRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scoring": types.DefaultScoringTable(),
		"stages":  stageLabels(),
	})
}

// Score returns the cumulative points for one tier/stage pair
func (h *ScoritoHandler) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	stage, err := types.ParseStage(req.Stage)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid stage",
			Code:  "INVALID_STAGE",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	table := req.Scoring
	if table == nil {
		table = types.DefaultScoringTable()
	}
	policy, err := simulation.NewScoringPolicy(table)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid scoring table",
			Code:  "INVALID_SCORING",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":   req.Tier,
		"stage":  stage.String(),
		"points": policy.CumulativePoints(req.Tier, stage),
	})
}

// GetCacheStatus reports report-cache statistics
func (h *ScoritoHandler) GetCacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.GetStatus(c.Request.Context()))
}

// Helper methods

func (h *ScoritoHandler) validateOptimizeRequest(req OptimizeRequest) error {
	if len(req.Entries) == 0 {
		return fmt.Errorf("at least one draw entry is required")
	}
	if !req.Gender.Valid() {
		return fmt.Errorf("gender must be %q or %q", types.GenderMen, types.GenderWomen)
	}
	if req.NumSimulations > h.config.MaxSimulations {
		return fmt.Errorf("num_simulations exceeds limit of %d", h.config.MaxSimulations)
	}
	if req.Weights != nil {
		if err := req.Weights.Validate(); err != nil {
			return err
		}
	}
	if req.Scoring != nil {
		if err := req.Scoring.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (h *ScoritoHandler) buildAggregator(req OptimizeRequest) (*simulation.Aggregator, error) {
	tree, err := simulation.NewBracketTree(req.Entries)
	if err != nil {
		return nil, err
	}

	weights := types.DefaultEloWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	model, err := simulation.NewMatchModel(weights)
	if err != nil {
		return nil, err
	}

	var policy *simulation.ScoringPolicy
	if req.Scoring != nil {
		policy, err = simulation.NewScoringPolicy(req.Scoring)
		if err != nil {
			return nil, err
		}
	} else {
		policy = simulation.DefaultScoringPolicy()
	}

	return simulation.NewAggregator(tree, req.Ratings, model, policy, h.logger), nil
}

// requestDigest hashes the canonical JSON encoding of the request.
func requestDigest(req OptimizeRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func stageLabels() []string {
	labels := make([]string, 0, types.NumStages)
	for _, s := range types.Stages() {
		labels = append(labels, s.String())
	}
	return labels
}
