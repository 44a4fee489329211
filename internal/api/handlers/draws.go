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
	"github.com/stitts-dev/scorito-sim/pkg/config"
)

// DrawsHandler handles draw analysis endpoints
type DrawsHandler struct {
	cache  *cache.ReportCacheService
	config *config.Config
	logger *logrus.Logger
}

// NewDrawsHandler creates a new draws handler
func NewDrawsHandler(cache *cache.ReportCacheService, config *config.Config, logger *logrus.Logger) *DrawsHandler {
	return &DrawsHandler{
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// ProbabilitiesRequest asks for per-player round-reach probabilities
// over a draw snapshot.
type ProbabilitiesRequest struct {
	Entries        []types.DrawEntry `json:"entries"`
	Ratings        types.RatingTable `json:"ratings"`
	Weights        *types.EloWeights `json:"weights,omitempty"`
	NumSimulations int               `json:"num_simulations"`
	Gender         types.Gender      `json:"gender"`
	Seed           int64             `json:"seed,omitempty"`
}

// ProbabilitiesResponse carries the sorted reach probabilities.
type ProbabilitiesResponse struct {
	Probabilities []types.RoundProbability `json:"probabilities"`
	NumRuns       int                      `json:"num_runs"`
	Cached        bool                     `json:"cached"`
	CreatedAt     time.Time                `json:"created_at"`
}

// Probabilities handles round-reach probability requests
func (h *DrawsHandler) Probabilities(c *gin.Context) {
	var req ProbabilitiesRequest
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
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "At least one draw entry is required",
			Code:  "INVALID_DRAW",
		})
		return
	}
	if !req.Gender.Valid() {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: fmt.Sprintf("Gender must be %q or %q", types.GenderMen, types.GenderWomen),
			Code:  "INVALID_GENDER",
		})
		return
	}
	if req.NumSimulations > h.config.MaxSimulations {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: fmt.Sprintf("num_simulations exceeds limit of %d", h.config.MaxSimulations),
			Code:  "INVALID_AGGREGATION",
		})
		return
	}
	if req.Weights != nil {
		if err := req.Weights.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error: "Invalid weights",
				Code:  "INVALID_WEIGHTS",
				Details: map[string]string{
					"validation_error": err.Error(),
				},
			})
			return
		}
	}

	cacheKey := probabilitiesDigest(req)
	if req.Seed != 0 && h.cache.Enabled() {
		if cached, err := h.cache.GetProbabilities(c.Request.Context(), cacheKey); err == nil {
			c.JSON(http.StatusOK, ProbabilitiesResponse{
				Probabilities: cached,
				NumRuns:       req.NumSimulations,
				Cached:        true,
				CreatedAt:     time.Now(),
			})
			return
		}
	}

	tree, err := simulation.NewBracketTree(req.Entries)
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

	weights := types.DefaultEloWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	model, err := simulation.NewMatchModel(weights)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid weights",
			Code:  "INVALID_WEIGHTS",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	aggregator := simulation.NewAggregator(tree, req.Ratings, model, simulation.DefaultScoringPolicy(), h.logger)
	cfg := simulation.AggregatorConfig{
		NumSimulations: req.NumSimulations,
		Seed:           req.Seed,
		Gender:         req.Gender,
	}

	startTime := time.Now()
	probs, err := aggregator.ReachProbabilities(c.Request.Context(), cfg)
	if err != nil {
		h.logger.WithError(err).Error("Probability computation failed")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Probability computation failed",
			Code:  "AGGREGATION_ERROR",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	if req.Seed != 0 && h.cache.Enabled() {
		ttl := time.Duration(h.config.CacheTTLSeconds) * time.Second
		if err := h.cache.SetProbabilities(c.Request.Context(), cacheKey, probs, ttl); err != nil {
			h.logger.WithError(err).Warn("Failed to cache round probabilities")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"num_runs":       req.NumSimulations,
		"players":        len(probs),
		"execution_time": time.Since(startTime),
	}).Info("Round probabilities computed")

	c.JSON(http.StatusOK, ProbabilitiesResponse{
		Probabilities: probs,
		NumRuns:       req.NumSimulations,
		CreatedAt:     time.Now(),
	})
}

func probabilitiesDigest(req ProbabilitiesRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
