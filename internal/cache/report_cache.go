package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/scorito-sim/internal/types"
)

// ReportCacheService handles caching for aggregation reports
type ReportCacheService struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewReportCacheService creates a new report cache service. A nil
// client is tolerated and turns every operation into a no-op miss, so
// the server keeps working without Redis.
func NewReportCacheService(client *redis.Client, logger *logrus.Logger) *ReportCacheService {
	return &ReportCacheService{
		client: client,
		logger: logger,
	}
}

// Enabled reports whether a Redis backend is wired in.
func (c *ReportCacheService) Enabled() bool {
	return c.client != nil
}

// SetReport stores an aggregation report in cache
func (c *ReportCacheService) SetReport(ctx context.Context, key string, report *types.AggregationReport, expiration time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregation report: %w", err)
	}

	fullKey := fmt.Sprintf("scorito:report:%s", key)
	if err := c.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set aggregation report in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"expiration": expiration,
		"players":    len(report.Results),
	}).Debug("Cached aggregation report")

	return nil
}

// GetReport retrieves an aggregation report from cache
func (c *ReportCacheService) GetReport(ctx context.Context, key string) (*types.AggregationReport, error) {
	if c.client == nil {
		return nil, fmt.Errorf("cache disabled")
	}

	fullKey := fmt.Sprintf("scorito:report:%s", key)
	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("aggregation report not found in cache")
		}
		return nil, fmt.Errorf("failed to get aggregation report from cache: %w", err)
	}

	var report types.AggregationReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregation report: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": fullKey,
		"players":   len(report.Results),
	}).Debug("Retrieved aggregation report from cache")

	return &report, nil
}

// SetProbabilities stores round-reach probabilities in cache
func (c *ReportCacheService) SetProbabilities(ctx context.Context, key string, probs []types.RoundProbability, expiration time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(probs)
	if err != nil {
		return fmt.Errorf("failed to marshal round probabilities: %w", err)
	}

	fullKey := fmt.Sprintf("scorito:probs:%s", key)
	if err := c.client.Set(ctx, fullKey, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set round probabilities in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"expiration": expiration,
		"players":    len(probs),
	}).Debug("Cached round probabilities")

	return nil
}

// GetProbabilities retrieves round-reach probabilities from cache
func (c *ReportCacheService) GetProbabilities(ctx context.Context, key string) ([]types.RoundProbability, error) {
	if c.client == nil {
		return nil, fmt.Errorf("cache disabled")
	}

	fullKey := fmt.Sprintf("scorito:probs:%s", key)
	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("round probabilities not found in cache")
		}
		return nil, fmt.Errorf("failed to get round probabilities from cache: %w", err)
	}

	var probs []types.RoundProbability
	if err := json.Unmarshal([]byte(data), &probs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round probabilities: %w", err)
	}

	return probs, nil
}

// GetStatus returns cache statistics
func (c *ReportCacheService) GetStatus(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service":   "scorito-cache",
		"timestamp": time.Now(),
		"connected": c.client != nil,
	}
	if c.client == nil {
		return status
	}

	if dbSize := c.client.DBSize(ctx); dbSize.Err() == nil {
		status["db_size"] = dbSize.Val()
	}

	reportKeys, err := c.client.Keys(ctx, "scorito:report:*").Result()
	if err == nil {
		status["report_keys"] = len(reportKeys)
	}

	probKeys, err := c.client.Keys(ctx, "scorito:probs:*").Result()
	if err == nil {
		status["probability_keys"] = len(probKeys)
	}

	return status
}

// FlushReports clears all cached reports and probabilities
func (c *ReportCacheService) FlushReports(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	keys, err := c.client.Keys(ctx, "scorito:*").Result()
	if err != nil {
		return fmt.Errorf("failed to get scorito keys: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete scorito keys: %w", err)
		}
	}

	c.logger.WithField("deleted_keys", len(keys)).Info("Flushed report cache")
	return nil
}

// Ping checks connectivity to the Redis backend
func (c *ReportCacheService) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("cache disabled")
	}
	return c.client.Ping(ctx).Err()
}
