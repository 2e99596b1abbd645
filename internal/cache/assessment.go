package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/domain"
)

// AssessmentCache stores completed single-drug assessments keyed by
// (sample, drug, diplotype). A cache miss or backend failure always
// degrades to recomputation, never to a request failure.
type AssessmentCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewAssessmentCache connects to Redis using a redis:// URL.
func NewAssessmentCache(redisURL string, ttl time.Duration, logger *logrus.Logger) (*AssessmentCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Assessment cache connected")
	return &AssessmentCache{client: client, ttl: ttl, logger: logger}, nil
}

func assessmentKey(sampleID, drug, diplotype string) string {
	return fmt.Sprintf("pgx:assessment:%s:%s:%s", sampleID, drug, domain.NormalizeDiplotype(diplotype))
}

// Get fetches a cached assessment, reporting false on miss or error.
func (c *AssessmentCache) Get(ctx context.Context, sampleID, drug, diplotype string) (*domain.DrugAssessment, bool) {
	data, err := c.client.Get(ctx, assessmentKey(sampleID, drug, diplotype)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Assessment cache read failed")
		}
		return nil, false
	}
	var assessment domain.DrugAssessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		c.logger.WithError(err).Warn("Assessment cache entry corrupt, dropping")
		c.client.Del(ctx, assessmentKey(sampleID, drug, diplotype))
		return nil, false
	}
	return &assessment, true
}

// Put stores an assessment with the configured TTL. Failures are
// logged and swallowed.
func (c *AssessmentCache) Put(ctx context.Context, sampleID string, assessment domain.DrugAssessment) {
	data, err := json.Marshal(assessment)
	if err != nil {
		c.logger.WithError(err).Warn("Assessment cache marshal failed")
		return
	}
	key := assessmentKey(sampleID, assessment.Drug, assessment.Diplotype)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Assessment cache write failed")
	}
}

// Invalidate removes all cached assessments for a sample, used when new
// genotype data arrives for it.
func (c *AssessmentCache) Invalidate(ctx context.Context, sampleID string) error {
	pattern := fmt.Sprintf("pgx:assessment:%s:*", sampleID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Close releases the Redis connection.
func (c *AssessmentCache) Close() error {
	return c.client.Close()
}
