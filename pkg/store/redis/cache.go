package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/depwarden/depwarden/pkg/engine"
)

// ReportCache shares evaluation results across daemon instances. A CI
// fleet re-checking an unchanged graph against an unchanged policy
// reuses the cached report instead of evaluating again.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a cache. A zero TTL defaults to one hour.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl == 0 {
		ttl = 1 * time.Hour
	}
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) makeKey(policyDigest, graphDigest string) string {
	return fmt.Sprintf("depwarden:report:%s:%s", policyDigest, graphDigest)
}

// Get returns the cached report for the digest pair, if present. Cache
// failures are treated as misses; the caller just evaluates.
func (c *ReportCache) Get(ctx context.Context, policyDigest, graphDigest string) (*engine.Report, bool) {
	key := c.makeKey(policyDigest, graphDigest)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to GET key %s: %v", key, err)
		}
		return nil, false
	}
	var report engine.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		log.Printf("Failed to unmarshal cached report from key %s: %v", key, err)
		return nil, false
	}
	return &report, true
}

// Set stores a report under the digest pair.
func (c *ReportCache) Set(ctx context.Context, report *engine.Report) {
	key := c.makeKey(report.PolicyDigest, report.GraphDigest)
	data, err := json.Marshal(report)
	if err != nil {
		log.Printf("Failed to marshal report: %v", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("Failed to SET key %s: %v", key, err)
	}
}
