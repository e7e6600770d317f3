// internal/router/cache.go
package router

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"council-orchestrator/internal/common/config"
	"council-orchestrator/internal/common/database"
	"council-orchestrator/internal/common/logger"
	"council-orchestrator/internal/models"
)

// Cache is a read-through store for routing decisions keyed on the query
// and the tail of the conversation. A nil *Cache is valid and disables
// caching, so callers never have to branch on availability.
type Cache struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCache(redis *database.RedisClient, cfg config.RouterConfig, log logger.Logger) *Cache {
	if redis == nil || !cfg.CacheEnabled {
		return nil
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{
		redis:  redis,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "router-cache"}),
	}
}

func (c *Cache) Get(ctx context.Context, query string, history []models.ConversationTurn, webSearch bool, mode models.Mode) (models.RoutingDecision, bool) {
	if c == nil {
		return models.RoutingDecision{}, false
	}
	raw, err := c.redis.Get(ctx, cacheKey(query, history, webSearch, mode))
	if err != nil {
		return models.RoutingDecision{}, false
	}
	var decision models.RoutingDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		c.logger.Warn("discarding corrupt cached routing decision", map[string]interface{}{
			"error": err.Error(),
		})
		return models.RoutingDecision{}, false
	}
	return decision, true
}

func (c *Cache) Put(ctx context.Context, query string, history []models.ConversationTurn, webSearch bool, mode models.Mode, decision models.RoutingDecision) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(query, history, webSearch, mode), string(payload), c.ttl); err != nil {
		c.logger.Warn("failed to cache routing decision", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// cacheKey hashes the query together with the last two turns; older turns
// rarely change the routing outcome and including them would make hits rare.
// Mode and web search are part of the key because both change the decision:
// research mode widens the intents and web search shifts the temperature.
func cacheKey(query string, history []models.ConversationTurn, webSearch bool, mode models.Mode) string {
	h := sha256.New()
	h.Write([]byte(query))
	fmt.Fprintf(h, "|mode:%s|search:%t", mode, webSearch)
	start := len(history) - 2
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		fmt.Fprintf(h, "|%s:%s", turn.Role, turn.Content)
	}
	return fmt.Sprintf("router:decision:%x", h.Sum(nil))
}
