package cache

import (
	"time"

	"github.com/poiesic/doccache/config"
)

// Namespace is a key prefix with its own TTL policy.
type Namespace string

const (
	SearchResults    Namespace = "search:results"
	SearchStale      Namespace = "search:stale"
	ProcessedContent Namespace = "content:processed"
	Evaluation       Namespace = "ai:evaluation"
	RateLimit        Namespace = "rate_limit:api"

	// EnrichPending marks a query whose enrichment job was recently dispatched.
	EnrichPending Namespace = "enrich:pending"
)

// Key joins namespace and id: "search:results:{query_hash}".
func Key(ns Namespace, id string) string {
	return string(ns) + ":" + id
}

// ttlFor returns the default TTL of ns in cfg. Unknown namespaces get zero.
func ttlFor(cfg config.Cache, ns Namespace) time.Duration {
	switch ns {
	case SearchResults:
		return cfg.SearchResultsTTL
	case SearchStale:
		return cfg.SearchResultsTTL * time.Duration(cfg.StaleMultiplier)
	case ProcessedContent:
		return cfg.ProcessedContentTTL
	case Evaluation:
		return cfg.EvaluationTTL
	case RateLimit:
		return cfg.RateLimitWindow
	case EnrichPending:
		return cfg.EnrichCooldown
	default:
		return 0
	}
}
