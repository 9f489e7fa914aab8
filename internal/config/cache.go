package config

import (
	"strings"
	"time"
)

// CacheConfig defines the response cache used on the public field catalogue.
// Availability endpoints are never cached.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	MethodList   string        `envconfig:"CACHE_METHODS" default:"GET"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	KeyStrategy  string        `envconfig:"CACHE_KEY_STRATEGY" default:"route_query"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// Methods returns the upper-cased set of cacheable HTTP methods.
func (c CacheConfig) Methods() map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(c.MethodList, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
