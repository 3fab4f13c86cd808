package config

import (
	"strings"
	"time"
)

// DefaultKeyPrefix namespaces job records in Redis.
const DefaultKeyPrefix = "document:"

// RedisConfig contains the shared job store configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix is prepended to job ids to form record keys.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"document:"`

	// RecordTTL expires job records after creation. Zero keeps them forever.
	RecordTTL time.Duration `env:"RECORD_TTL" envDefault:"0s"`

	// DialTimeout bounds connection setup and the startup ping.
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	if r.URI == "" {
		r.URI = "localhost:6379"
	}
	r.SentinelNodes = trimNonEmpty(r.SentinelNodes)
	r.ClusterNodes = trimNonEmpty(r.ClusterNodes)
	if r.KeyPrefix == "" {
		r.KeyPrefix = DefaultKeyPrefix
	}
	if r.RecordTTL < 0 {
		r.RecordTTL = 0
	}
	if r.DialTimeout <= 0 {
		r.DialTimeout = 5 * time.Second
	}
	if r.DB < 0 {
		r.DB = 0
	}
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
