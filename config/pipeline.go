package config

import (
	"strings"
	"time"
)

// ContentConfig controls page retrieval and text extraction.
type ContentConfig struct {
	// FetchTimeout bounds the whole fetch and extraction stage.
	FetchTimeout time.Duration `env:"CONTENT_FETCH_TIMEOUT" envDefault:"20s"`

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 `env:"CONTENT_MAX_BODY_BYTES" envDefault:"5242880"`

	// MaxChars caps the extracted text handed to the summarizer.
	MaxChars int `env:"CONTENT_MAX_CHARS" envDefault:"8000"`

	// UserAgent is sent with every fetch. Empty uses the built-in agent.
	UserAgent string `env:"CONTENT_USER_AGENT"`
}

// Sanitize applies guardrails to content configuration values.
func (c *ContentConfig) Sanitize() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 << 20
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 8000
	}
	c.UserAgent = strings.TrimSpace(c.UserAgent)
}

// SummarizerConfig controls the generative-text backend.
type SummarizerConfig struct {
	// Host is the Ollama server root.
	Host        string        `env:"OLLAMA_HOST"            envDefault:"http://localhost:11434"`
	Model       string        `env:"SUMMARIZER_MODEL"       envDefault:"gemma3:1b"`
	APIKey      string        `env:"SUMMARIZER_API_KEY"     envDefault:"ollama"`
	Timeout     time.Duration `env:"SUMMARIZER_TIMEOUT"     envDefault:"120s"`
	Temperature float64       `env:"SUMMARIZER_TEMPERATURE" envDefault:"0.2"`
	MaxChars    int           `env:"SUMMARIZER_MAX_CHARS"   envDefault:"1500"`
	MaxWords    int           `env:"SUMMARIZER_MAX_WORDS"   envDefault:"1500"`
	MinWords    int           `env:"SUMMARIZER_MIN_WORDS"   envDefault:"20"`
	MaxRetries  int           `env:"SUMMARIZER_MAX_RETRIES" envDefault:"0"`
}

// Sanitize applies guardrails to summarizer configuration values.
func (s *SummarizerConfig) Sanitize() {
	if s.Host = strings.TrimSpace(s.Host); s.Host == "" {
		s.Host = "http://localhost:11434"
	}
	if s.Model = strings.TrimSpace(s.Model); s.Model == "" {
		s.Model = "gemma3:1b"
	}
	if s.Timeout <= 0 {
		s.Timeout = 120 * time.Second
	}
	if s.Temperature < 0 {
		s.Temperature = 0
	}
	if s.Temperature > 2 {
		s.Temperature = 2
	}
	if s.MaxChars <= 0 {
		s.MaxChars = 1500
	}
	if s.MaxWords <= 0 {
		s.MaxWords = 1500
	}
	if s.MinWords < 0 {
		s.MinWords = 0
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
}
