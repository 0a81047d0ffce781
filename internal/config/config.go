// Package config reads the chat client's settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Backend names a chat backend.
type Backend string

const (
	BackendEcho       Backend = "echo"
	BackendCompletion Backend = "completion"
	BackendPrediction Backend = "prediction"
)

// Parameter names below PARAM_PREFIX holding {"token":"..."} documents.
const (
	OpenAITokenParam = "open-ai-token"
	VertexTokenParam = "vertex-token"
)

const (
	defaultEchoURL = "http://localhost:3000/api/chat"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	Backend Backend
	Timeout time.Duration

	EchoURL string

	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIAPIKey  string

	VertexProject     string
	VertexLocation    string
	VertexModel       string
	VertexEndpoint    string
	VertexAccessToken string

	// ParamPrefix enables secret lookup in SSM Parameter Store.
	ParamPrefix string
	// AuditTable enables the DynamoDB audit trail.
	AuditTable string
}

// Load reads the configuration through getenv and validates it.
func Load(getenv func(string) string) (Config, error) {
	env := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	timeout, err := envDuration(env("TIMEOUT"), defaultTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("config: TIMEOUT: %w", err)
	}

	cfg := Config{
		Backend:           Backend(strings.ToLower(env("BACKEND"))),
		Timeout:           timeout,
		EchoURL:           env("ECHO_URL"),
		OpenAIBaseURL:     env("OPENAI_BASE_URL"),
		OpenAIModel:       env("OPENAI_MODEL"),
		OpenAIAPIKey:      env("OPENAI_API_KEY"),
		VertexProject:     env("VERTEX_PROJECT"),
		VertexLocation:    env("VERTEX_LOCATION"),
		VertexModel:       env("VERTEX_MODEL"),
		VertexEndpoint:    env("VERTEX_ENDPOINT"),
		VertexAccessToken: env("VERTEX_ACCESS_TOKEN"),
		ParamPrefix:       env("PARAM_PREFIX"),
		AuditTable:        env("AUDIT_TABLE"),
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendEcho
	}
	if cfg.EchoURL == "" {
		cfg.EchoURL = defaultEchoURL
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendEcho:
		if c.EchoURL == "" {
			return fmt.Errorf("config: ECHO_URL is required for the %s backend", c.Backend)
		}
	case BackendCompletion:
		if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
			return fmt.Errorf("config: OPENAI_API_KEY or PARAM_PREFIX is required for the %s backend", c.Backend)
		}
	case BackendPrediction:
		if c.VertexProject == "" {
			return fmt.Errorf("config: VERTEX_PROJECT is required for the %s backend", c.Backend)
		}
		if c.VertexAccessToken == "" && c.ParamPrefix == "" {
			return fmt.Errorf("config: VERTEX_ACCESS_TOKEN or PARAM_PREFIX is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want echo, completion or prediction)", c.Backend)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// envDuration accepts a Go duration ("45s") or a whole number of seconds.
func envDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
