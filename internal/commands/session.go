package commands

import (
	"context"
	"fmt"

	"chat-exchange/internal/config"
	"chat-exchange/internal/integrations/echo"
	"chat-exchange/internal/integrations/openai"
	"chat-exchange/internal/integrations/paramstore"
	"chat-exchange/internal/integrations/vertex"
	"chat-exchange/internal/usecase"
)

// session builds a Session for the configured backend, with the audit trail
// attached when AUDIT_TABLE is set.
func (a *app) session(ctx context.Context) (*usecase.Session, config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, config.Config{}, err
	}
	sender, err := a.sender(ctx, cfg)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("create %s backend: %w", cfg.Backend, err)
	}

	opts := []usecase.SessionOption{usecase.WithBackendName(string(cfg.Backend))}
	if cfg.AuditTable != "" {
		store, err := a.deps.OpenAudit(ctx, cfg.AuditTable)
		if err != nil {
			return nil, config.Config{}, fmt.Errorf("open audit table: %w", err)
		}
		opts = append(opts, usecase.WithRecorder(store))
	}

	sess, err := usecase.NewSession(sender, opts...)
	if err != nil {
		return nil, config.Config{}, err
	}
	return sess, cfg, nil
}

func (a *app) sender(ctx context.Context, cfg config.Config) (usecase.Sender, error) {
	switch cfg.Backend {
	case config.BackendEcho:
		client, err := echo.NewClient(cfg.EchoURL, a.deps.HTTPClient)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.BackendCompletion:
		key, err := a.secret(ctx, cfg, cfg.OpenAIAPIKey, config.OpenAITokenParam)
		if err != nil {
			return nil, err
		}
		opts := []openai.Option{
			openai.WithModel(cfg.OpenAIModel),
			openai.WithHTTPClient(a.deps.HTTPClient),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err := openai.NewClient(key, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.BackendPrediction:
		token, err := a.secret(ctx, cfg, cfg.VertexAccessToken, config.VertexTokenParam)
		if err != nil {
			return nil, err
		}
		opts := []vertex.Option{
			vertex.WithLocation(cfg.VertexLocation),
			vertex.WithModel(cfg.VertexModel),
			vertex.WithHTTPClient(a.deps.HTTPClient),
		}
		if cfg.VertexEndpoint != "" {
			opts = append(opts, vertex.WithEndpoint(cfg.VertexEndpoint))
		}
		client, err := vertex.NewClient(cfg.VertexProject, token, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// secret prefers a value from the environment and otherwise reads the named
// parameter below PARAM_PREFIX.
func (a *app) secret(ctx context.Context, cfg config.Config, static, param string) (*paramstore.Secret, error) {
	if static != "" {
		return paramstore.StaticSecret(static), nil
	}
	getter, err := a.deps.ParamStore(ctx, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("parameter store: %w", err)
	}
	return paramstore.NewSecret(getter, param)
}
