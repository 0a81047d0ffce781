package commands

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tea "github.com/charmbracelet/bubbletea"

	"chat-exchange/internal/domain"
	"chat-exchange/internal/integrations/paramstore"
	"chat-exchange/internal/repository"
	"chat-exchange/internal/usecase"
)

// AuditStore records exchanges and reads them back.
// *repository.Client satisfies this interface.
type AuditStore interface {
	usecase.Recorder
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.AuditRecord, error)
	GetSessionMeta(ctx context.Context, sessionID string) (domain.SessionMeta, bool, error)
}

// Dependencies holds the external dependencies of the commands so tests can
// replace AWS and the terminal.
type Dependencies struct {
	Getenv     func(string) string
	HTTPClient *http.Client

	// ParamStore returns a parameter reader rooted at prefix.
	ParamStore func(ctx context.Context, prefix string) (paramstore.Getter, error)
	// OpenAudit returns the audit trail stored in table.
	OpenAudit func(ctx context.Context, table string) (AuditStore, error)
	// RunTUI runs the model until the user quits.
	RunTUI func(ctx context.Context, m tea.Model) error
}

// NewDependencies returns the production dependencies. The AWS configuration
// is loaded on first use only.
func NewDependencies() *Dependencies {
	var (
		once   sync.Once
		awsCfg aws.Config
		awsErr error
	)
	loadAWS := func(ctx context.Context) (aws.Config, error) {
		once.Do(func() {
			awsCfg, awsErr = awsconfig.LoadDefaultConfig(ctx)
		})
		return awsCfg, awsErr
	}

	return &Dependencies{
		Getenv: os.Getenv,
		ParamStore: func(ctx context.Context, prefix string) (paramstore.Getter, error) {
			cfg, err := loadAWS(ctx)
			if err != nil {
				return nil, err
			}
			client, err := paramstore.New(awsssm.NewFromConfig(cfg), prefix)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		OpenAudit: func(ctx context.Context, table string) (AuditStore, error) {
			cfg, err := loadAWS(ctx)
			if err != nil {
				return nil, err
			}
			client, err := repository.New(awsdynamodb.NewFromConfig(cfg), table)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		RunTUI: func(ctx context.Context, m tea.Model) error {
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
