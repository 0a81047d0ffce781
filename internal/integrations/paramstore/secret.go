package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// tokenPayload is the expected JSON shape stored in SSM for API credentials.
type tokenPayload struct {
	Token string `json:"token"`
}

// Secret resolves a credential on first use and keeps it for the lifetime of
// the process. Failed lookups are not cached; the next Resolve tries again.
type Secret struct {
	getter Getter
	name   string

	mu       sync.Mutex
	value    string
	resolved bool
	err      error
}

// NewSecret returns a Secret read from the named parameter. The parameter
// value must be a JSON document of the form {"token":"..."}.
func NewSecret(getter Getter, name string) (*Secret, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("paramstore: secret parameter name must not be empty")
	}
	return &Secret{getter: getter, name: name}, nil
}

// StaticSecret returns a Secret that always resolves to value.
func StaticSecret(value string) *Secret {
	s := &Secret{value: strings.TrimSpace(value), resolved: true}
	if s.value == "" {
		s.err = errors.New("paramstore: static secret is empty")
	}
	return s
}

// Resolve returns the credential, reading the parameter store until one
// lookup has succeeded.
func (s *Secret) Resolve(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.value, s.err
	}
	value, err := fetchToken(ctx, s.getter, s.name)
	if err != nil {
		return "", err
	}
	s.value, s.resolved = value, true
	return value, nil
}

func fetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret %q as JSON: %w", name, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("paramstore: secret %q token is empty", name)
	}
	return tp.Token, nil
}
