package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoToken = errors.New("no api token configured")

// TokenProvider hands control plane credentials to a discoverer.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type StaticToken string

func (T StaticToken) Token(context.Context) (string, error) {
	if T == "" {
		return "", ErrNoToken
	}
	return string(T), nil
}

// FileToken reads the token from a file on every call, so rotated keys are
// picked up without a restart.
type FileToken string

func (T FileToken) Token(context.Context) (string, error) {
	b, err := os.ReadFile(string(T))
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, string(T))
	}
	return token, nil
}

// TokenConfig is embedded by discoverer configs. APIKey wins over APIKeyFile.
type TokenConfig struct {
	APIKey     string `json:"api_key,omitempty"`
	APIKeyFile string `json:"api_key_file,omitempty"`
}

func (T TokenConfig) Provider() TokenProvider {
	if T.APIKey == "" && T.APIKeyFile != "" {
		return FileToken(T.APIKeyFile)
	}
	return StaticToken(T.APIKey)
}

var _ TokenProvider = StaticToken("")
var _ TokenProvider = FileToken("")
