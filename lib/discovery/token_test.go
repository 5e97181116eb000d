package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTokenConfig(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(file, []byte("secret\n"), 0600); err != nil {
		t.Fatal(err)
	}

	token, err := TokenConfig{APIKeyFile: file}.Provider().Token(ctx)
	if err != nil || token != "secret" {
		t.Errorf("file token = %q %v", token, err)
	}

	token, err = TokenConfig{APIKey: "inline", APIKeyFile: file}.Provider().Token(ctx)
	if err != nil || token != "inline" {
		t.Errorf("inline token = %q %v", token, err)
	}

	if _, err = (TokenConfig{}).Provider().Token(ctx); !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}
