package cli

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
)

func TestCreateAgent(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Storage.Backend = config.BackendMemory
		return cfg
	}

	t.Run("Memory backend", func(t *testing.T) {
		agent, err := NewAgent(base(), RunOptions{}, logging.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, agent)
	})

	t.Run("File backend with configured path", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = config.BackendFile
		cfg.Storage.Path = t.TempDir()

		agent, err := NewAgent(cfg, RunOptions{Debug: true, DryRun: true}, logging.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, agent)
	})

	t.Run("Unknown backend fails", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = "s3"

		_, err := NewAgent(cfg, RunOptions{}, logging.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage backend")
	})

	t.Run("Malformed encryption key fails", func(t *testing.T) {
		cfg := base()
		cfg.Storage.EncryptionKey = "not base64!!!"

		_, err := NewAgent(cfg, RunOptions{}, logging.NewNop())
		require.Error(t, err)
	})

	t.Run("Malformed redaction pattern fails", func(t *testing.T) {
		cfg := base()
		cfg.Storage.RedactPatterns = []string{"(unclosed"}

		_, err := NewAgent(cfg, RunOptions{}, logging.NewNop())
		require.Error(t, err)
	})

	t.Run("Redaction sees plaintext, not ciphertext", func(t *testing.T) {
		cfg := base()
		cfg.Storage.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
		cfg.Storage.RedactPatterns = []string{`sk-[A-Za-z0-9]+`}

		store, err := OpenStore(cfg.Storage)
		require.NoError(t, err)

		state := domain.NewState()
		state.Messages = append(state.Messages, domain.UserMessage("the key is sk-abc123"))
		require.NoError(t, store.Save(context.Background(), "t1", state))

		loaded, err := store.Load(context.Background(), "t1")
		require.NoError(t, err)
		require.Len(t, loaded.Messages, 1)
		assert.NotContains(t, loaded.Messages[0].Content, "sk-abc123")
		assert.Contains(t, loaded.Messages[0].Content, "[REDACTED]")
	})
}
