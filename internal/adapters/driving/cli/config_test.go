package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configfile "github.com/docchat-cli/docchat/internal/adapters/driven/config/file"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

func setupConfigTest(t *testing.T) func() {
	t.Helper()
	store, err := configfile.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	oldConfig := configStore
	configStore = store
	return func() { configStore = oldConfig }
}

func TestConfigCmd_SetAndGet(t *testing.T) {
	cleanup := setupConfigTest(t)
	defer cleanup()

	out, err := execute("config", "set", driven.ConfigKeySourceDir, "/data/pdfs")
	require.NoError(t, err)
	assert.Contains(t, out, "Set source.dir")

	out, err = execute("config", "get", driven.ConfigKeySourceDir)
	require.NoError(t, err)
	assert.Contains(t, out, "/data/pdfs")
}

func TestConfigCmd_GetUnsetKey(t *testing.T) {
	cleanup := setupConfigTest(t)
	defer cleanup()

	_, err := execute("config", "get", "never.set")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "key not set")
}

func TestConfigCmd_SetCoercesTypes(t *testing.T) {
	cleanup := setupConfigTest(t)
	defer cleanup()

	_, err := execute("config", "set", driven.ConfigKeyChunkWords, "150")
	require.NoError(t, err)
	assert.Equal(t, 150, configStore.GetInt(driven.ConfigKeyChunkWords))

	_, err = execute("config", "set", driven.ConfigKeyEmbeddingRPS, "2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, configStore.GetFloat(driven.ConfigKeyEmbeddingRPS))
}

func TestConfigCmd_Show(t *testing.T) {
	cleanup := setupConfigTest(t)
	defer cleanup()

	require.NoError(t, configStore.Set(driven.ConfigKeySourceDir, "/data/pdfs"))

	out, err := execute("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "source.dir = /data/pdfs")
	assert.Contains(t, out, "ingest.chunk_words = (unset)")
}

func TestConfigCmd_Path(t *testing.T) {
	cleanup := setupConfigTest(t)
	defer cleanup()

	out, err := execute("config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "config.toml")
}

func TestConfigCmd_NotConfigured(t *testing.T) {
	oldConfig := configStore
	configStore = nil
	defer func() { configStore = oldConfig }()

	_, err := execute("config", "show")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config store not configured")
}
