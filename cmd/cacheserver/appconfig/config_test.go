package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10_000, cfg.Cache.MaxEntries)
	assert.Equal(t, "lfu", cfg.Cache.EvictionPolicy)
	assert.Equal(t, WriterNone, cfg.Writer.Backend)
	assert.Equal(t, ":8090", cfg.Events.Addr)
}

func TestLoadOverridesFromYAMLFile(t *testing.T) {
	path := writeTempYAML(t, `
cache:
  max_entries: 500
  eviction_policy: lru
writer:
  backend: redis
redis:
  addr: redis.internal:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, "lru", cfg.Cache.EvictionPolicy)
	assert.Equal(t, WriterRedis, cfg.Writer.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("CACHESERVER_WRITER_BACKEND", "sql")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, WriterSQL, cfg.Writer.Backend)
}

func TestLoadRejectsInvalidEvictionPolicy(t *testing.T) {
	path := writeTempYAML(t, `
cache:
  eviction_policy: not-a-policy
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestCacheConfigToCacheCoreConfigBuildsValidConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	coreCfg, err := cfg.Cache.ToCacheCoreConfig()
	require.NoError(t, err)
	assert.Equal(t, 10_000, coreCfg.MaxEntries)
}
