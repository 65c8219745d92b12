package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinic-labs/memgate/internal/config"
	"github.com/kinic-labs/memgate/internal/storage/memory"
	"github.com/kinic-labs/memgate/internal/storage/sqlite"
)

func TestSqliteDSN_DefaultsToInMemory(t *testing.T) {
	// With the default (empty) data path nothing survives a restart.
	assert.Equal(t, ":memory:", sqliteDSN(""))
	assert.Equal(t, "/var/lib/memgate/memgate.db", sqliteDSN("/var/lib/memgate"))
}

func TestOpenStore_DefaultConfigStaysInMemory(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Empty(t, cfg.Storage.DataPath)
	assert.Equal(t, ":memory:", sqliteDSN(cfg.Storage.DataPath))

	store, err := openStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &memory.Store{}, store)
}

func TestOpenStore_SqliteEngine(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.Engine = "sqlite"

	store, err := openStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &sqlite.Store{}, store)
}

func TestOpenStore_SqliteFileOptIn(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.Engine = "sqlite"
	cfg.Storage.DataPath = t.TempDir()

	store, err := openStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.FileExists(t, cfg.Storage.DataPath+"/memgate.db")
}

func TestOpenStore_PostgresRequiresDSN(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.Engine = "postgres"

	_, err = openStore(cfg)
	assert.Error(t, err)
}

func TestOpenStore_UnknownEngine(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	cfg.Storage.Engine = "etcd"

	_, err = openStore(cfg)
	assert.Error(t, err)
}
