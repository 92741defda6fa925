package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citada/supplier-portal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func TestLoadOverlaysFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "9000"
db_driver = "sqlite"
allowed_origins = ["http://localhost:5173"]

[sync]
debounce = "100ms"
poll_interval = "5s"
`), 0o600))

	t.Setenv("PORTAL_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("SYNC_RECONNECT_MAX", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, time.Minute, cfg.Sync.ReconnectMax)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Sync.PollMaxAttempts)

	sub := cfg.SubscriptionConfig()
	assert.Equal(t, 100*time.Millisecond, sub.DebounceDelay)
	assert.Equal(t, time.Minute, sub.Reconnect.MaxDelay)
	assert.Equal(t, 5, sub.Reconnect.MaxAttempt)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SYNC_DEBOUNCE", "soon")
	_, err = Load()
	assert.Error(t, err)
}

func TestInitDBSqlite(t *testing.T) {
	cfg := Default()
	cfg.DBDriver = "sqlite"
	cfg.DBDSN = "file:config_test?mode=memory&cache=shared"

	db, err := InitDB(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.NoError(t, sqlDB.Ping())

	cfg.DBDriver = "oracle"
	_, err = InitDB(cfg)
	assert.Error(t, err)
}
