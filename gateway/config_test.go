package gateway

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("REPO_BACKEND", "pg")
	t.Setenv("DB_DSN", "postgres://paygate@localhost/paygate?sslmode=disable")
	t.Setenv("SANDBOX_UNKNOWN_CARDS", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "pg", cfg.RepoBackend)
	require.Equal(t, "postgres://paygate@localhost/paygate?sslmode=disable", cfg.DatabaseDSN)
	require.True(t, cfg.Sandbox)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	require.Equal(t, "localhost:9090", cfg.HTTPAddr)
	require.Equal(t, "debit", cfg.CardProduct)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"http_addr: 0.0.0.0:8080",
		"repo_backend: sqlite",
		"sqlite_path: /var/lib/paygate/paygate.db",
		"expiry_tz: America/Mexico_City",
		"product_years:",
		"  credit: 4",
	}, "\n")), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	require.Equal(t, "/var/lib/paygate/paygate.db", cfg.SQLitePath)
	require.Equal(t, "America/Mexico_City", cfg.ExpiryTZ)
	require.Equal(t, map[string]int{"credit": 4}, cfg.ProductYears)
	require.False(t, cfg.Sandbox)
	require.Equal(t, "dev-secret-pepper", cfg.PANHashKey)
}

func TestLoadConfig_MissingFileFallsBackToEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:7000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr)
}

func TestSeedCards(t *testing.T) {
	cards, err := DefaultSeedCards()
	require.NoError(t, err)
	require.Len(t, cards, 10)

	first := cards[0]
	require.Equal(t, "4532015112830366", first.PAN)
	require.Equal(t, "Juan Pérez García", first.CardholderName)
	require.Equal(t, "12/26", first.ExpirationDate)
	require.Equal(t, "5000.00", first.Balance.StringFixed(2))
	require.True(t, first.Verified)

	amex := cards[5]
	require.Equal(t, "378282246310005", amex.PAN)
	require.Equal(t, "9876", amex.CVV)
	require.Equal(t, 3, amex.Attempts)
	require.True(t, amex.Blocked)

	path := filepath.Join(t.TempDir(), "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - card_number: \"4000056655665556\"\n    cvv: \"789\"\n    balance: 12.5\n"), 0o600))
	loaded, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "12.50", loaded[0].Balance.StringFixed(2))

	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - pan: \"4000056655665556\"\n"), 0o600))
	_, err = LoadSeedFile(path)
	require.Error(t, err, "unknown keys are rejected")
}
