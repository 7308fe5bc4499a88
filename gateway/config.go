package gateway

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is a configuration for the payment gateway application
type Config struct {
	HTTPAddr        string `yaml:"http_addr" env:"HTTP_ADDR" env-default:"localhost:9090"`
	ISO8583Addr     string `yaml:"iso8583_addr" env:"ISO8583_ADDR" env-default:"localhost:8583"`
	DatabaseDSN     string `yaml:"db_dsn" env:"DB_DSN"`
	SQLitePath      string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"paygate.db"`
	AllowMemBackend bool   `yaml:"allow_mem_backend_for_tests" env:"ALLOW_MEM_BACKEND_FOR_TESTS"`

	// RepoBackend selects the card store and ledger: pg, sqlite or mem (tests only).
	RepoBackend string `yaml:"repo_backend" env:"REPO_BACKEND" env-default:"sqlite"`

	// PANHashKey is the HMAC pepper used to derive the stored card lookup key.
	PANHashKey string `yaml:"pan_hash_key" env:"PAN_HASH_KEY" env-default:"dev-secret-pepper"`

	// ExpiryTZ is an IANA timezone name for expiry computations (e.g., "America/Mexico_City").
	ExpiryTZ string `yaml:"expiry_tz" env:"EXPIRY_TZ"`

	// ProductYears maps card product to validity years (e.g., credit=3, debit=5).
	ProductYears map[string]int `yaml:"product_years" env:"PRODUCT_YEARS"`

	// CardProduct is the default product used by issued cards (e.g., "debit").
	CardProduct string `yaml:"card_product" env:"CARD_PRODUCT" env-default:"debit"`

	// BINPrefix sets the BIN prefix used to generate PANs (6/8/9 digits).
	BINPrefix string `yaml:"bin_prefix" env:"BIN_PREFIX" env-default:"421234"`

	// Sandbox approves card numbers unknown to the store without running the rules.
	Sandbox bool `yaml:"sandbox_unknown_cards" env:"SANDBOX_UNKNOWN_CARDS"`

	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    "localhost:9090",
		ISO8583Addr: "localhost:8583",
		RepoBackend: "sqlite",
		SQLitePath:  "paygate.db",
		PANHashKey:  "dev-secret-pepper",
		CardProduct: "debit",
		BINPrefix:   "421234",
		CORSOrigins: []string{"http://localhost:5173"},
	}
}

// LoadConfig reads path (YAML) when it exists and then applies the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			return cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}
