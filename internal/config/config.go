package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL           string
	ServerAddr            string
	GatewayBaseURL        string
	GuildID               string
	SupportRoleID         string
	MidmanRoleID          string
	PaymentProfilesPath   string
	ExternalCallTimeout   time.Duration
	CreateCooldown        time.Duration
	CooldownSweepEvery    time.Duration
	ShopCreateGuardExpr   string
	MidmanCreateGuardExpr string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "caseflow")
		pass := getenv("POSTGRES_PASSWORD", "caseflow_pass")
		db := getenv("POSTGRES_DB", "caseflow")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	cfg := &Config{
		DatabaseURL:           dsn,
		ServerAddr:            getenv("SERVER_ADDR", "0.0.0.0:8080"),
		GatewayBaseURL:        getenv("GATEWAY_BASE_URL", "http://localhost:8090"),
		GuildID:               os.Getenv("GUILD_ID"),
		SupportRoleID:         os.Getenv("SUPPORT_ROLE_ID"),
		MidmanRoleID:          os.Getenv("MIDMAN_ROLE_ID"),
		PaymentProfilesPath:   getenv("PAYMENT_PROFILES_PATH", "configs/payment_profiles.yaml"),
		ExternalCallTimeout:   parseDuration(os.Getenv("EXTERNAL_CALL_TIMEOUT"), 10*time.Second),
		CreateCooldown:        parseDuration(os.Getenv("CREATE_COOLDOWN"), time.Minute),
		CooldownSweepEvery:    parseDuration(os.Getenv("COOLDOWN_SWEEP_INTERVAL"), 5*time.Minute),
		ShopCreateGuardExpr:   os.Getenv("SHOP_CREATE_GUARD"),
		MidmanCreateGuardExpr: os.Getenv("MIDMAN_CREATE_GUARD"),
	}
	if cfg.SupportRoleID == "" || cfg.MidmanRoleID == "" {
		return nil, fmt.Errorf("SUPPORT_ROLE_ID and MIDMAN_ROLE_ID are required")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}
