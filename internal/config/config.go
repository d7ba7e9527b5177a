// Package config loads application configuration from environment
// variables.  main loads a .env file first, so every value here can come
// from either source.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers.
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds the core runtime settings.
type Config struct {
	Env           string // application environment (dev, test, prod)
	Port          string // HTTP port to listen on
	StorageDriver string // mysql or memory

	DBUser            string
	DBPass            string
	DBHost            string
	DBPort            string
	DBName            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBMigrate         bool // create tables on startup

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	AdminEmail     string // seeded on startup when set together with AdminPassword
	AdminPassword  string

	RequestTimeout time.Duration // per-request deadline used by handlers
	HoldExpiry     time.Duration // unpaid holds older than this are released; 0 disables
	SweepInterval  time.Duration // how often the expiry and token sweeps run
}

// Load reads Config from the environment.  Missing required values are
// fatal.  Database settings are only required for the mysql driver.
func Load() Config {
	c := Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		StorageDriver: strings.ToLower(envStr("STORAGE_DRIVER", StorageMySQL)),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		AdminEmail:     envStr("ADMIN_EMAIL", ""),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),

		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		HoldExpiry:     envDur("HOLD_EXPIRY", 0),
		SweepInterval:  envDur("SWEEP_INTERVAL", time.Minute),
	}
	switch c.StorageDriver {
	case StorageMySQL:
		c.DBUser = must("DB_USER")
		c.DBPass = os.Getenv("DB_PASS")
		c.DBHost = must("DB_HOST")
		c.DBPort = must("DB_PORT")
		c.DBName = must("DB_NAME")
		c.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
		c.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 25)
		c.DBConnMaxLifetime = envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute)
		c.DBMigrate = envBool("DB_MIGRATE", true)
	case StorageMemory:
	default:
		log.Fatalf("invalid STORAGE_DRIVER %q (want mysql or memory)", c.StorageDriver)
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return strings.EqualFold(c.Env, "prod") }

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts the value to an int.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
