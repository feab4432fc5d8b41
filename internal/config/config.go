package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Config holds everything the composition roots need, loaded from the
// environment (optionally seeded from a .env file).
type Config struct {
	TestSwitch      bool
	ProdConeDataDir string
	TestConeDataDir string

	ConeDataDelimiter      string
	UpdateTimeLimitMinutes float64

	MailingListLoc                   string
	MailingListTimeLimitMinutes      float64
	MailingListCooldownStrictMinutes bool

	SerializeWrites bool

	FinishTime  string
	StaticDir   string
	Port        string
	LogFile     string
	LogDir      string
	DatabaseURL string
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without
// touching .env and without validating.
func FromEnv() *Config {
	return &Config{
		TestSwitch:      GetBool("TEST_SWITCH", false),
		ProdConeDataDir: Get("PROD_CONE_DATA_DIR", "data/cones"),
		TestConeDataDir: Get("TEST_CONE_DATA_DIR", "test_data"),

		ConeDataDelimiter:      Get("CONE_DATA_DELIMITER", "|"),
		UpdateTimeLimitMinutes: GetFloat("UPDATE_TIME_LIMIT_MINUTES", 10),

		MailingListLoc:                   Get("MAILING_LIST_LOC", "data/mailing_list.csv"),
		MailingListTimeLimitMinutes:      GetFloat("MAILING_LIST_TIME_LIMIT_MINUTES", 10),
		MailingListCooldownStrictMinutes: GetBool("MAILING_LIST_COOLDOWN_STRICT_MINUTES", false),

		SerializeWrites: GetBool("STORE_SERIALIZE_WRITES", true),

		FinishTime:  Get("FINISH_TIME", ""),
		StaticDir:   Get("STATIC_DIR", "static"),
		Port:        Get("PORT", "8080"),
		LogFile:     Get("LOG_FILE", ""),
		LogDir:      Get("LOG_DIR", ""),
		DatabaseURL: Get("DATABASE_URL", ""),
	}
}

// Validate rejects values the stores cannot work with.
func (c *Config) Validate() error {
	var errs []error

	if utf8.RuneCountInString(c.ConeDataDelimiter) != 1 {
		errs = append(errs, fmt.Errorf("CONE_DATA_DELIMITER must be exactly one character, got %q", c.ConeDataDelimiter))
	} else if strings.ContainsAny(c.ConeDataDelimiter, "\r\n") {
		errs = append(errs, errors.New("CONE_DATA_DELIMITER cannot be a line break"))
	}
	if c.UpdateTimeLimitMinutes < 0 {
		errs = append(errs, fmt.Errorf("UPDATE_TIME_LIMIT_MINUTES must be >= 0, got %v", c.UpdateTimeLimitMinutes))
	}
	if c.MailingListTimeLimitMinutes < 0 {
		errs = append(errs, fmt.Errorf("MAILING_LIST_TIME_LIMIT_MINUTES must be >= 0, got %v", c.MailingListTimeLimitMinutes))
	}
	if strings.TrimSpace(c.ConeDataDir()) == "" {
		errs = append(errs, errors.New("cone data dir is empty"))
	}
	if strings.TrimSpace(c.MailingListLoc) == "" {
		errs = append(errs, errors.New("MAILING_LIST_LOC is empty"))
	}
	if c.LogFile != "" && c.LogDir != "" {
		errs = append(errs, errors.New("set only one of LOG_FILE and LOG_DIR"))
	}
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ConeDataDir returns the marker directory selected by TEST_SWITCH.
func (c *Config) ConeDataDir() string {
	if c.TestSwitch {
		return c.TestConeDataDir
	}
	return c.ProdConeDataDir
}

// UpdateCooldown is the per (marker, IP) window as a duration.
func (c *Config) UpdateCooldown() time.Duration {
	return minutes(c.UpdateTimeLimitMinutes)
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
		log.Printf("config: ignoring %s=%q: not a number", key, v)
	}
	return fallback
}

func GetBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		log.Printf("config: ignoring %s=%q: not a boolean", key, v)
	}
	return fallback
}
