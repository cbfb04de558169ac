package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized environment key for the reconciliation
// service. Nothing here is hard-coded into sources; all fields are
// populated from the environment once at startup via Load.
type Config struct {
	AmountTolerance   float64
	DateWindowDays    int
	AutoMatchConf     float64
	SuggestConf       float64
	SyncIntervalSecs  int
	DBConnectTimeoutS int
	DBMaxRetries      int
	APITimeoutSecs    int
	APIMaxRetries     int

	DBPath string

	AgencyAliases map[string][]string

	RedisAddr string

	HTTPPort string
}

var cfg *Config

// Load parses environment variables into the process-wide Config,
// applying defaults for anything unset. Safe to call multiple times;
// later calls replace the cached config.
func Load() *Config {
	c := &Config{
		AmountTolerance:   floatFromEnv("AMOUNT_TOL", 0.01),
		DateWindowDays:    intFromEnv("DATE_WINDOW_DAYS", 3),
		AutoMatchConf:     floatFromEnv("AUTO_MATCH_CONF", 0.80),
		SuggestConf:       floatFromEnv("SUGGEST_CONF", 0.50),
		SyncIntervalSecs:  intFromEnv("SYNC_INTERVAL_SECONDS", 300),
		DBConnectTimeoutS: intFromEnv("DB_CONNECT_TIMEOUT", 10),
		DBMaxRetries:      intFromEnv("DB_MAX_RETRIES", 3),
		APITimeoutSecs:    intFromEnv("API_TIMEOUT", 30),
		APIMaxRetries:     intFromEnv("API_MAX_RETRIES", 3),
		DBPath:            stringFromEnv("RECON_DB_PATH", "reconciliation.db"),
		AgencyAliases:     parseAgencyAliases(os.Getenv("AGENCY_ALIASES")),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		HTTPPort:          stringFromEnv("PORT", "8080"),
	}
	cfg = c
	return c
}

// Get returns the cached config, loading it on first use.
func Get() *Config {
	if cfg == nil {
		return Load()
	}
	return cfg
}

// parseAgencyAliases decodes "Canonical Name=alias one|alias two;Other=alias"
// into a canonical-name -> aliases table. Malformed entries are skipped.
func parseAgencyAliases(raw string) map[string][]string {
	out := make(map[string][]string)
	if strings.TrimSpace(raw) == "" {
		return out
	}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		canonical := strings.TrimSpace(parts[0])
		if canonical == "" {
			continue
		}
		var aliases []string
		for _, a := range strings.Split(parts[1], "|") {
			a = strings.TrimSpace(a)
			if a != "" {
				aliases = append(aliases, a)
			}
		}
		out[canonical] = aliases
	}
	return out
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
