package config

import (
	"os"
	"strconv"
	"time"
)

type FinanceConfig struct {
	BootstrapCurrency string
	PinMaxAttempts    int
	PinAttemptWindow  time.Duration
	HistoryPageLimit  int
}

func LoadFinanceConfig() *FinanceConfig {
	return &FinanceConfig{
		BootstrapCurrency: getEnv("FINANCE_BOOTSTRAP_CURRENCY", "ETP"),
		PinMaxAttempts:    getEnvAsInt("FINANCE_PIN_MAX_ATTEMPTS", 5),
		PinAttemptWindow:  getEnvAsDuration("FINANCE_PIN_ATTEMPT_WINDOW", 15*time.Minute),
		HistoryPageLimit:  getEnvAsInt("FINANCE_HISTORY_PAGE_LIMIT", 20),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
