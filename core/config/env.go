package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnv returns the value of key or def when the variable is unset or empty.
func GetEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// GetEnvDuration parses key as a time.Duration, falling back to def.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return d
	}
	return def
}

// GetEnvInt parses key as an int, falling back to def.
func GetEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return v
	}
	return def
}

// GetEnvBool parses key as a bool, falling back to def.
func GetEnvBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return b
	}
	return def
}
