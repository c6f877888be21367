package utils

import "os"

// GetEnv - Returns an environment variable value, or a default if unset/empty
func GetEnv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
