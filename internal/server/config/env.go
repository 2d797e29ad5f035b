package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from environment variables. Unset or
// malformed variables leave the current value untouched.
//
// Recognized variables:
//
//	RUN_ADDRESS      HTTP bind address
//	DATABASE_DSN     PostgreSQL DSN
//	SECRET_KEY       JWT HMAC secret key
//	TOKEN_VALIDITY   token validity duration (e.g. "24h")
//	BCRYPT_COST      bcrypt work factor
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		config.EndpointAddr = v
	}
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv("TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("BCRYPT_COST"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.BcryptCost = n
		}
	}
}
