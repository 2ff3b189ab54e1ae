// Package config loads grid-engine runtime configuration from the process
// environment, using the same dependency-free whitelist .env loader the
// rest of this codebase has always used rather than pulling in a dotenv
// library.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
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

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// neededKeys whitelists the environment keys the grid bot reads. Anything
// else in a .env file (sidecar secrets, unrelated knobs) is ignored so that
// loading a shared .env can never leak values this process has no business
// touching.
var neededKeys = map[string]struct{}{
	"GRID_ASSET": {}, "GRID_MARKET_TYPE": {}, "GRID_LOWER_PRICE": {}, "GRID_UPPER_PRICE": {},
	"GRID_NUM_GRIDS": {}, "GRID_SPACING": {}, "GRID_TOTAL_INVESTMENT": {}, "GRID_FIXED_BASE_SIZE": {},
	"GRID_VARIANT": {}, "GRID_LEVERAGE": {}, "GRID_MAX_MARGIN_RATIO": {}, "GRID_TRIGGER_PRICE": {},
	"GRID_STATE_DIR": {}, "GRID_STATE_SAVE_INTERVAL_SEC": {}, "GRID_RISK_CHECK_INTERVAL_SEC": {},
	"GRID_MAX_CONSECUTIVE_ERRORS": {}, "GRID_PAPER_FEE_RATE": {}, "PORT": {},
}

// LoadEnv reads .env from "." and ".." and sets only whitelisted keys,
// without overriding variables already present in the environment.
func LoadEnv() {
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := neededKeys[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
