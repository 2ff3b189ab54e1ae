package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kallisto-labs/gridbot/internal/geometry"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/supervisor"
)

// Variant selects which controller flavor drives a grid instance.
type Variant string

const (
	VariantLevel Variant = "level"
	VariantZone  Variant = "zone"
)

// AppConfig bundles everything cmd/gridbot needs to wire one grid instance:
// the grid's own config, which controller variant to run it under, where
// state lives, the supervisor's timers, the paper simulator's fee rate, and
// the HTTP port serving /healthz, /metrics and the dashboard.
type AppConfig struct {
	Grid       gridcore.GridConfig
	Variant    Variant
	StateDir   string
	Port       int
	PaperFee   float64
	Supervisor supervisor.RunnerConfig
}

// Load reads GRID_* environment variables (already hydrated by LoadEnv) and
// returns a validated AppConfig, or the gridcore.GridError Validate produced.
func Load() (AppConfig, error) {
	asset := getEnv("GRID_ASSET", "BTC-USD")
	marketType := gridcore.MarketType(strings.ToLower(getEnv("GRID_MARKET_TYPE", "spot")))

	cfg := gridcore.NewGridConfig(
		asset,
		getEnvFloat("GRID_LOWER_PRICE", 0),
		getEnvFloat("GRID_UPPER_PRICE", 0),
		getEnvInt("GRID_NUM_GRIDS", 10),
	)
	cfg.MarketType = marketType
	cfg.TotalInvestment = getEnvFloat("GRID_TOTAL_INVESTMENT", 0)
	cfg.FixedBaseSize = getEnvFloat("GRID_FIXED_BASE_SIZE", 0)

	if strings.EqualFold(getEnv("GRID_SPACING", "arithmetic"), "geometric") {
		cfg.Spacing = geometry.Geometric
	}

	if v := getEnvFloat("GRID_TRIGGER_PRICE", 0); v > 0 {
		cfg.TriggerPrice = &v
	}
	if marketType == gridcore.MarketPerp {
		if lev := getEnvInt("GRID_LEVERAGE", 0); lev > 0 {
			cfg.Leverage = &lev
		}
		if mmr := getEnvFloat("GRID_MAX_MARGIN_RATIO", 0); mmr > 0 {
			cfg.MaxMarginRatio = &mmr
		}
	}

	stateDir := getEnv("GRID_STATE_DIR", ".")
	cfg.StateFile = filepath.Join(stateDir, gridcore.GenerateStateFilename(asset, marketType, time.Now()))
	cfg.StateSaveInterval = time.Duration(getEnvInt("GRID_STATE_SAVE_INTERVAL_SEC", 30)) * time.Second

	variant := Variant(strings.ToLower(getEnv("GRID_VARIANT", "level")))
	if variant != VariantZone {
		variant = VariantLevel
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	runnerCfg := supervisor.DefaultRunnerConfig()
	runnerCfg.StateSaveInterval = cfg.StateSaveInterval
	runnerCfg.RiskCheckInterval = time.Duration(getEnvInt("GRID_RISK_CHECK_INTERVAL_SEC", 30)) * time.Second
	runnerCfg.MaxConsecutiveErrors = getEnvInt("GRID_MAX_CONSECUTIVE_ERRORS", 5)

	return AppConfig{
		Grid:       cfg,
		Variant:    variant,
		StateDir:   stateDir,
		Port:       getEnvInt("PORT", 8080),
		PaperFee:   getEnvFloat("GRID_PAPER_FEE_RATE", 0.001),
		Supervisor: runnerCfg,
	}, nil
}
