package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"moonrise.game/internal/persistence/indexdb"
)

// envConfig holds operational toggles. Paths stay on flags.
type envConfig struct {
	DeployEnv string `env:"DEPLOY_ENV"`

	// Unset means "on unless DEPLOY_ENV is staging or production".
	EnableAdminHTTP *bool `env:"MOONRISE_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool  `env:"MOONRISE_ENABLE_PPROF_HTTP"`

	// Overrides tuning autosave_every_ticks when > 0.
	AutosaveTicks int `env:"MOONRISE_AUTOSAVE_TICKS"`
	// sqlite (default) or none.
	IndexBackend string `env:"MOONRISE_INDEX_BACKEND" envDefault:"sqlite"`
	// Also write the JSONL history log next to the index.
	HistoryLog bool `env:"MOONRISE_HISTORY_LOG" envDefault:"true"`
}

func parseEnv() (envConfig, error) {
	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return envConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c envConfig) adminHTTP() bool {
	if c.EnableAdminHTTP != nil {
		return *c.EnableAdminHTTP
	}
	switch strings.ToLower(strings.TrimSpace(c.DeployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func openRuntimeIndex(dataDir, backend string) (*indexdb.SQLiteIndex, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "none", "off", "disabled":
		return nil, nil
	case "", "sqlite":
		return indexdb.OpenSQLite(indexdb.DefaultPath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported MOONRISE_INDEX_BACKEND: %s", backend)
	}
}
