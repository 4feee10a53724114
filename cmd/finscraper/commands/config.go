package commands

import (
	"fmt"

	"finscraper/internal/profile"
	"finscraper/internal/runstore"
	"finscraper/lib/configutil"
)

const default_store_file = "<dev_state>/runs.db"

type Config struct {
	// Timezone run times are shown in, the local zone when empty.
	Timezone    string                         `json:"timezone"`
	Store       runstore.Database              `json:"store"`
	Profiles    []profile.Profile              `json:"profiles"`
	Credentials map[string]profile.Credentials `json:"credentials"`
}

func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Store.File == "" && cfg.Store.Url == "" {
		cfg.Store.File = default_store_file
	}
	return cfg, nil
}
