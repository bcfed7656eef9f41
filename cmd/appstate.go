package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cosmos/ibc-relayer/relayer"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// appState is the modifiable state of the application.
type appState struct {
	// Log is the root logger of the application.
	// Consumers are expected to store and use local copies of the logger
	// after modifying with the .With method.
	Log *zap.Logger

	Viper *viper.Viper

	HomePath string
	Debug    bool
	Config   *relayer.Config
}

func (a *appState) configPath() string {
	return filepath.Join(a.HomePath, "config", "config.yaml")
}

// loadConfig reads the config file, if one exists, into a.Config and applies
// environment and flag overrides of the global settings.
func (a *appState) loadConfig() error {
	a.Config = relayer.DefaultConfig()

	cfgPath := a.configPath()
	if _, err := os.Stat(cfgPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyGlobalOverrides(a.Viper, &a.Config.Global)
		}
		return err
	}

	a.Viper.SetConfigFile(cfgPath)
	if err := a.Viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file at %s: %w", cfgPath, err)
	}

	file, err := os.ReadFile(a.Viper.ConfigFileUsed())
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	cfg := relayer.DefaultConfig()
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}
	if cfg.Chains == nil {
		cfg.Chains = make(relayer.ChainConfigs)
	}
	if cfg.Paths == nil {
		cfg.Paths = make(relayer.Paths)
	}
	if err := applyGlobalOverrides(a.Viper, &cfg.Global); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("error parsing config %s: %w", cfgPath, err)
	}
	a.Config = cfg
	return nil
}

// applyGlobalOverrides applies global settings set through IBCRELAYER_GLOBAL_*
// environment variables.
func applyGlobalOverrides(v *viper.Viper, g *relayer.GlobalConfig) error {
	durations := map[string]*time.Duration{
		"global.poll-interval":         &g.PollInterval,
		"global.submit-timeout":        &g.SubmitTimeout,
		"global.backoff":               &g.Backoff,
		"global.max-backoff":           &g.MaxBackoff,
		"global.misbehaviour-interval": &g.MisbehaviourInterval,
	}
	for key, d := range durations {
		if v.IsSet(key) {
			*d = v.GetDuration(key)
		}
	}
	if v.IsSet("global.max-retries") {
		g.MaxRetries = v.GetUint("global.max-retries")
	}
	if v.IsSet("global.max-msgs-per-tx") {
		g.MaxMsgsPerTx = v.GetInt("global.max-msgs-per-tx")
	}
	if v.IsSet("global.initial-block-history") {
		g.InitialBlockHistory = v.GetUint64("global.initial-block-history")
	}
	if v.IsSet("global.metrics-listen-addr") {
		g.MetricsListenAddr = v.GetString("global.metrics-listen-addr")
	}
	if v.IsSet("global.debug-listen-addr") {
		g.DebugListenAddr = v.GetString("global.debug-listen-addr")
	}
	if v.IsSet("global.cursor-db") {
		g.CursorDB = v.GetString("global.cursor-db")
	}
	return g.Validate()
}

// OverwriteConfig overwrites the config files on disk with the serialization of cfg,
// and it replaces a.Config with cfg.
//
// It is possible to use a brand new Config argument,
// but typically the argument is a.Config.
func (a *appState) OverwriteConfig(cfg *relayer.Config) error {
	cfgPath := a.configPath()
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("failed to check existence of config file at %s: %w", cfgPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to validate config at %s: %w", cfgPath, err)
	}

	var out bytes.Buffer
	if err := writeConfig(&out, cfg); err != nil {
		return err
	}

	if err := os.WriteFile(cfgPath, out.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file at %s: %w", cfgPath, err)
	}

	a.Config = cfg
	return nil
}

// AddPathFromFile modifies a.Config.Paths to include the content stored in the given file.
// If a non-nil error is returned, a.Config.Paths is not modified.
func (a *appState) AddPathFromFile(file, name string) error {
	byt, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	p := &relayer.Path{}
	if err = json.Unmarshal(byt, &p); err != nil {
		return fmt.Errorf("failed to unmarshal path file %s: %w", file, err)
	}

	return a.Config.Paths.Add(name, p)
}

// chains builds the providers of every configured chain.
func (a *appState) chains() (relayer.Chains, error) {
	return a.Config.BuildChains(a.Log)
}

// pathChains returns the path named name with its src and dst chains.
func (a *appState) pathChains(name string) (*relayer.Path, *relayer.Chain, *relayer.Chain, error) {
	chains, err := a.chains()
	if err != nil {
		return nil, nil, nil, err
	}
	src, dst, err := a.Config.ChainsFromPath(chains, name)
	if err != nil {
		return nil, nil, nil, err
	}
	return a.Config.Paths.MustGet(name), src, dst, nil
}

// cursorStore opens the configured cursor database. Without one, cursors
// are kept in memory. The returned function closes the store.
func (a *appState) cursorStore() (processor.CursorStore, func(), error) {
	if a.Config.Global.CursorDB == "" {
		return processor.NewMemoryCursorStore(), func() {}, nil
	}
	dbPath := a.Config.Global.CursorDB
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(a.HomePath, dbPath)
	}
	store, err := processor.OpenBoltCursorStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cursor db %s: %w", dbPath, err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			a.Log.Warn("Failed to close cursor db", zap.String("path", dbPath), zap.Error(err))
		}
	}, nil
}
