package relayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMetricsListenAddr = "127.0.0.1:5184"
	DefaultDebugListenAddr   = "127.0.0.1:5183"
	DefaultCursorDB          = "cursors.db"
)

// Config represents the config file for the relayer
type Config struct {
	Global GlobalConfig `yaml:"global" json:"global"`
	Chains ChainConfigs `yaml:"chains" json:"chains"`
	Paths  Paths        `yaml:"paths" json:"paths"`
}

// GlobalConfig describes any global relayer settings
type GlobalConfig struct {
	PollInterval        time.Duration `yaml:"poll-interval" json:"poll-interval"`
	SubmitTimeout       time.Duration `yaml:"submit-timeout" json:"submit-timeout"`
	MaxRetries          uint          `yaml:"max-retries" json:"max-retries"`
	Backoff             time.Duration `yaml:"backoff" json:"backoff"`
	MaxBackoff          time.Duration `yaml:"max-backoff" json:"max-backoff"`
	MaxMsgsPerTx        int           `yaml:"max-msgs-per-tx" json:"max-msgs-per-tx"`
	InitialBlockHistory uint64        `yaml:"initial-block-history" json:"initial-block-history"`
	// MisbehaviourInterval is the poll interval of misbehaviour monitors.
	// Zero disables them.
	MisbehaviourInterval time.Duration `yaml:"misbehaviour-interval" json:"misbehaviour-interval"`
	MetricsListenAddr    string        `yaml:"metrics-listen-addr" json:"metrics-listen-addr"`
	DebugListenAddr      string        `yaml:"debug-listen-addr" json:"debug-listen-addr"`
	// CursorDB is the bbolt file, relative to the home directory, that keeps
	// event cursors across restarts. Empty keeps cursors in memory.
	CursorDB string `yaml:"cursor-db" json:"cursor-db"`
}

// DefaultConfig returns a config with default global settings and no chains
// or paths.
func DefaultConfig() *Config {
	return &Config{
		Global: newDefaultGlobalConfig(),
		Chains: make(ChainConfigs),
		Paths:  make(Paths),
	}
}

func newDefaultGlobalConfig() GlobalConfig {
	opts := processor.DefaultOptions()
	return GlobalConfig{
		PollInterval:         opts.PollInterval,
		SubmitTimeout:        opts.SubmitTimeout,
		MaxRetries:           opts.MaxRetries,
		Backoff:              opts.Backoff,
		MaxBackoff:           opts.MaxBackoff,
		MaxMsgsPerTx:         opts.MaxMsgsPerTx,
		InitialBlockHistory:  opts.InitialBlockHistory,
		MisbehaviourInterval: 5 * time.Second,
		MetricsListenAddr:    DefaultMetricsListenAddr,
		DebugListenAddr:      DefaultDebugListenAddr,
		CursorDB:             DefaultCursorDB,
	}
}

// Options returns the path processor options of the global config.
func (g GlobalConfig) Options() processor.Options {
	return processor.Options{
		PollInterval:        g.PollInterval,
		MaxRetries:          g.MaxRetries,
		Backoff:             g.Backoff,
		MaxBackoff:          g.MaxBackoff,
		SubmitTimeout:       g.SubmitTimeout,
		MaxMsgsPerTx:        g.MaxMsgsPerTx,
		InitialBlockHistory: g.InitialBlockHistory,
	}
}

// MonitorOptions returns the options of misbehaviour monitors.
func (g GlobalConfig) MonitorOptions() processor.Options {
	opts := g.Options()
	opts.PollInterval = g.MisbehaviourInterval
	return opts
}

func (g GlobalConfig) Validate() error {
	if err := g.Options().Validate(); err != nil {
		return err
	}
	if g.MisbehaviourInterval < 0 {
		return errors.New("misbehaviour interval cannot be negative")
	}
	return nil
}

// Validate checks the global settings, every chain and every path.
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("invalid global config: %w", err)
	}
	for name, chain := range c.Chains {
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("invalid chain %s: %w", name, err)
		}
	}
	for name, p := range c.Paths {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid path %s: %w", name, err)
		}
	}
	return nil
}

// BuildChains creates the providers of every configured chain, keyed by
// chain id.
func (c *Config) BuildChains(log *zap.Logger) (Chains, error) {
	chains := make(Chains, len(c.Chains))
	for _, name := range c.Chains.Names() {
		cc := c.Chains[name]
		prov, err := cc.Value.NewProvider(log.With(zap.String("chain_name", name)))
		if err != nil {
			return nil, fmt.Errorf("failed to build chain %s: %w", name, err)
		}
		chain := NewChain(log, prov)
		if cc.Witness != nil {
			witness, err := cc.Witness.NewProvider(log.With(zap.String("chain_name", name), zap.String("role", "witness")))
			if err != nil {
				return nil, fmt.Errorf("failed to build witness of chain %s: %w", name, err)
			}
			if witness.ChainID() != prov.ChainID() {
				return nil, fmt.Errorf("witness of chain %s serves %s, expected %s", name, witness.ChainID(), prov.ChainID())
			}
			chain.Witness = witness
		}
		if _, ok := chains[chain.ChainID()]; ok {
			return nil, fmt.Errorf("chain id %s is configured twice", chain.ChainID())
		}
		chains[chain.ChainID()] = chain
	}
	return chains, nil
}

// ChainsFromPath takes the path name and returns the src and dst chains with
// the path ends set.
func (c *Config) ChainsFromPath(chains Chains, pathName string) (src, dst *Chain, err error) {
	p, err := c.Paths.Get(pathName)
	if err != nil {
		return nil, nil, err
	}
	if src, err = chains.Get(p.Src.ChainID); err != nil {
		return nil, nil, err
	}
	if dst, err = chains.Get(p.Dst.ChainID); err != nil {
		return nil, nil, err
	}
	if err = src.SetPath(p.Src); err != nil {
		return nil, nil, err
	}
	if err = dst.SetPath(p.Dst); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// ChainConfigs are the configured chains keyed by name.
type ChainConfigs map[string]*ChainConfig

// Names returns the sorted chain names.
func (c ChainConfigs) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainConfig is the configuration of one chain. Type selects the provider
// implementation Value and Witness are decoded into.
type ChainConfig struct {
	Type    string
	Value   provider.ProviderConfig
	Witness provider.ProviderConfig
}

func (cc *ChainConfig) Validate() error {
	if cc.Value == nil {
		return fmt.Errorf("chain of type %q has no value", cc.Type)
	}
	if err := cc.Value.Validate(); err != nil {
		return err
	}
	if cc.Witness != nil {
		if err := cc.Witness.Validate(); err != nil {
			return fmt.Errorf("invalid witness: %w", err)
		}
	}
	return nil
}

type chainConfigOutput struct {
	Type    string                  `yaml:"type" json:"type"`
	Value   provider.ProviderConfig `yaml:"value" json:"value"`
	Witness provider.ProviderConfig `yaml:"witness,omitempty" json:"witness,omitempty"`
}

func (cc ChainConfig) MarshalYAML() (any, error) {
	return chainConfigOutput{Type: cc.Type, Value: cc.Value, Witness: cc.Witness}, nil
}

func (cc ChainConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(chainConfigOutput{Type: cc.Type, Value: cc.Value, Witness: cc.Witness})
}

// UnmarshalYAML decodes value and witness into the config type registered
// for the chain type.
func (cc *ChainConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Type    string     `yaml:"type"`
		Value   yaml.Node  `yaml:"value"`
		Witness *yaml.Node `yaml:"witness"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	value, err := provider.NewProviderConfig(raw.Type)
	if err != nil {
		return err
	}
	if err := raw.Value.Decode(value); err != nil {
		return fmt.Errorf("failed to decode %s chain config: %w", raw.Type, err)
	}
	cc.Type, cc.Value, cc.Witness = raw.Type, value, nil
	if raw.Witness != nil {
		witness, _ := provider.NewProviderConfig(raw.Type)
		if err := raw.Witness.Decode(witness); err != nil {
			return fmt.Errorf("failed to decode %s witness config: %w", raw.Type, err)
		}
		cc.Witness = witness
	}
	return nil
}

// UnmarshalJSON is the JSON counterpart of UnmarshalYAML, used by files added
// through the CLI.
func (cc *ChainConfig) UnmarshalJSON(bz []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Value   json.RawMessage `json:"value"`
		Witness json.RawMessage `json:"witness"`
	}
	if err := json.Unmarshal(bz, &raw); err != nil {
		return err
	}
	value, err := provider.NewProviderConfig(raw.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.Value, value); err != nil {
		return fmt.Errorf("failed to decode %s chain config: %w", raw.Type, err)
	}
	cc.Type, cc.Value, cc.Witness = raw.Type, value, nil
	if len(raw.Witness) > 0 && string(raw.Witness) != "null" {
		witness, _ := provider.NewProviderConfig(raw.Type)
		if err := json.Unmarshal(raw.Witness, witness); err != nil {
			return fmt.Errorf("failed to decode %s witness config: %w", raw.Type, err)
		}
		cc.Witness = witness
	}
	return nil
}

// MustYAML returns the yaml string representation of the config
func (c *Config) MustYAML() []byte {
	out, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	return out
}
