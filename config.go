package meshpart

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/meshpart/comm"
	"github.com/arloliu/meshpart/strategy"
	"github.com/arloliu/meshpart/topology"
	"github.com/arloliu/meshpart/types"
)

// CollectiveConfig configures collectives over NATS JetStream KV.
type CollectiveConfig struct {
	// Bucket is the KV bucket holding collective contributions.
	Bucket string `yaml:"bucket"`

	// TTL is how long contributions remain in KV. Must exceed the longest
	// time one process can lag behind the others.
	TTL time.Duration `yaml:"ttl"`

	// OperationTimeout bounds a single collective.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// MaxRetries is the number of retries for KV operations failing with
	// connectivity errors.
	MaxRetries int `yaml:"maxRetries"`
}

// RedistributionConfig configures migration plan publishing.
type RedistributionConfig struct {
	// Bucket is the KV bucket receiving migration plans.
	Bucket string `yaml:"bucket"`

	// KeyPrefix is the prefix of migration plan keys.
	KeyPrefix string `yaml:"keyPrefix"`

	// TTL is how long plans remain in KV (0 = no expiration).
	TTL time.Duration `yaml:"ttl"`
}

// GraphConfig tunes the graph strategy.
type GraphConfig struct {
	// ChildWeight adds ChildWeight*len(children) to the load of every element.
	ChildWeight float64 `yaml:"childWeight"`

	// ImbalanceTolerance skips re-partitioning while min/max load >= 1-tolerance.
	ImbalanceTolerance float64 `yaml:"imbalanceTolerance"`
}

// Config is the configuration for the LoadBalancer.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// BalanceThreshold is the distribution quality (0.0-1.0) below which
	// Rebalance re-partitions.
	BalanceThreshold float64 `yaml:"balanceThreshold"`

	// ElementThreshold is the minimum number of elements per target process
	// for a hierarchy level to be split.
	ElementThreshold int `yaml:"elementThreshold"`

	// BaseLevel is the lowest grid level that is partitioned; coarser levels stay local.
	BaseLevel int `yaml:"baseLevel"`

	// ClusteredSiblings keeps all children of a parent in one partition (default: true).
	ClusteredSiblings *bool `yaml:"clusteredSiblings"`

	// Verbose logs partition decisions at info level.
	Verbose bool `yaml:"verbose"`

	// VerifyHierarchy checks before each rebalance that every process uses the
	// same process hierarchy (default: true). Costs two reductions.
	VerifyHierarchy *bool `yaml:"verifyHierarchy"`

	// MaxQualityRecords bounds the number of retained quality records; the oldest
	// are dropped first. 0 uses the default.
	MaxQualityRecords int `yaml:"maxQualityRecords"`

	// Strategy names the partitioner built when none is passed with WithPartitioner.
	Strategy string `yaml:"strategy"`

	// Graph tunes the graph strategy.
	Graph GraphConfig `yaml:"graph"`

	// Hierarchy controls process hierarchy planning.
	Hierarchy topology.Options `yaml:"hierarchy"`

	// Collective controls NATS collectives.
	Collective CollectiveConfig `yaml:"collective"`

	// Redistribution controls migration plan publishing.
	Redistribution RedistributionConfig `yaml:"redistribution"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	clustered := true
	verify := true

	return Config{
		BalanceThreshold:  0.9,
		ElementThreshold:  1,
		BaseLevel:         0,
		ClusteredSiblings: &clustered,
		VerifyHierarchy:   &verify,
		MaxQualityRecords: 1024,
		Strategy:          strategy.BisectionName,
		Hierarchy:         topology.DefaultOptions(),
		Collective: CollectiveConfig{
			Bucket:           "meshpart-collectives",
			TTL:              10 * time.Minute,
			OperationTimeout: 30 * time.Second,
			MaxRetries:       5,
		},
		Redistribution: RedistributionConfig{
			Bucket:    "meshpart-migration",
			KeyPrefix: "migration",
			TTL:       0, // plans are replaced on every publish
		},
	}
}

// SetDefaults fills in missing configuration values with defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.BalanceThreshold == 0 {
		cfg.BalanceThreshold = defaults.BalanceThreshold
	}
	if cfg.ElementThreshold == 0 {
		cfg.ElementThreshold = defaults.ElementThreshold
	}
	if cfg.ClusteredSiblings == nil {
		cfg.ClusteredSiblings = defaults.ClusteredSiblings
	}
	if cfg.VerifyHierarchy == nil {
		cfg.VerifyHierarchy = defaults.VerifyHierarchy
	}
	if cfg.MaxQualityRecords == 0 {
		cfg.MaxQualityRecords = defaults.MaxQualityRecords
	}
	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	cfg.Hierarchy.SetDefaults()
	if cfg.Collective.Bucket == "" {
		cfg.Collective.Bucket = defaults.Collective.Bucket
	}
	if cfg.Collective.TTL == 0 {
		cfg.Collective.TTL = defaults.Collective.TTL
	}
	if cfg.Collective.OperationTimeout == 0 {
		cfg.Collective.OperationTimeout = defaults.Collective.OperationTimeout
	}
	if cfg.Collective.MaxRetries == 0 {
		cfg.Collective.MaxRetries = defaults.Collective.MaxRetries
	}
	if cfg.Redistribution.Bucket == "" {
		cfg.Redistribution.Bucket = defaults.Redistribution.Bucket
	}
	if cfg.Redistribution.KeyPrefix == "" {
		cfg.Redistribution.KeyPrefix = defaults.Redistribution.KeyPrefix
	}
	// Note: Redistribution.TTL of 0 is valid (no expiration), so we don't apply default
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - 0 < BalanceThreshold <= 1
//   - ElementThreshold >= 1, BaseLevel >= 0, MaxQualityRecords >= 1
//   - Strategy is a known strategy name
//   - 0 <= Graph.ImbalanceTolerance <= 1, Graph.ChildWeight >= 0
//   - Collective.OperationTimeout < Collective.TTL, Collective.MaxRetries >= 0
//   - Hierarchy options valid
//
// Returns:
//   - error: Validation error wrapping ErrConfiguration, nil if valid
func (cfg *Config) Validate() error {
	if cfg.BalanceThreshold <= 0 || cfg.BalanceThreshold > 1 {
		return fmt.Errorf("%w: balanceThreshold must be in (0, 1], got %v", types.ErrConfiguration, cfg.BalanceThreshold)
	}
	if cfg.ElementThreshold < 1 {
		return fmt.Errorf("%w: elementThreshold must be >= 1, got %d", types.ErrConfiguration, cfg.ElementThreshold)
	}
	if cfg.BaseLevel < 0 {
		return fmt.Errorf("%w: baseLevel must be >= 0, got %d", types.ErrConfiguration, cfg.BaseLevel)
	}
	if cfg.MaxQualityRecords < 1 {
		return fmt.Errorf("%w: maxQualityRecords must be >= 1, got %d", types.ErrConfiguration, cfg.MaxQualityRecords)
	}

	if !slices.Contains(strategy.Names(), cfg.Strategy) {
		return fmt.Errorf("%w: unknown strategy %q (available: %v)", types.ErrConfiguration, cfg.Strategy, strategy.Names())
	}

	if cfg.Graph.ImbalanceTolerance < 0 || cfg.Graph.ImbalanceTolerance > 1 {
		return fmt.Errorf("%w: graph.imbalanceTolerance must be in [0, 1], got %v", types.ErrConfiguration, cfg.Graph.ImbalanceTolerance)
	}
	if cfg.Graph.ChildWeight < 0 {
		return fmt.Errorf("%w: graph.childWeight must be >= 0, got %v", types.ErrConfiguration, cfg.Graph.ChildWeight)
	}

	if cfg.Collective.OperationTimeout >= cfg.Collective.TTL {
		return fmt.Errorf(
			"%w: collective.operationTimeout (%v) must be < collective.ttl (%v) so contributions outlive a collective",
			types.ErrConfiguration, cfg.Collective.OperationTimeout, cfg.Collective.TTL,
		)
	}
	if cfg.Collective.MaxRetries < 0 {
		return fmt.Errorf("%w: collective.maxRetries must be >= 0, got %d", types.ErrConfiguration, cfg.Collective.MaxRetries)
	}

	return cfg.Hierarchy.Validate()
}

// ValidateWithWarnings logs warnings for valid but questionable values.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.BalanceThreshold > 0.99 {
		logger.Warn(
			"balanceThreshold is very close to 1, almost every rebalance will re-partition",
			"balanceThreshold", cfg.BalanceThreshold,
			"recommended", 0.9,
		)
	}

	if cfg.Strategy == strategy.BisectionName && (cfg.Graph.ChildWeight != 0 || cfg.Graph.ImbalanceTolerance != 0) {
		logger.Warn("graph settings are ignored by the bisection strategy", "strategy", cfg.Strategy)
	}

	if cfg.Collective.TTL < 4*cfg.Collective.OperationTimeout {
		logger.Warn(
			"collective TTL is short compared to the operation timeout",
			"ttl", cfg.Collective.TTL,
			"operationTimeout", cfg.Collective.OperationTimeout,
			"recommended", 4*cfg.Collective.OperationTimeout,
		)
	}
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path of the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Read, parse or validation error
//
// Example:
//
//	cfg, err := meshpart.LoadConfig("meshpart.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse %s: %w", types.ErrConfiguration, path, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// TestConfig returns a configuration with short timeouts for tests.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := meshpart.TestConfig()
//	cfg.BalanceThreshold = 0.95
//	lb, err := meshpart.NewLoadBalancer(&cfg, world)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Collective.OperationTimeout = 5 * time.Second
	cfg.Collective.TTL = time.Minute
	cfg.Collective.MaxRetries = 2
	cfg.Hierarchy.MinElementsPerProcPerLevel = 1

	return cfg
}

// StrategyOptions returns the strategy options described by cfg.
func (cfg *Config) StrategyOptions() []strategy.Option {
	clustered := cfg.ClusteredSiblings == nil || *cfg.ClusteredSiblings

	return []strategy.Option{
		strategy.WithClusteredSiblings(clustered),
		strategy.WithVerbose(cfg.Verbose),
		strategy.WithChildWeight(cfg.Graph.ChildWeight),
		strategy.WithImbalanceTolerance(cfg.Graph.ImbalanceTolerance),
	}
}

// NATSConfig returns the communicator configuration for one process of a run.
func (cfg *Config) NATSConfig(session string, rank, size int) comm.NATSConfig {
	return comm.NATSConfig{
		Bucket:           cfg.Collective.Bucket,
		Session:          session,
		Rank:             rank,
		Size:             size,
		TTL:              cfg.Collective.TTL,
		OperationTimeout: cfg.Collective.OperationTimeout,
		MaxRetries:       cfg.Collective.MaxRetries,
	}
}
