package meshpart

// Option configures a LoadBalancer with optional dependencies.
type Option func(*balancerOptions)

// balancerOptions holds optional LoadBalancer configuration.
type balancerOptions struct {
	partitioner   Partitioner
	redistributor Redistributor
	hooks         *Hooks
	metrics       MetricsCollector
	logger        Logger
}

// WithPartitioner sets the partitioning strategy.
//
// Without this option the strategy named by Config.Strategy is built.
//
// Parameters:
//   - p: Partitioner implementation
//
// Returns:
//   - Option: Functional option for NewLoadBalancer
//
// Example:
//
//	p := strategy.NewGraphPartitioner(world, strategy.WithChildWeight(0.5))
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithPartitioner(p))
func WithPartitioner(p Partitioner) Option {
	return func(o *balancerOptions) {
		o.partitioner = p
	}
}

// WithRedistributor sets the collaborator that migrates elements after a partition.
//
// Without this option Rebalance only computes the assignment.
//
// Parameters:
//   - r: Redistributor implementation
//
// Returns:
//   - Option: Functional option for NewLoadBalancer
//
// Example:
//
//	exchange := meshsim.NewExchange(grids)
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithRedistributor(exchange.Redistributor(world)))
func WithRedistributor(r Redistributor) Option {
	return func(o *balancerOptions) {
		o.redistributor = r
	}
}

// WithHooks sets event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewLoadBalancer
//
// Example:
//
//	hooks := &meshpart.Hooks{
//	    OnRebalanced: func(ctx context.Context, rec meshpart.QualityRecord) error {
//	        return report(rec)
//	    },
//	}
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *balancerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewLoadBalancer
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *balancerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewLoadBalancer
//
// Example:
//
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithLogger(meshpart.NewSlogLogger(nil)))
func WithLogger(logger Logger) Option {
	return func(o *balancerOptions) {
		o.logger = logger
	}
}
