package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arloliu/meshpart"
	"github.com/arloliu/meshpart/comm"
	"github.com/arloliu/meshpart/internal/kvutil"
	"github.com/arloliu/meshpart/internal/metrics"
	"github.com/arloliu/meshpart/meshsim"
	"github.com/arloliu/meshpart/redist"
	"github.com/arloliu/meshpart/topology"
	"github.com/arloliu/meshpart/types"
)

// simulateOptions holds the flags of the simulate command.
type simulateOptions struct {
	ranks        int
	nx, ny       int
	refinements  int
	strategy     string
	configPath   string
	metricsAddr  string
	natsURL      string
	embeddedNATS bool
	verbose      bool
	timeout      time.Duration
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Refine a structured grid and rebalance it over simulated processes",
		Long: `Builds an nx by ny quadrilateral grid on rank 0, then refines it level by level.
After every refinement a process hierarchy is planned from the global element counts
and every rank rebalances. Elements migrate between the in-memory grids of the ranks.

Collectives run in process by default, or over NATS JetStream KV with --nats-url or
--embedded-nats. In NATS mode migration plans are also published to KV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			return runSimulation(ctx, opts, logrus.StandardLogger(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.ranks, "ranks", 4, "Number of simulated processes")
	flags.IntVar(&opts.nx, "nx", 8, "Number of coarse elements in x direction")
	flags.IntVar(&opts.ny, "ny", 8, "Number of coarse elements in y direction")
	flags.IntVar(&opts.refinements, "refinements", 3, "Number of uniform refinements")
	flags.StringVar(&opts.strategy, "strategy", "", "Partitioning strategy (bisection, graph); overrides the config file")
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&opts.natsURL, "nats-url", "", "Run collectives over this NATS server")
	flags.BoolVar(&opts.embeddedNATS, "embedded-nats", false, "Run collectives over an in-process NATS server")
	flags.BoolVar(&opts.verbose, "verbose", false, "Log partition decisions at info level")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Abort the simulation after this long (0 = no limit)")

	return cmd
}

// simulation holds what the ranks share.
type simulation struct {
	cfg      meshpart.Config
	opts     simulateOptions
	runID    string
	log      *logrus.Logger
	metrics  types.MetricsCollector
	exchange *meshsim.Exchange
	worlds   []*comm.Communicator

	// NATS mode only, one per rank
	conns      []*nats.Conn
	publishers []*redist.KVPublisher

	balancers []*meshpart.LoadBalancer
	closers   []func()
}

// runSimulation runs one simulation and writes a report to out.
func runSimulation(ctx context.Context, opts simulateOptions, log *logrus.Logger, out io.Writer) error {
	s, err := newSimulation(opts, log)
	if err != nil {
		return err
	}

	return s.run(ctx, out)
}

// newSimulation validates the options and resolves the configuration.
func newSimulation(opts simulateOptions, log *logrus.Logger) (*simulation, error) {
	if opts.ranks < 1 {
		return nil, fmt.Errorf("--ranks must be at least 1, got %d", opts.ranks)
	}
	if opts.nx < 1 || opts.ny < 1 {
		return nil, fmt.Errorf("--nx and --ny must be at least 1, got %d and %d", opts.nx, opts.ny)
	}
	if opts.refinements < 0 {
		return nil, fmt.Errorf("--refinements must not be negative, got %d", opts.refinements)
	}

	cfg := meshpart.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := meshpart.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.strategy != "" {
		cfg.Strategy = opts.strategy
	}
	cfg.Verbose = cfg.Verbose || opts.verbose
	meshpart.SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &simulation{
		cfg:     cfg,
		opts:    opts,
		runID:   uuid.NewString(),
		log:     log,
		metrics: metrics.NewNop(),
	}, nil
}

// run executes every rank and writes the report.
func (s *simulation) run(ctx context.Context, out io.Writer) error {
	opts := s.opts
	runLog := s.log.WithField("run", s.runID)
	runLog.WithFields(logrus.Fields{
		"ranks":       opts.ranks,
		"grid":        fmt.Sprintf("%dx%d", opts.nx, opts.ny),
		"refinements": opts.refinements,
		"strategy":    s.cfg.Strategy,
	}).Info("starting simulation")

	defer s.close()

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		s.metrics = metrics.NewPrometheus(reg, "meshpart")
		srv, err := startMetricsServer(opts.metricsAddr, reg, runLog)
		if err != nil {
			return err
		}
		s.onClose(func() { _ = srv.Shutdown() })
	}

	grids := make([]*meshsim.Grid, opts.ranks)
	grids[0] = meshsim.NewStructuredGrid(0, opts.nx, opts.ny)
	for r := 1; r < opts.ranks; r++ {
		grids[r] = meshsim.NewGrid(r)
	}
	s.exchange = meshsim.NewExchange(grids, meshsim.WithLogger(meshpart.NewLogrusLogger(runLog)))

	if err := s.connect(ctx, runLog); err != nil {
		return err
	}

	s.balancers = make([]*meshpart.LoadBalancer, opts.ranks)
	start := time.Now()
	if err := comm.RunAll(ctx, s.worlds, s.runRank); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	runLog.WithField("duration", time.Since(start)).Info("simulation completed")

	return s.report(ctx, out)
}

// connect creates the world communicator of every rank.
func (s *simulation) connect(ctx context.Context, log logrus.FieldLogger) error {
	url := s.opts.natsURL
	if url == "" && s.opts.embeddedNATS {
		srv, err := startEmbeddedNATS()
		if err != nil {
			return err
		}
		s.onClose(srv.Shutdown)
		url = srv.URL()
		log.WithField("url", url).Info("started embedded NATS server")
	}

	commOpts := []comm.Option{
		comm.WithLogger(meshpart.NewLogrusLogger(log)),
		comm.WithMetrics(s.metrics),
	}

	if url == "" {
		cluster := comm.NewLocalCluster(s.opts.ranks, commOpts...)
		s.onClose(cluster.Close)
		s.worlds = make([]*comm.Communicator, cluster.Size())
		for r := range s.worlds {
			s.worlds[r] = cluster.Communicator(r)
		}

		return nil
	}

	s.worlds = make([]*comm.Communicator, s.opts.ranks)
	s.conns = make([]*nats.Conn, s.opts.ranks)
	s.publishers = make([]*redist.KVPublisher, s.opts.ranks)
	for r := range s.opts.ranks {
		nc, err := nats.Connect(url, nats.Name(fmt.Sprintf("meshpart-rank-%d", r)))
		if err != nil {
			return fmt.Errorf("rank %d: failed to connect to NATS: %w", r, err)
		}
		s.conns[r] = nc

		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("rank %d: failed to create JetStream context: %w", r, err)
		}

		world, err := comm.NewNATS(ctx, js, s.cfg.NATSConfig(s.runID, r, s.opts.ranks), commOpts...)
		if err != nil {
			return fmt.Errorf("rank %d: %w", r, err)
		}
		s.worlds[r] = world

		kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
			Bucket:      s.cfg.Redistribution.Bucket,
			Description: "meshpart migration plans",
			TTL:         s.cfg.Redistribution.TTL,
		}, s.cfg.Collective.MaxRetries)
		if err != nil {
			return fmt.Errorf("rank %d: failed to open migration bucket: %w", r, err)
		}
		prefix := s.cfg.Redistribution.KeyPrefix + "." + s.runID
		s.publishers[r] = redist.NewKVPublisher(kv, prefix, r, meshpart.NewLogrusLogger(log.WithField("rank", r)), s.metrics)
	}

	return nil
}

// onClose registers fn to run when the simulation closes, in reverse order.
func (s *simulation) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

func (s *simulation) close() {
	for _, w := range s.worlds {
		w.Close()
	}
	for _, nc := range s.conns {
		if nc != nil {
			nc.Close()
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// runRank is what every simulated process executes.
func (s *simulation) runRank(ctx context.Context, world *comm.Communicator) error {
	rank := world.Rank()
	log := s.log.WithFields(logrus.Fields{"run": s.runID, "rank": rank})
	grid := s.exchange.Grid(rank)

	redistributor := s.exchange.Redistributor(world)
	if s.publishers != nil {
		if err := s.publishers[rank].DiscoverHighestVersion(ctx); err != nil {
			return err
		}
		redistributor = redist.Chain(redistributor, s.publishers[rank])
	}

	hooks := &meshpart.Hooks{
		OnRebalanced: func(_ context.Context, rec meshpart.QualityRecord) error {
			log.WithField("quality", rec.MinQuality).Debug("rebalanced")
			return nil
		},
	}

	cfg := s.cfg
	lb, err := meshpart.NewLoadBalancer(&cfg, world,
		meshpart.WithRedistributor(redistributor),
		meshpart.WithLogger(meshpart.NewLogrusLogger(log)),
		meshpart.WithMetrics(s.metrics),
		meshpart.WithHooks(hooks),
	)
	if err != nil {
		return err
	}
	lb.SetMesh(grid, grid)
	s.balancers[rank] = lb

	for lvl := 0; lvl <= s.opts.refinements; lvl++ {
		if lvl > 0 {
			n, err := grid.RefineLevel(lvl - 1)
			if err != nil {
				return fmt.Errorf("refinement %d: %w", lvl, err)
			}
			log.WithFields(logrus.Fields{"level": lvl - 1, "refined": n}).Debug("refined owned elements")
		}

		h, err := topology.CreateProcessHierarchy(ctx, world, grid, cfg.Hierarchy)
		if err != nil {
			return fmt.Errorf("refinement %d: %w", lvl, err)
		}
		if !h.Equal(lb.ProcessHierarchy()) {
			if rank == 0 {
				log.Info(h.String())
			}
			lb.SetNextProcessHierarchy(h)
		}

		changed, err := lb.Rebalance(ctx)
		if err != nil {
			return fmt.Errorf("refinement %d: %w", lvl, err)
		}

		rec, err := lb.CreateQualityRecord(ctx, fmt.Sprintf("refinement %d", lvl))
		if err != nil {
			return err
		}
		if rank == 0 {
			log.WithFields(logrus.Fields{
				"refinement": lvl,
				"rebalanced": changed,
				"quality":    types.FormatQuality(rec.MinQuality),
			}).Info("refinement step done")
		}
	}

	return nil
}

// report prints the quality history of rank 0 and the owned elements per rank and level.
func (s *simulation) report(ctx context.Context, out io.Writer) error {
	if err := s.balancers[0].PrintQualityRecords(out); err != nil {
		return err
	}

	numLevels := 0
	for _, g := range s.exchange.Grids() {
		numLevels = max(numLevels, g.NumLevels())
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprint(tw, "\nrank\t")
	for lvl := range numLevels {
		_, _ = fmt.Fprintf(tw, "lvl %d\t", lvl)
	}
	_, _ = fmt.Fprintln(tw)
	for _, g := range s.exchange.Grids() {
		_, _ = fmt.Fprintf(tw, "%d\t", g.Rank())
		for lvl := range numLevels {
			_, _ = fmt.Fprintf(tw, "%d\t", types.CountOwned(g, lvl))
		}
		_, _ = fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if s.publishers == nil {
		return nil
	}

	// migration plans left for rank 0 by the last rebalance
	plans, err := s.publishers[0].Incoming(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to read migration plans: %w", err)
	}
	for _, p := range plans {
		_, _ = fmt.Fprintf(out, "plan v%d: rank %d -> rank %d, %d elements\n", p.Version, p.Source, p.Target, len(p.Elements))
	}

	return nil
}
