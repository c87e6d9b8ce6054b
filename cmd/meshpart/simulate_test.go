package main

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart"
	"github.com/arloliu/meshpart/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testOptions() simulateOptions {
	return simulateOptions{
		ranks:       4,
		nx:          4,
		ny:          4,
		refinements: 2,
		timeout:     time.Minute,
	}
}

// ownedPerLevel sums the owned elements of every grid per level.
func ownedPerLevel(s *simulation) []int {
	var totals []int
	for _, g := range s.exchange.Grids() {
		for lvl := range g.NumLevels() {
			if lvl >= len(totals) {
				totals = append(totals, 0)
			}
			totals[lvl] += types.CountOwned(g, lvl)
		}
	}

	return totals
}

func TestSimulation_Local(t *testing.T) {
	for _, name := range []string{"bisection", "graph"} {
		t.Run(name, func(t *testing.T) {
			opts := testOptions()
			opts.strategy = name

			s, err := newSimulation(opts, quietLogger())
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, s.run(t.Context(), &out))

			require.Equal(t, []int{16, 64, 256}, ownedPerLevel(s), "elements are conserved")
			require.Contains(t, out.String(), "quality records (")
			require.Contains(t, out.String(), "refinement 2: min")
			require.Contains(t, out.String(), "rank")

			// every rank keeps the same history
			records := s.balancers[0].QualityRecords()
			for r, lb := range s.balancers {
				require.Len(t, lb.QualityRecords(), len(records), "rank %d", r)
			}
		})
	}
}

func TestSimulation_SpreadsFineLevels(t *testing.T) {
	opts := testOptions()
	opts.refinements = 3

	s, err := newSimulation(opts, quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.run(t.Context(), io.Discard))

	// 1024 elements on the finest level are enough for four processes
	for r, g := range s.exchange.Grids() {
		require.Positive(t, types.CountOwned(g, 3), "rank %d", r)
	}
}

func TestSimulation_EmbeddedNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NATS simulation in short mode")
	}

	opts := testOptions()
	opts.ranks = 2
	opts.refinements = 1
	opts.embeddedNATS = true

	s, err := newSimulation(opts, quietLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.run(t.Context(), &out))
	require.Equal(t, []int{16, 64}, ownedPerLevel(s))
	require.Len(t, s.publishers, 2)
}

func TestNewSimulation_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *simulateOptions)
	}{
		{name: "no ranks", mutate: func(o *simulateOptions) { o.ranks = 0 }},
		{name: "empty grid", mutate: func(o *simulateOptions) { o.nx = 0 }},
		{name: "negative refinements", mutate: func(o *simulateOptions) { o.refinements = -1 }},
		{name: "missing config file", mutate: func(o *simulateOptions) { o.configPath = "/nonexistent/meshpart.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)

			_, err := newSimulation(opts, quietLogger())
			require.Error(t, err)
		})
	}

	t.Run("unknown strategy", func(t *testing.T) {
		opts := testOptions()
		opts.strategy = "metis"

		_, err := newSimulation(opts, quietLogger())
		require.ErrorIs(t, err, meshpart.ErrConfiguration)
	})
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "meshpart_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv, err := startMetricsServer("127.0.0.1:0", reg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	resp, err := http.Get("http://" + srv.Addr() + "/health") //nolint:noctx // test request
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr() + "/metrics") //nolint:noctx // test request
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "meshpart_test_total 1")
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "meshpart dev\n", out.String())
}
