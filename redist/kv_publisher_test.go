package redist

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/internal/metrics"
	meshtest "github.com/arloliu/meshpart/testing"
	"github.com/arloliu/meshpart/types"
)

func elems(level int, ids ...uint64) []types.Element {
	out := make([]types.Element, len(ids))
	for i, id := range ids {
		out[i] = types.Element{Level: level, ID: id}
	}

	return out
}

func TestKVPublisher_Redistribute(t *testing.T) {
	_, nc := meshtest.StartEmbeddedNATS(t)
	kv := meshtest.CreateJetStreamKV(t, nc, "test-redist-publish")
	ctx := context.Background()

	publisher := NewKVPublisher(kv, "migration", 0, logging.NewNop(), metrics.NewNop())

	a := types.NewPartitionAssignment()
	a.AssignAll(elems(0, 1, 2), 0)
	a.AssignAll(elems(1, 7, 5), 1)
	a.AssignAll(elems(1, 9), 2)

	before := time.Now()
	require.NoError(t, publisher.Redistribute(ctx, a, []int{0, 3, 1}))
	require.Equal(t, int64(1), publisher.CurrentVersion())
	require.False(t, publisher.LastPublishTime().Before(before))

	entry, err := kv.Get(ctx, "migration.0.3")
	require.NoError(t, err)

	var plan MigrationPlan
	require.NoError(t, json.Unmarshal(entry.Value(), &plan))
	require.Equal(t, int64(1), plan.Version)
	require.Equal(t, 0, plan.Source)
	require.Equal(t, 3, plan.Target)
	require.Equal(t, elems(1, 5, 7), plan.ElementList())

	incoming, err := publisher.Incoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, elems(1, 9), incoming[0].ElementList())

	_, err = kv.Get(ctx, "migration.0.0")
	require.Error(t, err, "nothing is published for the source itself")
}

func TestKVPublisher_RemovesStalePlans(t *testing.T) {
	_, nc := meshtest.StartEmbeddedNATS(t)
	kv := meshtest.CreateJetStreamKV(t, nc, "test-redist-stale")
	ctx := context.Background()

	publisher := NewKVPublisher(kv, "migration", 2, nil, nil)
	other := NewKVPublisher(kv, "migration", 5, nil, nil)

	a := types.NewPartitionAssignment()
	a.AssignAll(elems(0, 1), 1)
	a.AssignAll(elems(0, 2), 2)
	require.NoError(t, publisher.Redistribute(ctx, a, []int{2, 0, 1}))
	require.NoError(t, other.Redistribute(ctx, a, []int{5, 0, 1}))

	// second round only sends to rank 1
	a.Clear()
	a.AssignAll(elems(0, 1, 2), 1)
	require.NoError(t, publisher.Redistribute(ctx, a, []int{2, 1}))
	require.Equal(t, int64(2), publisher.CurrentVersion())

	_, err := kv.Get(ctx, "migration.2.0")
	require.Error(t, err)
	_, err = kv.Get(ctx, "migration.5.0")
	require.NoError(t, err, "plans of other sources are untouched")

	incoming, err := publisher.Incoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, incoming, 2)

	require.NoError(t, publisher.CleanupAll(ctx))
	incoming, err = publisher.Incoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, 5, incoming[0].Source)
}

func TestKVPublisher_DiscoverHighestVersion(t *testing.T) {
	_, nc := meshtest.StartEmbeddedNATS(t)
	kv := meshtest.CreateJetStreamKV(t, nc, "test-redist-discover")
	ctx := context.Background()

	publisher := NewKVPublisher(kv, "migration", 1, nil, nil)
	require.NoError(t, publisher.DiscoverHighestVersion(ctx))
	require.Zero(t, publisher.CurrentVersion())

	data, err := json.Marshal(MigrationPlan{Version: 7, Source: 1, Target: 0})
	require.NoError(t, err)
	_, err = kv.Put(ctx, "migration.1.0", data)
	require.NoError(t, err)

	data, err = json.Marshal(MigrationPlan{Version: 40, Source: 3, Target: 0})
	require.NoError(t, err)
	_, err = kv.Put(ctx, "migration.3.0", data)
	require.NoError(t, err)

	_, err = kv.Put(ctx, "migration.1.2", []byte("not json"))
	require.NoError(t, err)

	require.NoError(t, publisher.DiscoverHighestVersion(ctx))
	require.Equal(t, int64(7), publisher.CurrentVersion())

	a := types.NewPartitionAssignment()
	a.Assign(types.Element{Level: 0, ID: 1}, 1)
	require.NoError(t, publisher.Redistribute(ctx, a, []int{1, 0}))
	require.Equal(t, int64(8), publisher.CurrentVersion())
}

func TestKVPublisher_InvalidProcessMap(t *testing.T) {
	_, nc := meshtest.StartEmbeddedNATS(t)
	kv := meshtest.CreateJetStreamKV(t, nc, "test-redist-invalid")

	publisher := NewKVPublisher(kv, "migration", 0, nil, nil)
	a := types.NewPartitionAssignment()
	a.Assign(types.Element{Level: 0, ID: 1}, 3)

	err := publisher.Redistribute(context.Background(), a, []int{0})
	require.ErrorIs(t, err, types.ErrInvalidProcessMap)
	require.Zero(t, publisher.CurrentVersion())
}
