package strategy

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/arloliu/meshpart/types"
)

// GraphName is the name of the dual graph strategy.
const GraphName = "graph"

// GraphPartitioner partitions each hierarchy level along a breadth-first
// ordering of the element dual graph, weighted by balance weights.
//
// Unlike Bisection it also re-balances hierarchy levels that were already
// distributed: the processes of such a level exchange their loads and shift
// elements along the ordering until every process holds its share.
type GraphPartitioner struct {
	base
	weights types.BalanceWeights
}

var _ types.Partitioner = (*GraphPartitioner)(nil)

// NewGraphPartitioner creates a dual graph partitioner for the calling process of world.
func NewGraphPartitioner(world types.Communicator, opts ...Option) *GraphPartitioner {
	return &GraphPartitioner{base: newBase(GraphName, world, opts)}
}

// SupportsBalanceWeights returns true.
func (g *GraphPartitioner) SupportsBalanceWeights() bool { return true }

// SupportsConnectionWeights returns false.
func (g *GraphPartitioner) SupportsConnectionWeights() bool { return false }

// SetBalanceWeights sets the element loads; nil means every element weighs 1.
func (g *GraphPartitioner) SetBalanceWeights(w types.BalanceWeights) { g.weights = w }

// SetConnectionWeights is a no-op.
func (g *GraphPartitioner) SetConnectionWeights(types.ConnectionWeights) {}

// Partition rebuilds the assignment and process map.
//
// Hierarchy levels above the ratchet are split inside each process cluster.
// Levels at or below the ratchet are re-balanced over all processes of the
// level, which requires one AllGather per such window on every participant.
//
// All windows of one call share a single process map: the ranks any split or
// re-balanced window sends elements to, starting with the calling process.
func (g *GraphPartitioner) Partition(ctx context.Context, baseLevel, elementThreshold int) error {
	start := time.Now()
	defer func() {
		g.cfg.metrics.RecordPartitionDuration(g.name, time.Since(start).Seconds())
	}()

	h, numLevels, err := g.begin(ctx, baseLevel)
	if err != nil {
		return err
	}

	startRatchet := g.ratchet
	localRatchet := g.ratchet
	targets := newRankIndex(g.world)

	for _, w := range planWindows(h, baseLevel, numLevels) {
		if h.NumGlobalProcsInvolved(w.hlevel) <= 1 {
			g.assignWindow(w, 0)
			g.diag(decisionSingleProcess, w)

			continue
		}

		if w.hlevel <= startRatchet {
			if err := g.repartition(ctx, h, w, elementThreshold, targets); err != nil {
				return err
			}

			continue
		}

		cluster := h.ClusterProcs(w.hlevel)
		if len(cluster) <= 1 {
			g.assignWindow(w, 0)
			g.diag(decisionSingleProcess, w)

			continue
		}

		elems := g.mg.Elements(w.minLvl)
		if len(elems)/len(cluster) < elementThreshold {
			g.assignWindow(w, 0)
			g.diag(decisionBelowThreshold, w, "elements", len(elems), "threshold", elementThreshold)

			continue
		}

		order := g.traversalOrder(elems)
		loads := make([]float64, len(elems))
		for i, e := range elems {
			loads[i] = g.load(e)
		}

		target := sum(loads) / float64(len(cluster))
		cum := 0.0
		for _, i := range order {
			o := owner(cum, loads[i], target, len(cluster))
			g.assignment.Assign(elems[i], targets.index(cluster[o]))
			cum += loads[i]
		}
		targets.involve(cluster)
		g.postProcess(w)

		localRatchet = max(localRatchet, w.hlevel)
		g.diag(decisionSplit, w, "elements", len(elems), "cluster", cluster)
	}

	g.assignRemaining(baseLevel, numLevels)
	g.procMap = targets.compact(g.assignment)

	return g.finish(ctx, localRatchet)
}

// repartition re-balances an already distributed window over all processes of its hierarchy level.
func (g *GraphPartitioner) repartition(ctx context.Context, h *types.ProcessHierarchy, w window, elementThreshold int, targets *rankIndex) error {
	levelComm := h.GlobalCommunicator(w.hlevel, g.world)
	if !types.IsMember(levelComm) {
		g.assignWindow(w, 0)
		return nil
	}

	elems := g.mg.Elements(w.minLvl)
	loads := make([]float64, len(elems))
	for i, e := range elems {
		if !g.mg.IsGhost(e) {
			loads[i] = g.load(e)
		}
	}

	all, err := levelComm.AllGather(ctx, sum(loads))
	if err != nil {
		return fmt.Errorf("failed to gather loads of hierarchy level %d: %w", w.hlevel, err)
	}

	size := len(all)
	total := sum(all)
	minLoad, maxLoad := slices.Min(all), slices.Max(all)

	if total/float64(size) < float64(elementThreshold) {
		g.assignWindow(w, 0)
		g.diag(decisionBelowThreshold, w, "load", total, "threshold", elementThreshold)

		return nil
	}

	if maxLoad == 0 || minLoad/maxLoad >= 1-g.cfg.imbalanceTolerance {
		g.assignWindow(w, 0)
		g.diag(decisionBalanced, w, "minLoad", minLoad, "maxLoad", maxLoad)

		return nil
	}

	ranks := levelComm.Ranks()
	self, _ := slices.BinarySearch(ranks, g.world.Rank())
	offset := sum(all[:self])
	target := total / float64(size)

	cum := offset
	for _, i := range g.traversalOrder(elems) {
		o := owner(cum, loads[i], target, size)
		g.assignment.Assign(elems[i], targets.index(ranks[o]))
		cum += loads[i]
	}
	targets.involve(ranks)
	g.postProcess(w)

	g.diag(decisionRepartition, w, "minLoad", minLoad, "maxLoad", maxLoad, "offset", offset)

	return nil
}

// rankIndex encodes target ranks as partition indices that stay valid across
// all windows of one Partition call.
//
// While windows are processed, the index of a rank is its position in the
// world ranks rotated to start at the calling process. compact renumbers the
// assignment to the ranks that some window actually distributed to.
type rankIndex struct {
	ranks    []int
	pos      map[int]int
	involved []bool
}

func newRankIndex(world types.Communicator) *rankIndex {
	all := world.Ranks()
	self, _ := slices.BinarySearch(all, world.Rank())

	n := len(all)
	ri := &rankIndex{
		ranks:    make([]int, n),
		pos:      make(map[int]int, n),
		involved: make([]bool, n),
	}
	for i := range n {
		r := all[(self+i)%n]
		ri.ranks[i] = r
		ri.pos[r] = i
	}

	return ri
}

// index returns the partition index of rank.
func (ri *rankIndex) index(rank int) int { return ri.pos[rank] }

// involve marks ranks as targets of a distributed window.
func (ri *rankIndex) involve(ranks []int) {
	for _, r := range ranks {
		ri.involved[ri.pos[r]] = true
	}
}

// compact renumbers a to the involved ranks and returns the matching process
// map, or nil when no window was distributed. Index 0 stays the calling process.
func (ri *rankIndex) compact(a *types.PartitionAssignment) []int {
	if !slices.Contains(ri.involved, true) {
		return nil
	}
	ri.involved[0] = true

	remap := make([]int, len(ri.ranks))
	var procMap []int
	for i, r := range ri.ranks {
		if ri.involved[i] {
			remap[i] = len(procMap)
			procMap = append(procMap, r)
		}
	}
	a.Remap(remap)

	return procMap
}

// load returns the balance weight of e plus the configured child weight.
func (g *GraphPartitioner) load(e types.Element) float64 {
	w := 1.0
	if g.weights != nil {
		if v := g.weights.Weight(e); v > 0 {
			w = v
		}
	}

	return w + g.cfg.childWeight*float64(len(g.mg.Children(e)))
}

// traversalOrder returns the indices of elems in breadth-first order of their
// dual graph. Components are entered at the element with the smallest
// coordinate along the axis of largest spread.
func (g *GraphPartitioner) traversalOrder(elems []types.Element) []int {
	dual := buildDualGraph(g.mg, elems, max(1, g.pos.Dim()))

	points := centers(g.mg, g.pos, elems)
	seeds := make([]int, len(elems))
	for i := range seeds {
		seeds[i] = i
	}
	axis := splitAxis(points, seeds)
	slices.SortFunc(seeds, func(a, b int) int {
		if c := cmp.Compare(coord(points[a], axis), coord(points[b], axis)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	order := make([]int, 0, len(elems))
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { order = append(order, int(n.ID())) },
	}
	for _, s := range seeds {
		if bf.Visited(simple.Node(s)) {
			continue
		}
		bf.Walk(dual, simple.Node(s), nil)
	}

	return order
}

// orderedGraph visits neighbors in ascending node order so that traversals are reproducible.
type orderedGraph struct {
	*simple.UndirectedGraph
}

func (o orderedGraph) From(id int64) graph.Nodes {
	nodes := graph.NodesOf(o.UndirectedGraph.From(id))
	slices.SortFunc(nodes, func(a, b graph.Node) int { return cmp.Compare(a.ID(), b.ID()) })

	return iterator.NewOrderedNodes(nodes)
}

// buildDualGraph connects two elements when they share at least minShared vertices.
// Node IDs are indices into elems.
func buildDualGraph(mg types.MultiGrid, elems []types.Element, minShared int) orderedGraph {
	dual := simple.NewUndirectedGraph()
	byVertex := make(map[types.Vertex][]int)
	for i, e := range elems {
		dual.AddNode(simple.Node(i))
		for _, v := range mg.Vertices(e) {
			byVertex[v] = append(byVertex[v], i)
		}
	}

	shared := make(map[[2]int]int)
	for _, members := range byVertex {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				if members[a] == members[b] {
					continue
				}
				shared[[2]int{min(members[a], members[b]), max(members[a], members[b])}]++
			}
		}
	}

	for pair, n := range shared {
		if n >= minShared {
			dual.SetEdge(dual.NewEdge(simple.Node(pair[0]), simple.Node(pair[1])))
		}
	}

	return orderedGraph{dual}
}

// owner returns the part whose share of the total load contains the midpoint
// of an element starting at cumulative load cum.
func owner(cum, load, target float64, numParts int) int {
	if target <= 0 {
		return 0
	}

	return min(int((cum+load/2)/target), numParts-1)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}

	return total
}
