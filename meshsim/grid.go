package meshsim

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/arloliu/meshpart/types"
)

var (
	// ErrUnknownElement is returned for elements not present in the grid.
	ErrUnknownElement = errors.New("unknown element")

	// ErrAlreadyRefined is returned when refining an element that has children.
	ErrAlreadyRefined = errors.New("element already refined")

	// ErrGhostElement is returned when modifying a ghost copy.
	ErrGhostElement = errors.New("ghost element cannot be modified")
)

// idShift places the creating rank in the upper bits of every element ID.
const idShift = 40

type cell struct {
	corners   [4]r2.Vec // counter-clockwise, starting bottom left
	verts     [4]types.Vertex
	parent    types.Element
	hasParent bool
	children  []types.Element
	ghost     bool
}

// Grid is an in-memory quadrilateral multigrid owned by one process.
//
// A Grid is not safe for concurrent use.
type Grid struct {
	rank   int
	nextID uint64

	levels [][]types.Element
	cells  map[types.Element]*cell

	positions map[types.Vertex]r2.Vec
	vertexAt  map[r2.Vec]types.Vertex
}

var (
	_ types.MultiGrid   = (*Grid)(nil)
	_ types.PositionMap = (*Grid)(nil)
)

// NewGrid creates an empty grid for the process with the given rank.
func NewGrid(rank int) *Grid {
	return &Grid{
		rank:      rank,
		cells:     make(map[types.Element]*cell),
		positions: make(map[types.Vertex]r2.Vec),
		vertexAt:  make(map[r2.Vec]types.Vertex),
	}
}

// NewStructuredGrid creates a grid with nx by ny unit squares on level 0.
//
// Parameters:
//   - rank: Rank of the owning process, used to namespace element IDs
//   - nx: Number of squares along x
//   - ny: Number of squares along y
//
// Returns:
//   - *Grid: Grid with nx*ny level 0 elements, ordered row by row
func NewStructuredGrid(rank, nx, ny int) *Grid {
	g := NewGrid(rank)
	for j := range ny {
		for i := range nx {
			x, y := float64(i), float64(j)
			g.add(0, g.newID(), [4]r2.Vec{{X: x, Y: y}, {X: x + 1, Y: y}, {X: x + 1, Y: y + 1}, {X: x, Y: y + 1}}, types.Element{}, false, false)
		}
	}

	return g
}

// Rank returns the rank the grid belongs to.
func (g *Grid) Rank() int { return g.rank }

// NumLevels returns the highest non-empty level plus one.
func (g *Grid) NumLevels() int { return len(g.levels) }

// Elements returns a copy of the elements of level in insertion order.
func (g *Grid) Elements(level int) []types.Element {
	if level < 0 || level >= len(g.levels) {
		return nil
	}

	return slices.Clone(g.levels[level])
}

// NumElements returns the number of elements on level, ghosts included.
func (g *Grid) NumElements(level int) int {
	if level < 0 || level >= len(g.levels) {
		return 0
	}

	return len(g.levels[level])
}

// NumOwned returns the number of non-ghost elements over all levels.
func (g *Grid) NumOwned() int {
	n := 0
	for _, c := range g.cells {
		if !c.ghost {
			n++
		}
	}

	return n
}

// Contains reports whether e is present, as owned element or ghost.
func (g *Grid) Contains(e types.Element) bool {
	_, ok := g.cells[e]
	return ok
}

// Children returns the locally present children of e.
func (g *Grid) Children(e types.Element) []types.Element {
	c, ok := g.cells[e]
	if !ok {
		return nil
	}

	children := make([]types.Element, 0, len(c.children))
	for _, child := range c.children {
		if _, ok := g.cells[child]; ok {
			children = append(children, child)
		}
	}

	return children
}

// Parent returns the parent of e if it is present on this grid.
func (g *Grid) Parent(e types.Element) (types.Element, bool) {
	c, ok := g.cells[e]
	if !ok || !c.hasParent {
		return types.Element{}, false
	}
	if _, ok := g.cells[c.parent]; !ok {
		return types.Element{}, false
	}

	return c.parent, true
}

// Vertices returns the four corner vertices of e.
func (g *Grid) Vertices(e types.Element) []types.Vertex {
	c, ok := g.cells[e]
	if !ok {
		return nil
	}

	return c.verts[:]
}

// IsGhost reports whether e is a ghost copy.
func (g *Grid) IsGhost(e types.Element) bool {
	c, ok := g.cells[e]
	return ok && c.ghost
}

// Dim returns 2.
func (g *Grid) Dim() int { return 2 }

// Position returns the coordinates of v.
func (g *Grid) Position(v types.Vertex) types.Vector {
	p := g.positions[v]
	return types.Vector{p.X, p.Y}
}

// Corners returns the corner coordinates of e.
func (g *Grid) Corners(e types.Element) ([4]r2.Vec, error) {
	c, ok := g.cells[e]
	if !ok {
		return [4]r2.Vec{}, fmt.Errorf("%w: %s", ErrUnknownElement, e)
	}

	return c.corners, nil
}

// SetGhost marks e as ghost copy or owned element.
func (g *Grid) SetGhost(e types.Element, ghost bool) error {
	c, ok := g.cells[e]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, e)
	}
	c.ghost = ghost

	return nil
}

// Refine splits e into four children on level e.Level+1.
//
// Returns:
//   - []types.Element: The children, ordered bottom left, bottom right, top right, top left
//   - error: ErrUnknownElement, ErrGhostElement or ErrAlreadyRefined
func (g *Grid) Refine(e types.Element) ([]types.Element, error) {
	c, ok := g.cells[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownElement, e)
	}
	if c.ghost {
		return nil, fmt.Errorf("%w: %s", ErrGhostElement, e)
	}
	if len(c.children) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRefined, e)
	}

	lo, hi := c.corners[0], c.corners[2]
	mid := r2.Scale(0.5, r2.Add(lo, hi))
	quads := [4][2]r2.Vec{
		{lo, mid},
		{{X: mid.X, Y: lo.Y}, {X: hi.X, Y: mid.Y}},
		{mid, hi},
		{{X: lo.X, Y: mid.Y}, {X: mid.X, Y: hi.Y}},
	}

	children := make([]types.Element, 0, 4)
	for _, q := range quads {
		a, b := q[0], q[1]
		child := g.add(e.Level+1, g.newID(), [4]r2.Vec{a, {X: b.X, Y: a.Y}, b, {X: a.X, Y: b.Y}}, e, true, false)
		children = append(children, child)
	}
	c.children = children

	return slices.Clone(children), nil
}

// RefineLevel refines every owned leaf element of level and returns how many were refined.
func (g *Grid) RefineLevel(level int) (int, error) {
	var leaves []types.Element
	for _, e := range g.Elements(level) {
		c := g.cells[e]
		if !c.ghost && len(c.children) == 0 {
			leaves = append(leaves, e)
		}
	}

	return len(leaves), g.RefineMarked(leaves)
}

// RefineMarked refines every element of marked.
func (g *Grid) RefineMarked(marked []types.Element) error {
	for _, e := range marked {
		if _, err := g.Refine(e); err != nil {
			return err
		}
	}

	return nil
}

// AddElement inserts an owned element with explicit corners, for meshes that are
// not built by refinement. A zero parent means the element has no parent.
func (g *Grid) AddElement(level int, corners [4]r2.Vec, parent *types.Element) (types.Element, error) {
	if level < 0 {
		return types.Element{}, fmt.Errorf("invalid level %d", level)
	}

	if parent == nil {
		return g.add(level, g.newID(), corners, types.Element{}, false, false), nil
	}

	pc, ok := g.cells[*parent]
	if !ok {
		return types.Element{}, fmt.Errorf("%w: parent %s", ErrUnknownElement, *parent)
	}
	if parent.Level != level-1 {
		return types.Element{}, fmt.Errorf("parent %s is not on level %d", *parent, level-1)
	}

	e := g.add(level, g.newID(), corners, *parent, true, false)
	pc.children = append(pc.children, e)

	return e, nil
}

func (g *Grid) newID() uint64 {
	id := uint64(g.rank)<<idShift | g.nextID
	g.nextID++

	return id
}

func (g *Grid) add(level int, id uint64, corners [4]r2.Vec, parent types.Element, hasParent, ghost bool) types.Element {
	for len(g.levels) <= level {
		g.levels = append(g.levels, nil)
	}

	e := types.Element{Level: level, ID: id}
	c := &cell{corners: corners, parent: parent, hasParent: hasParent, ghost: ghost}
	for i, p := range corners {
		c.verts[i] = g.vertex(p)
	}

	g.cells[e] = c
	g.levels[level] = append(g.levels[level], e)

	return e
}

// vertex returns the vertex at p, creating it if needed. Refinement only
// produces dyadic coordinates, so equal points compare equal.
func (g *Grid) vertex(p r2.Vec) types.Vertex {
	if v, ok := g.vertexAt[p]; ok {
		return v
	}

	v := types.Vertex(len(g.positions))
	g.positions[v] = p
	g.vertexAt[p] = v

	return v
}

// removeAll deletes the elements of drop and trims empty top levels.
func (g *Grid) removeAll(drop map[types.Element]bool) {
	if len(drop) == 0 {
		return
	}

	for e := range drop {
		delete(g.cells, e)
	}
	for lvl := range g.levels {
		g.levels[lvl] = slices.DeleteFunc(g.levels[lvl], func(e types.Element) bool { return drop[e] })
	}

	for len(g.levels) > 0 && len(g.levels[len(g.levels)-1]) == 0 {
		g.levels = g.levels[:len(g.levels)-1]
	}
}
