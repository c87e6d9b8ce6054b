package types

import "fmt"

// Element identifies a mesh element by its grid level and a mesh-local handle.
//
// Handles are only required to be unique within one level of one process's mesh;
// mesh implementations that migrate elements between processes usually keep them
// globally unique.
type Element struct {
	Level int
	ID    uint64
}

// String returns the element in "level:id" form.
func (e Element) String() string {
	return fmt.Sprintf("%d:%d", e.Level, e.ID)
}

// Vertex identifies a mesh vertex.
type Vertex uint64

// Vector is a point in 1-, 2- or 3-dimensional space.
type Vector []float64

// MultiGrid is the hierarchical mesh a partitioner works on.
//
// The mesh is owned by the caller. Partitioners only read it; physical
// migration of elements is the job of a Redistributor.
type MultiGrid interface {
	// NumLevels returns the number of grid levels held by this process.
	NumLevels() int

	// Elements returns the elements of a grid level in a stable order.
	// Levels outside [0, NumLevels()) yield an empty slice.
	Elements(level int) []Element

	// NumElements returns len(Elements(level)), ghosts included.
	NumElements(level int) int

	// Children returns the elements created by refining e, on level e.Level+1.
	Children(e Element) []Element

	// Parent returns the element e was refined from and true, or false for level 0
	// elements and elements whose parent is not present on this process.
	Parent(e Element) (Element, bool)

	// Vertices returns the corner vertices of e.
	Vertices(e Element) []Vertex

	// IsGhost reports whether e is a copy of an element owned by another process.
	IsGhost(e Element) bool
}

// PositionMap provides vertex coordinates.
type PositionMap interface {
	// Dim returns the number of coordinates of each position.
	Dim() int

	// Position returns the coordinates of v.
	Position(v Vertex) Vector
}

// Center returns the arithmetic mean of the vertex positions of e.
//
// Parameters:
//   - mg: Mesh providing the vertices of e
//   - pos: Vertex coordinates
//   - e: Element to locate
//
// Returns:
//   - Vector: Center of e with pos.Dim() coordinates (all zero if e has no vertices)
func Center(mg MultiGrid, pos PositionMap, e Element) Vector {
	c := make(Vector, pos.Dim())
	verts := mg.Vertices(e)
	if len(verts) == 0 {
		return c
	}

	for _, v := range verts {
		p := pos.Position(v)
		for i := range c {
			if i < len(p) {
				c[i] += p[i]
			}
		}
	}
	for i := range c {
		c[i] /= float64(len(verts))
	}

	return c
}

// CountOwned returns the number of non-ghost elements of a grid level.
func CountOwned(mg MultiGrid, level int) int {
	n := 0
	for _, e := range mg.Elements(level) {
		if !mg.IsGhost(e) {
			n++
		}
	}

	return n
}
