package strategy

import (
	"fmt"

	"github.com/arloliu/meshpart/types"
)

// Names returns the names accepted by New.
func Names() []string {
	return []string{BisectionName, GraphName}
}

// New creates the partitioner registered under name.
//
// Returns ErrConfiguration for unknown names.
func New(name string, world types.Communicator, opts ...Option) (types.Partitioner, error) {
	switch name {
	case BisectionName:
		return NewBisection(world, opts...), nil
	case GraphName:
		return NewGraphPartitioner(world, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %v)", types.ErrConfiguration, name, Names())
	}
}
