// Command meshpart runs load balancing simulations on an in-memory multigrid.
//
// Usage:
//
//	meshpart simulate --ranks 4 --nx 8 --ny 8 --refinements 3
//	meshpart simulate --ranks 4 --embedded-nats --metrics-addr :9090
//	meshpart version
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
