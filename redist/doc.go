// Package redist provides redistributors that act on a partition result.
//
// The partitioner only decides where elements should live; moving them is up
// to the simulation code. This package offers:
//
//   - KVPublisher: publishes one migration plan per (source, target) pair to a
//     NATS JetStream KV bucket, for out-of-process consumers that perform the
//     actual data transfer
//   - Nop: accepts every plan and moves nothing
//   - Chain: runs several redistributors in order
//
// In-process element migration for the bundled test mesh lives in meshsim.Exchange.
package redist
