// Package comm provides types.Communicator implementations.
//
// Two transports are available:
//   - LocalCluster runs every rank of a job inside one process, one goroutine
//     per rank, exchanging contributions through shared memory.
//   - NewNATS connects one process per rank through a NATS JetStream KV bucket.
//     All ranks of a job share a session identifier (see NewSession).
//
// Collectives are matched by call order. Every communicator keeps a per rank-set
// sequence counter, so two processes that issue the same sequence of collectives
// on the same rank set meet in the same slot.
package comm
