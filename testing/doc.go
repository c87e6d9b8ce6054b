// Package testing provides test utilities for the meshpart library.
//
// The helpers start an in-process NATS server with JetStream so the NATS
// communicator and the KV redistributor can be tested without external
// infrastructure, in the spirit of net/http/httptest.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - NewJetStream: JetStream context for a test connection
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: types.Logger writing to testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    meshtest "github.com/arloliu/meshpart/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := meshtest.StartEmbeddedNATS(t)
//	    js := meshtest.NewJetStream(t, nc)
//	    // Use js for your tests
//	}
package testing
