package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// embeddedNATS is an in-process NATS server with JetStream, used when the
// simulation is asked to run its collectives over NATS without an external server.
type embeddedNATS struct {
	srv      *server.Server
	storeDir string
}

// startEmbeddedNATS starts a JetStream enabled server on a random local port.
func startEmbeddedNATS() (*embeddedNATS, error) {
	storeDir, err := os.MkdirTemp("", "meshpart-nats-")
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream store: %w", err)
	}

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		_ = os.RemoveAll(storeDir)
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		_ = os.RemoveAll(storeDir)

		return nil, errors.New("NATS server not ready within timeout")
	}

	return &embeddedNATS{srv: srv, storeDir: storeDir}, nil
}

// URL returns the client URL of the server.
func (e *embeddedNATS) URL() string { return e.srv.ClientURL() }

// Shutdown stops the server and removes its store.
func (e *embeddedNATS) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	_ = os.RemoveAll(e.storeDir) // best effort
}
