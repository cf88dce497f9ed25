// Package natsbridge is the optional cross-process extension to
// command.WaiterRegistry: when agentbridge runs as more than one replica,
// a command enqueued against replica A must wake a long-poll held open on
// replica B. natsbridge republishes WaiterRegistry signals over NATS
// pub/sub so every replica observes every wakeup. Grounded on the
// teacher's internal/nats package (server.go's EmbeddedServer,
// client.go's Client wrapper), adapted from its generic pub/sub surface
// to the single "deployment went ready" signal this bridge needs.
package natsbridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServerConfig configures the in-process NATS server used for
// single-binary deployments that don't run an external NATS cluster.
type EmbeddedServerConfig struct {
	Host string
	Port int
}

// EmbeddedServer wraps a nats-server/v2 instance.
type EmbeddedServer struct {
	mu      sync.RWMutex
	srv     *server.Server
	config  EmbeddedServerConfig
	running bool
}

func NewEmbeddedServer(config EmbeddedServerConfig) *EmbeddedServer {
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Port <= 0 {
		config.Port = 4222
	}
	return &EmbeddedServer{config: config}
}

// Start launches the embedded server and blocks until it accepts
// connections or the wait bound elapses.
func (e *EmbeddedServer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("embedded nats server already running")
	}

	opts := &server.Options{
		Host:       e.config.Host,
		Port:       e.config.Port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 256 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("create embedded nats server: %w", err)
	}

	e.srv = ns
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("embedded nats server not ready for connections")
	}
	e.running = true
	return nil
}

// Shutdown stops the embedded server.
func (e *EmbeddedServer) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.srv == nil {
		return
	}
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.running = false
	e.srv = nil
}

// URL returns the client connection URL for the embedded server.
func (e *EmbeddedServer) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("nats://%s:%d", e.config.Host, e.config.Port)
}
