package natsbridge

import (
	"fmt"
	"time"

	nc "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/command"
)

const subjectPrefix = "agentbridge.dispatch."

// Bridge republishes and receives WaiterRegistry wakeups over NATS so
// every replica's long-polls observe every enqueue, addressing the
// horizontal-scaling design note in spec.md §9. Grounded on the teacher's
// nats.Client wrapper (internal/nats/client.go): reconnect handling,
// subject-based pub/sub, no request/reply needed here since a wakeup is
// fire-and-forget.
type Bridge struct {
	conn    *nc.Conn
	waiters *command.WaiterRegistry
	log     *zap.Logger
}

// Connect dials url and wires incoming dispatch-subject messages into
// local.Signal so out-of-process enqueues wake local long-polls.
func Connect(url string, local *command.WaiterRegistry, log *zap.Logger) (*Bridge, error) {
	conn, err := nc.Connect(url,
		nc.ReconnectWait(2*time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				log.Warn("nats bridge disconnected", zap.Error(err))
			}
		}),
		nc.ReconnectHandler(func(c *nc.Conn) {
			log.Info("nats bridge reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	b := &Bridge{conn: conn, waiters: local, log: log}

	if _, err := conn.Subscribe(subjectPrefix+"*", b.onMessage); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to dispatch subjects: %w", err)
	}

	return b, nil
}

func (b *Bridge) onMessage(msg *nc.Msg) {
	deploymentHash := string(msg.Data)
	b.waiters.Signal(deploymentHash)
}

// Publish broadcasts a wakeup for deploymentHash to every connected
// replica, including this one's own subscription (harmless: Signal on an
// unregistered key is a no-op).
func (b *Bridge) Publish(deploymentHash string) {
	if err := b.conn.Publish(subjectPrefix+deploymentHash, []byte(deploymentHash)); err != nil {
		b.log.Warn("nats publish failed", zap.String("deployment_hash", deploymentHash), zap.Error(err))
	}
}

// Signal implements command.Signaler, letting the dispatcher use a Bridge
// as its cross-process signaling backend in place of the bare
// WaiterRegistry.
func (b *Bridge) Signal(deploymentHash string) {
	b.waiters.Signal(deploymentHash)
	b.Publish(deploymentHash)
}

func (b *Bridge) Close() {
	b.conn.Close()
}
