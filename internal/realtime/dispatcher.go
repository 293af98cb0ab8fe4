package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/pulseboard-realtime/internal/metrics"
	"github.com/pulseboard-realtime/internal/presence"
)

// Conn is one live client attachment the dispatcher can push frames to. The
// websocket client implements it; tests substitute in-memory fakes.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close()
}

// Frame is the wire shape pushed to clients.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Dispatcher fans named events out to every connection of a target user, or
// to everyone. Delivery is fire-and-forget: a failed send detaches the dead
// connection and is never surfaced to the trigger caller.
type Dispatcher struct {
	mu       sync.RWMutex
	conns    map[string]Conn
	registry *presence.Registry
	log      *zap.Logger
}

func NewDispatcher(registry *presence.Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		conns:    make(map[string]Conn),
		registry: registry,
		log:      log,
	}
}

// Attach registers a newly opened connection in the unassociated state.
func (d *Dispatcher) Attach(c Conn) {
	d.mu.Lock()
	d.conns[c.ID()] = c
	d.mu.Unlock()
	d.registry.Register(c.ID())
	metrics.ConnectionsOpen.Inc()
	d.log.Debug("connection attached", zap.String("conn", c.ID()))
}

// Identify binds a connection to a user identity. Unknown connections are
// ignored by the registry, so a racing disconnect is harmless.
func (d *Dispatcher) Identify(connID, userID string) {
	d.registry.Identify(connID, userID)
	d.syncUserGauge()
}

// Detach removes a connection and closes it. Safe to call more than once:
// the read pump, the write pump and shutdown may all reach it.
func (d *Dispatcher) Detach(connID string) {
	d.mu.Lock()
	c, ok := d.conns[connID]
	if ok {
		delete(d.conns, connID)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	d.registry.Unregister(connID)
	c.Close()
	metrics.ConnectionsOpen.Dec()
	d.syncUserGauge()
	d.log.Debug("connection detached", zap.String("conn", connID))
}

// DispatchToUser delivers the event to every connection identified as userID.
// A user with zero live connections is not an error.
func (d *Dispatcher) DispatchToUser(event, userID string, payload json.RawMessage) {
	d.fanOut(event, payload, d.registry.ConnectionsFor(userID))
}

// Broadcast delivers the event to every live connection across all users.
func (d *Dispatcher) Broadcast(event string, payload json.RawMessage) {
	d.fanOut(event, payload, d.registry.AllConnections())
}

func (d *Dispatcher) fanOut(event string, payload json.RawMessage, targets []string) {
	if len(targets) == 0 {
		return
	}
	frame, err := json.Marshal(Frame{Event: event, Payload: payload})
	if err != nil {
		d.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	for _, connID := range targets {
		d.mu.RLock()
		c, ok := d.conns[connID]
		d.mu.RUnlock()
		if !ok {
			continue
		}
		if err := c.Send(frame); err != nil {
			// One dead connection must not stop the rest of the fan-out.
			d.log.Warn("send failed, dropping connection",
				zap.String("conn", connID),
				zap.String("event", event),
				zap.Error(err))
			metrics.DeliveriesDropped.Inc()
			d.Detach(connID)
			continue
		}
		metrics.DeliveriesEnqueued.Inc()
	}
}

// Counts reports live connection and identified user totals.
func (d *Dispatcher) Counts() (conns, users int) {
	return d.registry.Counts()
}

// Shutdown closes every live connection.
func (d *Dispatcher) Shutdown() {
	d.mu.RLock()
	ids := make([]string, 0, len(d.conns))
	for id := range d.conns {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	for _, id := range ids {
		d.Detach(id)
	}
}

func (d *Dispatcher) syncUserGauge() {
	_, users := d.registry.Counts()
	metrics.IdentifiedUsers.Set(float64(users))
}
