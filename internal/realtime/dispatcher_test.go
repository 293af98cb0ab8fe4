package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulseboard-realtime/internal/presence"
)

// fakeConn records delivered frames; fail makes every send error to exercise
// the isolation path.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport closed")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(presence.NewRegistry(), zap.NewNop())
}

func attachIdentified(d *Dispatcher, userID string) *fakeConn {
	c := newFakeConn()
	d.Attach(c)
	d.Identify(c.ID(), userID)
	return c
}

func TestDispatcher_FanOut_Reaches_Every_Connection_Of_The_Target_User(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	// Given user-a with three connections and user-b with one
	c1 := attachIdentified(d, "user-a")
	c2 := attachIdentified(d, "user-a")
	c3 := attachIdentified(d, "user-a")
	other := attachIdentified(d, "user-b")

	// When an event targets user-a
	d.DispatchToUser("chat:message", "user-a", json.RawMessage(`{"text":"hi"}`))

	// Then each of user-a's connections gets it exactly once
	for _, c := range []*fakeConn{c1, c2, c3} {
		frames := c.received()
		req.Len(frames, 1)
		var frame Frame
		req.NoError(json.Unmarshal(frames[0], &frame))
		req.Equal("chat:message", frame.Event)
		req.JSONEq(`{"text":"hi"}`, string(frame.Payload))
	}
	// And user-b gets nothing
	req.Empty(other.received())
}

func TestDispatcher_Failed_Send_Does_Not_Abort_The_FanOut(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	c1 := attachIdentified(d, "user-a")
	dead := attachIdentified(d, "user-a")
	dead.fail = true
	c3 := attachIdentified(d, "user-a")

	d.DispatchToUser("share:invite", "user-a", json.RawMessage(`{"dashboardId":7}`))

	// The healthy connections still receive the event
	req.Len(c1.received(), 1)
	req.Len(c3.received(), 1)

	// The dead connection was detached and is never targeted again
	req.True(dead.isClosed())
	d.DispatchToUser("share:invite", "user-a", json.RawMessage(`{"dashboardId":8}`))
	req.Len(c1.received(), 2)
	req.Empty(dead.received())
}

func TestDispatcher_Broadcast_Reaches_All_Users_And_Unidentified_Connections(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	a := attachIdentified(d, "user-a")
	b := attachIdentified(d, "user-b")
	anonymous := newFakeConn()
	d.Attach(anonymous)

	d.Broadcast("announcement:new", json.RawMessage(`{"title":"X"}`))

	for _, c := range []*fakeConn{a, b, anonymous} {
		frames := c.received()
		req.Len(frames, 1)
		var frame Frame
		req.NoError(json.Unmarshal(frames[0], &frame))
		req.Equal("announcement:new", frame.Event)
		req.JSONEq(`{"title":"X"}`, string(frame.Payload))
	}
}

func TestDispatcher_Dispatch_To_Offline_User_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	bystander := attachIdentified(d, "user-b")

	d.DispatchToUser("chat:message", "user-offline", json.RawMessage(`{}`))

	req.Empty(bystander.received())
}

func TestDispatcher_Detach_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	c := attachIdentified(d, "user-a")
	d.Detach(c.ID())
	d.Detach(c.ID())

	conns, users := d.Counts()
	req.Equal(0, conns)
	req.Equal(0, users)
}

func TestDispatcher_Shutdown_Closes_Every_Connection(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	a := attachIdentified(d, "user-a")
	b := attachIdentified(d, "user-b")

	d.Shutdown()

	req.True(a.isClosed())
	req.True(b.isClosed())
	conns, _ := d.Counts()
	req.Equal(0, conns)
}

func TestDispatcher_Event_Without_Payload_Omits_The_Field(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()

	c := attachIdentified(d, "user-a")
	d.DispatchToUser("chat:typing", "user-a", nil)

	frames := c.received()
	req.Len(frames, 1)
	req.JSONEq(`{"event":"chat:typing"}`, string(frames[0]))
}
