package centrifuge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeExecutor runs Post synchronously (tests are single-threaded) and
// records AfterFunc calls instead of actually scheduling them, so tests
// can fire or cancel timers deterministically without waiting.
type fakeExecutor struct {
	afterCalls []fakeAfterCall
}

type fakeAfterCall struct {
	delay time.Duration
	fn    func()
	c     *fakeCanceler
}

type fakeCanceler struct {
	cancelled bool
}

func (c *fakeCanceler) Cancel() { c.cancelled = true }

func (e *fakeExecutor) Post(fn func()) { fn() }

func (e *fakeExecutor) AfterFunc(d time.Duration, fn func()) Canceler {
	c := &fakeCanceler{}
	e.afterCalls = append(e.afterCalls, fakeAfterCall{delay: d, fn: fn, c: c})
	return c
}

// fakeHandler records every transportHandler call it receives.
type fakeHandler struct {
	connecting   []error
	connected    []ConnectResult
	disconnected []DisconnectEvent
	replies      []Reply
	errors       []error
}

func (h *fakeHandler) handleTransportConnecting(err error)       { h.connecting = append(h.connecting, err) }
func (h *fakeHandler) handleTransportConnected(r ConnectResult)   { h.connected = append(h.connected, r) }
func (h *fakeHandler) handleTransportDisconnected(e DisconnectEvent) {
	h.disconnected = append(h.disconnected, e)
}
func (h *fakeHandler) handleTransportReply(r Reply)  { h.replies = append(h.replies, r) }
func (h *fakeHandler) handleTransportError(err error) { h.errors = append(h.errors, err) }

func newTestTransport() (*Transport, *fakeExecutor, *fakeHandler) {
	exec := &fakeExecutor{}
	handler := &fakeHandler{}
	cfg := DefaultClientConfig()
	tr := newTransport(cfg, exec, handler, newLogger(LogLevelNone, nil), nil)
	return tr, exec, handler
}

func TestTransportNextCommandIDSkipsZero(t *testing.T) {
	tr, _, _ := newTestTransport()
	seen := make(map[uint32]struct{})
	for i := 0; i < 5; i++ {
		id := tr.nextCommandID()
		require.NotZero(t, id)
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 5)
}

func TestTransportInitialConnectRejectsWhenNotDisconnected(t *testing.T) {
	tr, _, _ := newTestTransport()
	tr.state = stateConnecting
	require.ErrorIs(t, tr.initialConnect("ws://localhost/connection/websocket"), ErrNotDisconnected)
}

func TestTransportInitialConnectValidatesConfig(t *testing.T) {
	tr, _, _ := newTestTransport()
	tr.cfg.MinReconnectDelay = tr.cfg.MaxReconnectDelay
	err := tr.initialConnect("ws://localhost/connection/websocket")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestTransportInitialConnectRejectsBadURL(t *testing.T) {
	tr, _, _ := newTestTransport()
	require.Error(t, tr.initialConnect("http://localhost"))
}

func TestTransportInitialConnectStartsConnecting(t *testing.T) {
	tr, _, handler := newTestTransport()
	require.NoError(t, tr.initialConnect("ws://localhost:1/connection/websocket"))
	require.Equal(t, stateConnecting, tr.State())
	require.Len(t, handler.connecting, 1)
	require.NotNil(t, tr.closeCh)
}

func TestTransportHandleConnectResultArmsTimers(t *testing.T) {
	tr, exec, handler := newTestTransport()
	tr.state = stateConnecting
	tr.handleConnectResult(ConnectResult{
		Client:  "c1",
		Pong:    true,
		Ping:    25,
		Expires: true,
		TTL:     600,
	})

	require.Equal(t, stateConnected, tr.State())
	require.Equal(t, "c1", tr.clientID)
	require.True(t, tr.pingArmed)
	require.Len(t, handler.connected, 1)
	require.Len(t, exec.afterCalls, 2, "ping timer and refresh timer should both be armed")
}

func TestTransportHandleConnectResultResetsReconnectAttempts(t *testing.T) {
	tr, _, _ := newTestTransport()
	tr.reconnectAttempts = 7
	tr.handleConnectResult(ConnectResult{Client: "c1"})
	require.Zero(t, tr.reconnectAttempts)
}

func TestTransportHandleReplyRoutesTokenExpired(t *testing.T) {
	tr, _, handler := newTestTransport()
	tr.state = stateConnected
	tr.token = "old-token"

	tr.handleReply(Reply{ID: 3, Result: ErrorReply{Code: ErrorCodeTokenExpired, Message: "expired"}})

	require.Empty(t, tr.token)
	require.Equal(t, stateDisconnected, tr.State())
	require.Empty(t, handler.replies, "token-expired errors are handled internally, never forwarded")
	require.Len(t, handler.disconnected, 1)
	require.True(t, handler.disconnected[0].Reconnect)
}

func TestTransportHandleReplyForwardsOtherErrors(t *testing.T) {
	tr, _, handler := newTestTransport()
	tr.handleReply(Reply{ID: 3, Result: ErrorReply{Code: ErrorCodePermissionDenied, Message: "denied"}})
	require.Len(t, handler.replies, 1)
}

func TestTransportForceDisconnectCancelsTimersAndResetsSocket(t *testing.T) {
	tr, _, handler := newTestTransport()
	tr.state = stateConnected
	pingCanceler := &fakeCanceler{}
	refreshCanceler := &fakeCanceler{}
	reconnectCanceler := &fakeCanceler{}
	tr.pingTimer = pingCanceler
	tr.refreshTimer = refreshCanceler
	tr.reconnectTimer = reconnectCanceler
	tr.closeCh = make(chan struct{})
	tr.sentCommands[1] = Command{ID: 1, Request: SendRequest{}}

	tr.forceDisconnect(DisconnectEvent{Reason: "bye", Reconnect: false})

	require.True(t, pingCanceler.cancelled)
	require.True(t, refreshCanceler.cancelled)
	require.True(t, reconnectCanceler.cancelled)
	require.Equal(t, stateDisconnected, tr.State())
	require.Empty(t, tr.sentCommands)
	require.Nil(t, tr.closeCh)
	require.Len(t, handler.disconnected, 1)
}

func TestTransportDisconnectIsNoopWhenAlreadyDisconnected(t *testing.T) {
	tr, _, handler := newTestTransport()
	tr.disconnect()
	require.Empty(t, handler.disconnected)
}

func TestTransportSendQueuesCommandBeforeFlush(t *testing.T) {
	tr, _, _ := newTestTransport()
	err := tr.send(Command{ID: 5, Request: PublishRequest{Channel: "news", Data: []byte(`"hi"`)}})
	require.NoError(t, err)
	require.Contains(t, tr.pendingBuf.String(), `"channel":"news"`)
	require.Len(t, tr.pendingCommands, 1)
	require.Empty(t, tr.sentCommands, "command only enters sentCommands after a successful write")
}

func TestTransportSendWithZeroIDIsNotTracked(t *testing.T) {
	tr, _, _ := newTestTransport()
	require.NoError(t, tr.send(Command{ID: 0, Request: SendRequest{Data: []byte(`"x"`)}}))
	require.Empty(t, tr.pendingCommands)
}

func TestTransportHandleLinePongOnlyWhenArmed(t *testing.T) {
	tr, _, _ := newTestTransport()
	tr.handleLine(pingFrame)
	require.Zero(t, tr.pendingBuf.Len(), "no pong is written until a ping has been received while armed")

	tr.pingArmed = true
	tr.pingTimerInterval = time.Second
	tr.handleLine(pingFrame)
	require.Equal(t, string(pingFrame)+"\n", tr.pendingBuf.String())
}

func TestTransportHandleLineMalformedReportsError(t *testing.T) {
	tr, _, handler := newTestTransport()
	tr.handleLine([]byte(`not json`))
	require.Len(t, handler.errors, 1)
}

func TestTransportCloseSocketIsIdempotent(t *testing.T) {
	tr, _, _ := newTestTransport()
	tr.closeSocket()
	tr.closeSocket()
	require.Nil(t, tr.closeCh)
	require.Nil(t, tr.conn)
}

func TestTransportScheduleReconnectIncrementsAttempts(t *testing.T) {
	tr, exec, handler := newTestTransport()
	tr.state = stateConnected
	tr.scheduleReconnect()

	require.Equal(t, uint32(1), tr.reconnectAttempts)
	require.Len(t, handler.disconnected, 1)
	require.True(t, handler.disconnected[0].Reconnect)
	require.Len(t, exec.afterCalls, 1)
	require.LessOrEqual(t, exec.afterCalls[0].delay, tr.cfg.MaxReconnectDelay)
}

func TestTransportIsStaleDetectsSupersededAttempt(t *testing.T) {
	tr, _, _ := newTestTransport()
	closeCh := make(chan struct{})
	tr.closeCh = closeCh
	require.False(t, tr.isStale(closeCh))
	tr.closeCh = make(chan struct{})
	require.True(t, tr.isStale(closeCh))
}
