package centrifuge

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/centrifugal/centrifuge-go/internal/cancelctx"
)

// connectionState is the Transport's connection lifecycle state.
type connectionState int32

const (
	stateDisconnected connectionState = iota
	stateConnecting
	stateConnected
)

// transportHandler receives events the Transport cannot resolve on its
// own; implemented by Client.
type transportHandler interface {
	handleTransportConnecting(err error)
	handleTransportConnected(result ConnectResult)
	handleTransportDisconnected(event DisconnectEvent)
	handleTransportReply(reply Reply)
	handleTransportError(err error)
}

// Transport owns exactly one WebSocket connection attempt at a time: the
// handshake pipeline, the send queue with write coalescing, reply
// correlation via sentCommands, and the reconnect/ping/refresh timers.
// All of its state is mutated only on the bound Executor.
type Transport struct {
	cfg     ClientConfig
	exec    Executor
	handler transportHandler
	log     *logger
	metrics *clientMetrics

	rawURL string
	url    urlComponents

	state   connectionState
	conn    *websocket.Conn
	closeCh chan struct{} // closed when the current attempt/connection is torn down

	pendingBuf      bytes.Buffer
	pendingCommands []Command
	isWriting       bool
	sentCommands    map[uint32]Command

	nextID atomic.Uint32

	clientID          string
	token             string
	pingArmed         bool
	pingTimerInterval time.Duration
	reconnectAttempts uint32

	reconnectTimer Canceler
	pingTimer      Canceler
	refreshTimer   Canceler
}

func newTransport(cfg ClientConfig, exec Executor, handler transportHandler, log *logger, metrics *clientMetrics) *Transport {
	return &Transport{
		cfg:          cfg,
		exec:         exec,
		handler:      handler,
		log:          log,
		metrics:      metrics,
		sentCommands: make(map[uint32]Command),
		token:        cfg.Token,
	}
}

// nextCommandID returns a monotonically increasing id, skipping 0 (0 is
// reserved for fire-and-forget/pong).
func (t *Transport) nextCommandID() uint32 {
	id := t.nextID.Add(1)
	if id == 0 {
		id = t.nextID.Add(1)
	}
	return id
}

// State returns the current ConnectionState. Must be called on the executor.
func (t *Transport) State() connectionState {
	return t.state
}

// initialConnect begins a brand-new session: validates config and the
// URL, resets reconnectAttempts, and starts the first connect attempt
// immediately (not through the backoff timer). Must run on the executor.
func (t *Transport) initialConnect(rawURL string) error {
	if t.state != stateDisconnected {
		return ErrNotDisconnected
	}
	if err := t.cfg.Validate(); err != nil {
		return err
	}
	u, err := parseWSURL(rawURL)
	if err != nil {
		return err
	}
	t.rawURL = rawURL
	t.url = u
	t.reconnectAttempts = 0
	t.beginConnect()
	return nil
}

// beginConnect transitions Disconnected -> Connecting and launches one
// connect attempt. Does not touch reconnectAttempts.
func (t *Transport) beginConnect() {
	t.cancelTimer(&t.pingTimer)
	t.cancelTimer(&t.refreshTimer)
	t.pingArmed = false
	t.state = stateConnecting
	t.handler.handleTransportConnecting(nil)

	closeCh := make(chan struct{})
	t.closeCh = closeCh
	ctx := cancelctx.New(context.Background(), closeCh)

	go t.runConnectAttempt(ctx, closeCh)
}

// runConnectAttempt performs the whole connect pipeline's suspension
// points on a throwaway goroutine and posts the result back to the
// executor. closeCh identifies this attempt; if it has been superseded
// by the time the result arrives, the result is silently discarded.
func (t *Transport) runConnectAttempt(ctx context.Context, closeCh chan struct{}) {
	token, err := t.resolveToken(ctx)
	if err != nil {
		t.exec.Post(func() { t.handleTokenFailure(closeCh, err) })
		return
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 45 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, t.url.dialURL(), nil)
	if err != nil {
		t.exec.Post(func() { t.handleDialFailure(closeCh, err) })
		return
	}
	t.exec.Post(func() { t.handleDialSuccess(closeCh, conn, token) })
}

func (t *Transport) resolveToken(ctx context.Context) (string, error) {
	if t.token != "" {
		return t.token, nil
	}
	if t.cfg.GetToken == nil {
		return "", nil
	}
	return t.cfg.GetToken(ctx)
}

func (t *Transport) isStale(closeCh chan struct{}) bool {
	return t.closeCh != closeCh
}

func (t *Transport) handleTokenFailure(closeCh chan struct{}, err error) {
	if t.isStale(closeCh) {
		return
	}
	t.log.log(newLogEntry(LogLevelError, "token acquisition failed", map[string]any{"error": err.Error()}))
	t.forceDisconnect(DisconnectEvent{Reason: ErrUnauthorized.Error(), Reconnect: false})
}

func (t *Transport) handleDialFailure(closeCh chan struct{}, err error) {
	if t.isStale(closeCh) {
		return
	}
	t.metrics.observeTransportError()
	t.handler.handleTransportError(newTransportError("dial", err))
	t.scheduleReconnect()
}

func (t *Transport) handleDialSuccess(closeCh chan struct{}, conn *websocket.Conn, token string) {
	if t.isStale(closeCh) {
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.token = token

	cmd := Command{ID: t.nextCommandID(), Request: ConnectRequest{
		Token:   token,
		Name:    t.cfg.Name,
		Version: t.cfg.Version,
	}}
	t.sendCommand(cmd)

	go t.readLoop(conn, closeCh)
}

// readLoop reads WebSocket text frames until the connection closes or
// errors, posting each decoded frame/close back to the executor.
func (t *Transport) readLoop(conn *websocket.Conn, closeCh chan struct{}) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			closeErr := asCloseError(err)
			t.exec.Post(func() { t.handleReadClose(closeCh, closeErr) })
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		frame := data
		t.exec.Post(func() { t.handleFrame(closeCh, frame) })
	}
}

// closeInfo is the normalized outcome of a read error: either a real
// WebSocket close code or a plain I/O failure (code 0).
type closeInfo struct {
	Code   int
	Reason string
	Err    error
}

func asCloseError(err error) closeInfo {
	if ce, ok := err.(*websocket.CloseError); ok {
		return closeInfo{Code: ce.Code, Reason: ce.Text, Err: err}
	}
	return closeInfo{Code: 0, Reason: err.Error(), Err: err}
}

func (t *Transport) handleReadClose(closeCh chan struct{}, info closeInfo) {
	if t.isStale(closeCh) {
		return
	}
	if info.Code >= int(terminalCloseCodeThreshold) {
		t.forceDisconnect(DisconnectEvent{Code: CloseCode(info.Code), Reason: info.Reason, Reconnect: false})
		return
	}
	t.metrics.observeTransportError()
	t.handler.handleTransportError(newTransportError("read", info.Err))
	t.scheduleReconnect()
}

func (t *Transport) handleFrame(closeCh chan struct{}, frame []byte) {
	if t.isStale(closeCh) {
		return
	}
	for _, line := range splitFrame(frame) {
		t.handleLine(line)
	}
}

func (t *Transport) handleLine(line []byte) {
	if isPingFrame(line) {
		if t.pingArmed {
			t.rearmPingTimer()
			t.writeRaw(encodePong())
		}
		return
	}
	reply, err := decodeReply(line)
	if err != nil {
		t.log.log(newLogEntry(LogLevelWarn, "malformed reply line", map[string]any{"error": err.Error()}))
		t.handler.handleTransportError(newTransportError("decode", err))
		return
	}
	t.metrics.observeReplyReceived(reply.Result.resultTag())
	t.handleReply(reply)
}

func (t *Transport) handleReply(reply Reply) {
	switch res := reply.Result.(type) {
	case ConnectResult:
		t.handleConnectResult(res)
	case RefreshResult:
		t.handleRefreshResult(res)
	case ErrorReply:
		if res.Code == ErrorCodeTokenExpired {
			t.handleTokenExpired()
			return
		}
		t.handler.handleTransportReply(reply)
	default:
		t.handler.handleTransportReply(reply)
	}
}

func (t *Transport) handleConnectResult(res ConnectResult) {
	t.state = stateConnected
	t.clientID = res.Client
	t.reconnectAttempts = 0
	if res.Pong {
		t.pingArmed = true
		t.armPingTimer(time.Duration(res.Ping)*time.Second + t.cfg.MaxPingDelay)
	}
	if res.Expires {
		t.armRefreshTimer(res.TTL)
	}
	t.handler.handleTransportConnected(res)
}

func (t *Transport) handleRefreshResult(res RefreshResult) {
	if res.Expires {
		t.armRefreshTimer(res.TTL)
	}
}

func (t *Transport) handleTokenExpired() {
	t.token = ""
	t.scheduleReconnect()
}

// armPingTimer (re)starts the ping-timeout timer: firing means "no ping
// received in time" and triggers a reconnect.
func (t *Transport) armPingTimer(d time.Duration) {
	t.cancelTimer(&t.pingTimer)
	t.pingTimer = t.exec.AfterFunc(d, t.onPingTimeout)
	t.pingTimerInterval = d
}

func (t *Transport) rearmPingTimer() {
	if t.pingTimerInterval > 0 {
		t.armPingTimer(t.pingTimerInterval)
	}
}

func (t *Transport) onPingTimeout() {
	if t.state != stateConnected {
		return
	}
	t.handler.handleTransportError(newTransportError("ping", fmt.Errorf("no ping received within interval")))
	t.scheduleReconnect()
}

// armRefreshTimer (re)starts the token-refresh timer.
func (t *Transport) armRefreshTimer(ttlSeconds uint32) {
	t.cancelTimer(&t.refreshTimer)
	lead := t.cfg.RefreshTokenBeforeExpiry
	ttl := time.Duration(ttlSeconds) * time.Second
	d := ttl - lead
	if d < 0 {
		d = 0
	}
	t.refreshTimer = t.exec.AfterFunc(d, t.onRefreshTimer)
}

func (t *Transport) onRefreshTimer() {
	if t.state != stateConnected {
		return
	}
	closeCh := t.closeCh
	go func() {
		ctx := cancelctx.New(context.Background(), closeCh)
		token, err := t.resolveFreshToken(ctx)
		t.exec.Post(func() { t.handleRefreshToken(closeCh, token, err) })
	}()
}

func (t *Transport) resolveFreshToken(ctx context.Context) (string, error) {
	if t.cfg.GetToken == nil {
		return t.token, nil
	}
	return t.cfg.GetToken(ctx)
}

func (t *Transport) handleRefreshToken(closeCh chan struct{}, token string, err error) {
	if t.isStale(closeCh) {
		return
	}
	if err != nil {
		t.log.log(newLogEntry(LogLevelWarn, "token refresh failed", map[string]any{"error": err.Error()}))
		return
	}
	t.token = token
	t.sendCommand(Command{ID: t.nextCommandID(), Request: RefreshRequest{Token: token}})
}

// scheduleReconnect first tears the connection down (forceDisconnect with
// Reconnect:true), then arms the reconnect timer with a full-jitter backoff
// delay computed from the current reconnectAttempts, and increments it.
func (t *Transport) scheduleReconnect() {
	t.forceDisconnect(DisconnectEvent{Reason: "reconnecting", Reconnect: true})
	delay := backoffDelay(t.reconnectAttempts, t.cfg.MinReconnectDelay, t.cfg.MaxReconnectDelay)
	t.reconnectAttempts++
	t.metrics.observeReconnect()
	t.reconnectTimer = t.exec.AfterFunc(delay, t.beginConnect)
}

// forceDisconnect tears the current connection down: cancels all three
// timers, closes the socket, sets Disconnected, and notifies the handler.
func (t *Transport) forceDisconnect(event DisconnectEvent) {
	t.cancelTimer(&t.reconnectTimer)
	t.cancelTimer(&t.pingTimer)
	t.cancelTimer(&t.refreshTimer)
	t.pingArmed = false
	t.closeSocket()
	t.state = stateDisconnected
	t.handler.handleTransportDisconnected(event)
}

func (t *Transport) closeSocket() {
	if t.closeCh != nil {
		close(t.closeCh)
		t.closeCh = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.pendingBuf.Reset()
	t.pendingCommands = nil
	t.isWriting = false
	t.sentCommands = make(map[uint32]Command)
}

// disconnect is the public (executor-bound) counterpart of a user-
// initiated Disconnect call: same as forceDisconnect but never reconnects.
func (t *Transport) disconnect() {
	if t.state == stateDisconnected {
		return
	}
	t.forceDisconnect(DisconnectEvent{Reason: "client disconnect", Reconnect: false})
}

func (t *Transport) cancelTimer(c *Canceler) {
	if *c != nil {
		(*c).Cancel()
		*c = nil
	}
}

// send encodes and queues cmd for the next flush, returning an encode
// error synchronously. Commands with id 0 (bare pongs, Send) are not
// recorded in sentCommands.
func (t *Transport) send(cmd Command) error {
	data, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	t.metrics.observeCommandSent(cmd.Request.requestTag())
	t.pendingBuf.Write(data)
	t.pendingBuf.WriteByte('\n')
	if cmd.ID != 0 {
		t.pendingCommands = append(t.pendingCommands, cmd)
	}
	t.flush()
	return nil
}

// sendCommand is send without a synchronous error path, used by the
// internal pipeline steps (ConnectRequest, RefreshRequest) where an
// encode failure can only mean a programming error.
func (t *Transport) sendCommand(cmd Command) {
	if err := t.send(cmd); err != nil {
		t.handler.handleTransportError(newTransportError("encode", err))
	}
}

func (t *Transport) writeRaw(data []byte) {
	t.pendingBuf.Write(data)
	t.pendingBuf.WriteByte('\n')
	t.flush()
}

// flush is a no-op if a write is already in flight or there is nothing
// pending; otherwise it atomically swaps out the pending buffer/commands
// and writes them in one WebSocket frame on a throwaway goroutine.
func (t *Transport) flush() {
	if t.isWriting || t.pendingBuf.Len() == 0 || t.conn == nil {
		return
	}
	buf := make([]byte, t.pendingBuf.Len())
	copy(buf, t.pendingBuf.Bytes())
	t.pendingBuf.Reset()
	commands := t.pendingCommands
	t.pendingCommands = nil

	t.isWriting = true
	conn := t.conn
	closeCh := t.closeCh
	go func() {
		err := conn.WriteMessage(websocket.TextMessage, buf)
		t.exec.Post(func() { t.handleFlushDone(closeCh, commands, err) })
	}()
}

func (t *Transport) handleFlushDone(closeCh chan struct{}, commands []Command, err error) {
	if t.isStale(closeCh) {
		return
	}
	t.isWriting = false
	if err != nil {
		t.handler.handleTransportError(newTransportError("write", err))
		return
	}
	for _, cmd := range commands {
		t.sentCommands[cmd.ID] = cmd
	}
	t.flush()
}
