package centrifuge

// ConnectedEvent is delivered to OnConnected once a ConnectResult arrives.
type ConnectedEvent struct {
	ClientID string
	Data     []byte
}

// Client is the top-level connection orchestrator: it owns one Transport,
// the registry of client-initiated Subscriptions, the set of
// server-initiated subscriptions, and routes replies/pushes to the right
// place. Connect, Disconnect, NewSubscription, RemoveSubscription,
// Publish and Send are safe to call from any goroutine: they run on the
// bound Executor. The OnXxx registration methods store the callback
// directly without going through the Executor.
type Client struct {
	cfg       ClientConfig
	exec      Executor
	url       string
	transport *Transport
	log       *logger
	metrics   *clientMetrics

	subscriptions       map[string]*Subscription
	serverSubscriptions map[string]struct{}

	onConnecting   func(error)
	onConnected    func(ConnectedEvent)
	onDisconnected func(DisconnectEvent)
	onSubscribing  func(channel string)
	onSubscribed   func(channel string)
	onUnsubscribed func(channel string)
	onPublication  func(channel string, pub Publication)
	onError        func(error)
}

// NewClient constructs a Client bound to url. It does not connect until
// Connect is called.
func NewClient(url string, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:                 cfg,
		exec:                cfg.Executor,
		url:                 url,
		subscriptions:       make(map[string]*Subscription),
		serverSubscriptions: make(map[string]struct{}),
	}
	c.log = newLogger(cfg.LogLevel, cfg.LogHandler)

	metrics, err := initClientMetrics(cfg.MetricsRegisterer)
	if err != nil {
		c.log.log(newLogEntry(LogLevelWarn, "metrics registration failed", map[string]any{"error": err.Error()}))
	} else {
		c.metrics = metrics
	}

	c.transport = newTransport(cfg, c.exec, c, c.log, c.metrics)
	return c
}

// runSync posts fn to the executor and blocks for its synchronous result,
// giving callers on any goroutine a synchronous-looking API without the
// core needing any locking of its own.
func (c *Client) runSync(fn func() error) error {
	done := make(chan error, 1)
	c.exec.Post(func() { done <- fn() })
	return <-done
}

// Connect begins a brand-new session against the Client's configured URL.
func (c *Client) Connect() error {
	return c.runSync(func() error { return c.transport.initialConnect(c.url) })
}

// Disconnect tears the connection down without scheduling a reconnect.
func (c *Client) Disconnect() error {
	return c.runSync(func() error {
		c.transport.disconnect()
		return nil
	})
}

// NewSubscription creates and registers a client-initiated Subscription
// for channel. Fails if channel is already registered, client-side or
// server-side.
func (c *Client) NewSubscription(channel string, opts ...SubscriptionOption) (*Subscription, error) {
	var o SubscriptionOptions
	for _, opt := range opts {
		opt(&o)
	}
	var sub *Subscription
	err := c.runSync(func() error {
		if _, ok := c.subscriptions[channel]; ok {
			return ErrDuplicateChannel
		}
		if _, ok := c.serverSubscriptions[channel]; ok {
			return ErrDuplicateChannel
		}
		sub = newSubscription(c, channel, o)
		c.subscriptions[channel] = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// RemoveSubscription removes sub from the registry. The caller is
// responsible for having unsubscribed first.
func (c *Client) RemoveSubscription(sub *Subscription) error {
	return c.runSync(func() error {
		delete(c.subscriptions, sub.channel)
		return nil
	})
}

// Publish sends data to channel. Only allowed for channels the server
// itself subscribed the connection to (a server-side subscription); use
// Subscription for client-initiated channels.
func (c *Client) Publish(channel string, data []byte, _ ...PublishOption) error {
	return c.runSync(func() error {
		if c.transport.State() != stateConnected {
			return ErrNotSubscribed
		}
		if _, ok := c.serverSubscriptions[channel]; !ok {
			return ErrNotSubscribed
		}
		id := c.transport.nextCommandID()
		return c.transport.send(Command{ID: id, Request: PublishRequest{Channel: channel, Data: data}})
	})
}

// Send issues an asynchronous, fire-and-forget message with no reply.
func (c *Client) Send(data []byte) error {
	return c.runSync(func() error {
		if c.transport.State() != stateConnected {
			return ErrNotConnected
		}
		return c.transport.send(Command{ID: 0, Request: SendRequest{Data: data}})
	})
}

// OnConnecting registers the callback fired whenever the Transport
// starts (or resumes) connecting.
func (c *Client) OnConnecting(fn func(error)) { c.onConnecting = fn }

// OnConnected registers the callback fired once a ConnectResult arrives.
func (c *Client) OnConnected(fn func(ConnectedEvent)) { c.onConnected = fn }

// OnDisconnected registers the callback fired whenever the connection
// goes down, whether terminally or pending a reconnect.
func (c *Client) OnDisconnected(fn func(DisconnectEvent)) { c.onDisconnected = fn }

// OnSubscribing registers the callback fired for a server-initiated
// subscription entering the Subscribing state (client-initiated
// Subscriptions report through their own OnSubscribing instead).
func (c *Client) OnSubscribing(fn func(channel string)) { c.onSubscribing = fn }

// OnSubscribed registers the callback fired for a server-initiated
// subscription entering the Subscribed state.
func (c *Client) OnSubscribed(fn func(channel string)) { c.onSubscribed = fn }

// OnUnsubscribed registers the callback fired for a server-initiated
// subscription entering the Unsubscribed state.
func (c *Client) OnUnsubscribed(fn func(channel string)) { c.onUnsubscribed = fn }

// OnPublication registers the callback fired for Publications delivered
// on a server-initiated subscription (client-initiated Subscriptions
// deliver through their own OnPublication instead).
func (c *Client) OnPublication(fn func(channel string, pub Publication)) { c.onPublication = fn }

// OnError registers the callback fired for transport errors and for
// protocol errors that do not belong to any known Subscription.
func (c *Client) OnError(fn func(error)) { c.onError = fn }

// --- transportHandler ---

func (c *Client) handleTransportConnecting(err error) {
	for _, sub := range c.subscriptions {
		sub.onTransportConnecting()
	}
	for ch := range c.serverSubscriptions {
		c.fireSubscribing(ch)
	}
	if c.onConnecting != nil {
		c.onConnecting(err)
	}
	c.log.log(newLogEntry(LogLevelInfo, "connecting"))
}

func (c *Client) handleTransportConnected(result ConnectResult) {
	newSubs := make(map[string]struct{}, len(result.Subs))
	for ch := range result.Subs {
		newSubs[ch] = struct{}{}
	}
	for ch := range c.serverSubscriptions {
		if _, ok := newSubs[ch]; !ok {
			delete(c.serverSubscriptions, ch)
			c.fireUnsubscribed(ch)
		}
	}
	for ch := range newSubs {
		if _, ok := c.serverSubscriptions[ch]; !ok {
			c.serverSubscriptions[ch] = struct{}{}
			c.fireSubscribing(ch)
		}
	}
	for ch := range c.serverSubscriptions {
		c.fireSubscribed(ch)
	}
	for _, sub := range c.subscriptions {
		sub.onTransportConnected()
	}
	c.log.log(newLogEntry(LogLevelInfo, "connected", map[string]any{"client": result.Client}))
	if c.onConnected != nil {
		c.onConnected(ConnectedEvent{ClientID: result.Client, Data: result.Data})
	}
}

func (c *Client) handleTransportDisconnected(event DisconnectEvent) {
	for ch := range c.serverSubscriptions {
		c.fireUnsubscribed(ch)
	}
	level := LogLevelInfo
	if !event.Reconnect {
		level = LogLevelWarn
	}
	c.log.log(newLogEntry(level, "disconnected", map[string]any{"reason": event.Reason, "reconnect": event.Reconnect}))
	if c.onDisconnected != nil {
		c.onDisconnected(event)
	}
}

func (c *Client) handleTransportReply(reply Reply) {
	if push, ok := reply.Result.(Push); ok {
		c.routePush(push)
		return
	}
	for _, sub := range c.subscriptions {
		if sub.claims(reply.ID) {
			sub.handleReply(reply)
			return
		}
	}
	if errResult, ok := reply.Result.(ErrorReply); ok {
		c.fireError(errResult.asError())
	}
}

func (c *Client) routePush(push Push) {
	if push.Kind != pushKindPublication || push.Pub == nil {
		return
	}
	if _, ok := c.serverSubscriptions[push.Channel]; ok {
		c.firePublication(push.Channel, *push.Pub)
		return
	}
	if sub, ok := c.subscriptions[push.Channel]; ok {
		sub.handlePublicationPush(*push.Pub)
	}
}

func (c *Client) handleTransportError(err error) {
	c.log.log(newLogEntry(LogLevelError, "transport error", map[string]any{"error": err.Error()}))
	c.fireError(err)
}

// --- callback firing helpers ---

func (c *Client) fireSubscribing(channel string) {
	if c.onSubscribing != nil {
		c.onSubscribing(channel)
	}
}

func (c *Client) fireSubscribed(channel string) {
	if c.onSubscribed != nil {
		c.onSubscribed(channel)
	}
}

func (c *Client) fireUnsubscribed(channel string) {
	if c.onUnsubscribed != nil {
		c.onUnsubscribed(channel)
	}
}

func (c *Client) firePublication(channel string, pub Publication) {
	if c.onPublication != nil {
		c.onPublication(channel, pub)
	}
}

func (c *Client) fireError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}
