package centrifuge

// SubscriptionState is the per-channel state machine's current state.
type SubscriptionState int

const (
	SubscriptionStateUnsubscribed SubscriptionState = iota
	SubscriptionStateSubscribing
	SubscriptionStateSubscribed
)

// Subscription is a client-initiated per-channel subscription created by
// Client.NewSubscription. Subscribe and Unsubscribe hop onto the bound
// Client's executor before touching anything; the OnXxx registration
// methods store the callback directly.
type Subscription struct {
	channel string
	client  *Client
	opts    SubscriptionOptions

	state      SubscriptionState
	pendingIDs map[uint32]struct{}

	epoch       string
	offset      uint64
	recoverable bool

	onSubscribing  func()
	onSubscribed   func()
	onUnsubscribed func()
	onPublication  func(Publication)
	onError        func(Error)
}

func newSubscription(client *Client, channel string, opts SubscriptionOptions) *Subscription {
	return &Subscription{
		channel:     channel,
		client:      client,
		opts:        opts,
		pendingIDs:  make(map[uint32]struct{}),
		recoverable: opts.Recoverable,
	}
}

// Channel returns the channel name this Subscription was created for.
func (s *Subscription) Channel() string { return s.channel }

// State returns the Subscription's current state. Safe to read from any
// goroutine only in the loose sense that it will not race fatally; for a
// consistent view, read it from within a callback.
func (s *Subscription) State() SubscriptionState { return s.state }

// OnSubscribing registers the callback fired when the subscription
// starts (re-)subscribing.
func (s *Subscription) OnSubscribing(fn func()) { s.onSubscribing = fn }

// OnSubscribed registers the callback fired once the SubscribeResult
// arrives.
func (s *Subscription) OnSubscribed(fn func()) { s.onSubscribed = fn }

// OnUnsubscribed registers the callback fired once the subscription is
// confirmed unsubscribed.
func (s *Subscription) OnUnsubscribed(fn func()) { s.onUnsubscribed = fn }

// OnPublication registers the callback fired for every Publication
// delivered on this channel, whether replayed from recovery or pushed live.
func (s *Subscription) OnPublication(fn func(Publication)) { s.onPublication = fn }

// OnError registers the callback fired when an ErrorReply arrives for
// one of this subscription's pending commands.
func (s *Subscription) OnError(fn func(Error)) { s.onError = fn }

// Subscribe starts (or resumes) the subscription. Safe to call from any
// goroutine.
func (s *Subscription) Subscribe() error {
	return s.client.runSync(s.subscribeLocked)
}

// Unsubscribe tears the subscription down. Safe to call from any goroutine.
func (s *Subscription) Unsubscribe() error {
	return s.client.runSync(s.unsubscribeLocked)
}

func (s *Subscription) subscribeLocked() error {
	switch s.state {
	case SubscriptionStateSubscribing:
		return ErrAlreadySubscribing
	case SubscriptionStateSubscribed:
		return ErrAlreadySubscribed
	}
	s.state = SubscriptionStateSubscribing
	s.fireSubscribing()
	if s.client.transport.State() == stateConnected {
		s.sendSubscribeRequest()
	}
	return nil
}

func (s *Subscription) unsubscribeLocked() error {
	if s.state == SubscriptionStateUnsubscribed {
		return nil
	}
	if s.client.transport.State() == stateConnected {
		id := s.client.transport.nextCommandID()
		s.pendingIDs[id] = struct{}{}
		if err := s.client.transport.send(Command{ID: id, Request: UnsubscribeRequest{Channel: s.channel}}); err != nil {
			return err
		}
		return nil
	}
	s.setUnsubscribed()
	return nil
}

func (s *Subscription) sendSubscribeRequest() {
	req := SubscribeRequest{
		Channel:     s.channel,
		Token:       s.opts.Token,
		Data:        s.opts.Data,
		Positioned:  s.opts.Positioned,
		Recoverable: s.opts.Recoverable,
		JoinLeave:   s.opts.JoinLeave,
		Delta:       s.opts.Delta,
	}
	if s.recoverable && s.epoch != "" {
		req.Recover = true
		req.Epoch = s.epoch
		req.Offset = s.offset
	}
	id := s.client.transport.nextCommandID()
	s.pendingIDs[id] = struct{}{}
	if err := s.client.transport.send(Command{ID: id, Request: req}); err != nil {
		s.client.transport.handler.handleTransportError(newTransportError("encode", err))
	}
}

// claims reports whether id belongs to one of this subscription's
// outstanding commands.
func (s *Subscription) claims(id uint32) bool {
	_, ok := s.pendingIDs[id]
	return ok
}

// onTransportConnecting implements the "Transport -> Connecting" row: an
// already-Subscribed subscription moves back to Subscribing (it will
// re-subscribe once the connection comes back up).
func (s *Subscription) onTransportConnecting() {
	if s.state == SubscriptionStateSubscribed {
		s.state = SubscriptionStateSubscribing
		s.fireSubscribing()
	}
}

// onTransportConnected implements the "Transport -> Connected" row: a
// Subscribing subscription (re-)sends its SubscribeRequest.
func (s *Subscription) onTransportConnected() {
	if s.state == SubscriptionStateSubscribing {
		s.sendSubscribeRequest()
	}
}

// handleReply dispatches a reply this subscription has claimed.
func (s *Subscription) handleReply(reply Reply) {
	delete(s.pendingIDs, reply.ID)
	switch res := reply.Result.(type) {
	case SubscribeResult:
		s.handleSubscribeResult(res)
	case UnsubscribeResult:
		s.setUnsubscribed()
	case ErrorReply:
		s.fireError(res.asError())
	case Push:
		if res.Kind == pushKindPublication && res.Pub != nil {
			s.handlePublicationPush(*res.Pub)
		}
	}
}

func (s *Subscription) handleSubscribeResult(res SubscribeResult) {
	s.recoverable = res.Recoverable
	s.epoch = res.Epoch
	s.offset = res.Offset
	for _, p := range uniqueByOffset(res.Publications) {
		s.firePublication(p)
	}
	s.state = SubscriptionStateSubscribed
	s.fireSubscribed()
}

func (s *Subscription) handlePublicationPush(p Publication) {
	if p.Offset > 0 {
		s.offset = p.Offset
	}
	s.firePublication(p)
}

func (s *Subscription) setUnsubscribed() {
	s.state = SubscriptionStateUnsubscribed
	s.pendingIDs = make(map[uint32]struct{})
	s.fireUnsubscribed()
}

func (s *Subscription) fireSubscribing() {
	if s.onSubscribing != nil {
		s.onSubscribing()
	}
}

func (s *Subscription) fireSubscribed() {
	if s.onSubscribed != nil {
		s.onSubscribed()
	}
}

func (s *Subscription) fireUnsubscribed() {
	if s.onUnsubscribed != nil {
		s.onUnsubscribed()
	}
}

func (s *Subscription) firePublication(p Publication) {
	if s.onPublication != nil {
		s.onPublication(p)
	}
}

func (s *Subscription) fireError(err Error) {
	if s.onError != nil {
		s.onError(err)
	}
}
