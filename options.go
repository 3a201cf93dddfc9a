package centrifuge

// SubscriptionOptions holds the options a Subscription is created with.
type SubscriptionOptions struct {
	Data        []byte
	Positioned  bool
	Recoverable bool
	JoinLeave   bool
	Delta       bool
	Token       string
}

// SubscriptionOption mutates SubscriptionOptions at NewSubscription time.
type SubscriptionOption func(*SubscriptionOptions)

// WithSubscribeData attaches opaque data to every SubscribeRequest for
// this subscription.
func WithSubscribeData(data []byte) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.Data = data }
}

// WithPositioned requests the server track stream position for this
// subscription.
func WithPositioned(positioned bool) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.Positioned = positioned }
}

// WithRecoverable requests the server retain enough history to recover
// missed publications across reconnects for this subscription.
func WithRecoverable(recoverable bool) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.Recoverable = recoverable }
}

// WithJoinLeave requests join/leave push notifications for this
// subscription's channel.
func WithJoinLeave(joinLeave bool) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.JoinLeave = joinLeave }
}

// WithDelta requests delta-compressed publications for this subscription.
func WithDelta(delta bool) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.Delta = delta }
}

// WithSubscribeToken attaches a channel-specific JWT to every
// SubscribeRequest for this subscription.
func WithSubscribeToken(token string) SubscriptionOption {
	return func(o *SubscriptionOptions) { o.Token = token }
}

// PublishOptions holds the options a single Publish call is made with.
type PublishOptions struct{}

// PublishOption mutates PublishOptions at Publish call time. No options
// are currently defined; the type exists so Publish's signature does not
// need to change when one is added, matching the teacher's options.go
// idiom for every other verb.
type PublishOption func(*PublishOptions)
