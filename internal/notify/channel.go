package notify

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"gatepass/visits/internal/db"
)

const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// Channel is one delivery mechanism. New mechanisms are added by
// registering another implementation, not by branching on type.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *db.Notification) error
}

type Registry struct {
	channels map[string]Channel
}

func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: map[string]Channel{}}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

func (r *Registry) Register(ch Channel) {
	r.channels[ch.Name()] = ch
}

func (r *Registry) Get(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// EnabledChannels lists the channel names a notification asked for, in a
// fixed order with in-app first.
func EnabledChannels(n *db.Notification) []string {
	var names []string
	if n.ChannelInApp {
		names = append(names, ChannelInApp)
	}
	if n.ChannelEmail {
		names = append(names, ChannelEmail)
	}
	if n.ChannelSMS {
		names = append(names, ChannelSMS)
	}
	if n.ChannelPush {
		names = append(names, ChannelPush)
	}
	return names
}

// inAppChannel: the persisted record is the delivery, so sending always
// succeeds.
type inAppChannel struct{}

func NewInAppChannel() Channel { return inAppChannel{} }

func (inAppChannel) Name() string { return ChannelInApp }

func (inAppChannel) Send(ctx context.Context, n *db.Notification) error {
	return nil
}

// shoutrrrChannel routes an external channel (email, sms, push) through a
// shoutrrr provider URL.
type shoutrrrChannel struct {
	name   string
	sender *router.ServiceRouter
}

// NewShoutrrrChannel builds a channel from a provider URL. An error here
// means the URL is malformed; the caller decides whether to run without
// the channel.
func NewShoutrrrChannel(name, url string, timeout time.Duration) (Channel, error) {
	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &shoutrrrChannel{name: name, sender: sender}, nil
}

func (c *shoutrrrChannel) Name() string { return c.name }

func (c *shoutrrrChannel) Send(ctx context.Context, n *db.Notification) error {
	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	errs := c.sender.Send(n.Message, &params)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
