// Package notify fans dispute lifecycle events out to split participants.
// Delivery is best effort: the dispatcher joins every send, collects the
// per-recipient outcomes, logs the failures and never surfaces them to the
// caller.
package notify

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Notification is one dispute event addressed to one recipient.
type Notification struct {
	Recipient   string
	DisputeID   string
	SplitID     string
	Event       string
	DisputeType string
	Status      string
}

// Outcome records how one recipient's send went.
type Outcome struct {
	Recipient string
	Err       error
}

// Sender delivers a single notification. Implementations own their transport
// and retry policy.
type Sender interface {
	SendDisputeNotification(ctx context.Context, n Notification) error
}

// Dispatcher fans a notification out to a set of recipients concurrently.
type Dispatcher struct {
	sender Sender
	log    zerolog.Logger
}

func NewDispatcher(sender Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, log: log}
}

// Fanout sends n to every recipient concurrently and waits for all sends to
// settle. Individual failures are captured in the returned outcomes and
// logged; none propagate.
func (d *Dispatcher) Fanout(ctx context.Context, recipients []string, n Notification) []Outcome {
	outcomes := make([]Outcome, len(recipients))

	var g errgroup.Group
	for i, recipient := range recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			msg := n
			msg.Recipient = recipient
			outcomes[i] = Outcome{
				Recipient: recipient,
				Err:       d.sender.SendDisputeNotification(ctx, msg),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			d.log.Warn().Err(o.Err).
				Str("recipient", o.Recipient).
				Str("dispute_id", n.DisputeID).
				Str("event", n.Event).
				Msg("dispute notification failed")
		}
	}

	return outcomes
}

// LogSender is the default sink: it records the notification in the log
// instead of delivering it. Real delivery transports implement Sender
// elsewhere.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendDisputeNotification(_ context.Context, n Notification) error {
	s.log.Info().
		Str("recipient", n.Recipient).
		Str("dispute_id", n.DisputeID).
		Str("split_id", n.SplitID).
		Str("event", n.Event).
		Str("dispute_type", n.DisputeType).
		Str("status", n.Status).
		Msg("dispute notification")
	return nil
}
