package player

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/avplayer/pkg/media"
	"github.com/xaionaro-go/eventbus"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
)

type EventOpened struct {
	Info media.Info
}

type EventStateChanged struct {
	Old Status
	New Status
}

type EventSeeked struct {
	Target   time.Duration
	Accurate bool
}

type EventEndOfStream struct{}

type EventError struct {
	Err error
}

type EventShutdown struct{}

// the queue absorbs bursts (e.g. a seek's Seeking->Ready pair) while the
// subscriber is between reads
const eventQueueSize = 16

func publishEvent[E any](
	ctx context.Context,
	p *Player,
	event E,
) {
	logger.Debugf(ctx, "publishEvent[%T](ctx, %#+v)", event, event)
	defer logger.Debugf(ctx, "/publishEvent[%T](ctx, %#+v)", event, event)
	result := eventbus.SendEvent(ctx, p.eventBus, event)
	if result.DropCountImmediate+result.DropCountDeferred > 0 {
		logger.Errorf(ctx, "unable to notify everybody about %T: %#+v", event, result)
	}
}

// SubscribeToStateChanges returns a channel of state machine transitions.
// The channel closes when ctx is cancelled.
func (p *Player) SubscribeToStateChanges(
	ctx context.Context,
) (<-chan EventStateChanged, error) {
	return eventSubToChan[EventStateChanged](ctx, p)
}

// SubscribeToErrors returns a channel of decode/seek errors. The channel
// closes when ctx is cancelled.
func (p *Player) SubscribeToErrors(
	ctx context.Context,
) (<-chan EventError, error) {
	return eventSubToChan[EventError](ctx, p)
}

func eventSubToChan[E any](
	ctx context.Context,
	p *Player,
) (<-chan E, error) {
	sub := eventbus.Subscribe[E](ctx, p.eventBus, eventbus.OptionQueueSize(eventQueueSize))
	if sub == nil {
		var sample E
		return nil, fmt.Errorf("unable to subscribe to %T events", sample)
	}

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		// unsubscribing closes the event channel, which is how the
		// subscriber learns the subscription ended
		eventbus.Unsubscribe(xcontext.DetachDone(ctx), p.eventBus, sub)
	})

	return sub.EventChan(), nil
}
