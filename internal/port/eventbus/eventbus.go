package eventbus

import (
	"context"

	"github.com/alanyang/annotation-desk/internal/domain/event"
)

//go:generate mockgen -destination=../../mocks/eventbus.go -package=mocks . EventBus

type Handler func(ctx context.Context, e event.Event)

type Subscription interface {
	Unsubscribe()
}

type EventBus interface {
	Publish(ctx context.Context, e event.Event) error
	Subscribe(ctx context.Context, handler Handler) (Subscription, error)
}
