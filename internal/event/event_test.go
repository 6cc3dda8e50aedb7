package event_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/giveboard/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber should only receive the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						named("resource.revalidated"),
						named("wheel.spun"),
					},
					subscribers: []subscriber{
						{name: "pubsub", subscribeTo: []string{"wheel.spun"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{named("wheel.spun")}, out.received["pubsub"])
			},
		},

		"every subscriber of an event should receive it": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						named("resource.revalidated"),
						named("resource.revalidated"),
					},
					subscribers: []subscriber{
						{name: "pubsub", subscribeTo: []string{"resource.revalidated"}},
						{name: "health", subscribeTo: []string{"resource.revalidated"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				want := []event.Event{named("resource.revalidated"), named("resource.revalidated")}
				assert.ElementsMatch(t, want, out.received["pubsub"])
				assert.ElementsMatch(t, want, out.received["health"])
			},
		},

		"events without subscribers should be dropped": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{named("nobody.listens")},
					subscribers: []subscriber{
						{name: "pubsub", subscribeTo: []string{"wheel.spun", "resource.revalidated"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Empty(t, out.received)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1))

	release := make(chan struct{})
	b.Subscribe("wheel.spun", func(ctx context.Context, e event.Event) error {
		<-release
		return nil
	})

	fast := make(chan struct{}, 2)
	b.Subscribe("resource.revalidated", func(ctx context.Context, e event.Event) error {
		fast <- struct{}{}
		return nil
	})

	b.Publish(context.Background(), named("wheel.spun"))
	b.Publish(context.Background(), named("resource.revalidated"))
	b.Publish(context.Background(), named("resource.revalidated"))

	for range 2 {
		select {
		case <-fast:
		case <-time.After(time.Second):
			t.Fatal("fast subscriber was blocked by the slow one")
		}
	}

	close(release)
	b.Stop()
}

func TestBus_HandlerPanicAndTimeout(t *testing.T) {
	b := event.NewBus(event.WithTimeout(10 * time.Millisecond))

	b.Subscribe("wheel.spun", func(ctx context.Context, e event.Event) error {
		panic("boom")
	})

	var deadline bool
	b.Subscribe("wheel.spun", func(ctx context.Context, e event.Event) error {
		<-ctx.Done()
		deadline = true
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NotPanics(t, func() {
		b.Publish(ctx, named("wheel.spun"))
		b.Stop()
	})
	assert.True(t, deadline, "handler context should outlive the publisher but still time out")
}

type named string

func (e named) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
