package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/giveboard/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishResourceRevalidated forwards a fresh resource body to the dashboards listening on its channel.
// Failed fetches and unchanged bodies are not published.
func (a *API) PublishResourceRevalidated(ctx context.Context, e domain.EventResourceRevalidated) error {
	if e.Err != nil || !e.Changed || !json.Valid(e.Data) {
		return nil
	}

	return a.publishNotification(ctx, a.resourceChannel(e.Key), e.Name(), json.RawMessage(e.Data))
}

// PublishWheelSpun announces a draw to every dashboard and to the winner's own channel.
func (a *API) PublishWheelSpun(ctx context.Context, e domain.EventWheelSpun) error {
	data := toDraw(e.Draw)

	var eg errgroup.Group
	for _, ch := range []string{a.wheelChannel(), a.userChannel(e.Draw.Winner)} {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) resourceChannel(key string) string {
	return fmt.Sprintf("%s:resource:%s", a.prefix, key)
}

func (a *API) wheelChannel() string {
	return fmt.Sprintf("%s:wheel", a.prefix)
}

func (a *API) userChannel(user string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, user)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
