package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tastevault/tastevault"
)

const channelPrefix = "tv:recipe:"

// SignalService fans recipe-change events out to realtime listeners
// through redis pub/sub.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

// Publish announces a committed mutation or restore on the recipe's
// channel.
func (s *SignalService) Publish(ctx context.Context, event tastevault.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelPrefix+event.RecipeID, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards events for the recipe ids received on input to
// output until the context ends. Each input message replaces the
// subscription set.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- tastevault.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var subscribed []string

	for {
		select {
		case <-ctx.Done():
			return

		case recipeIDs, ok := <-input:
			if !ok {
				return
			}

			if len(subscribed) > 0 {
				if err := pubsub.Unsubscribe(ctx, subscribed...); err != nil {
					slog.ErrorContext(ctx, "Unsubscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}

			subscribed = subscribed[:0]
			for _, id := range recipeIDs {
				subscribed = append(subscribed, channelPrefix+id)
			}

			if len(subscribed) > 0 {
				if err := pubsub.Subscribe(ctx, subscribed...); err != nil {
					slog.ErrorContext(ctx, "Subscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}

		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event tastevault.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "Malformed event payload",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
