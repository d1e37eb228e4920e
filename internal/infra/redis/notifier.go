package redis

import (
	"context"

	"corrode-course/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProgressChannel carries participant ids whose submissions changed.
const ProgressChannel = "course:progress"

// Notifier publishes progress changes so every instance can refresh its websocket clients.
type Notifier struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewNotifier(client *redis.Client, logger zerolog.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: logger.With().Str("component", "redis-notifier").Logger(),
	}
}

func (n *Notifier) Notify(ctx context.Context, participantID string) error {
	return n.client.Publish(ctx, ProgressChannel, participantID).Err()
}

// Run forwards published participant ids into local until ctx is canceled.
func (n *Notifier) Run(ctx context.Context, local app.ProgressNotifier) error {
	sub := n.client.Subscribe(ctx, ProgressChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	n.logger.Info().Str("channel", ProgressChannel).Msg("subscribed to progress channel")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := local.Notify(ctx, msg.Payload); err != nil {
				n.logger.Warn().Err(err).Str("participant", msg.Payload).Msg("local notify failed")
			}
		}
	}
}
