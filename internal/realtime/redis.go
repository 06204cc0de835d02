package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	changesChannel = "tasks:changes"

	nudgePrefix     = "nudge:"
	milestonePrefix = "milestone:"
	taskDuePrefix   = "task_due:"
)

type BusConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisBus carries the task change feed and the per-user broadcast
// channels over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisBus(config *BusConfig, log zerolog.Logger) *RedisBus {
	if config == nil {
		config = DefaultBusConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return &RedisBus{
		client: client,
		log:    log.With().Str("component", "realtime").Logger(),
	}
}

func (b *RedisBus) PublishChange(ctx context.Context, event ChangeEvent) error {
	return b.publish(ctx, changesChannel, event)
}

func (b *RedisBus) PublishNudge(ctx context.Context, userID uuid.UUID, nudge Nudge) error {
	return b.publish(ctx, nudgePrefix+userID.String(), nudge)
}

func (b *RedisBus) PublishMilestone(ctx context.Context, userID uuid.UUID, milestone Milestone) error {
	return b.publish(ctx, milestonePrefix+userID.String(), milestone)
}

func (b *RedisBus) PublishTaskDue(ctx context.Context, userID uuid.UUID, due TaskDue) error {
	return b.publish(ctx, taskDuePrefix+userID.String(), due)
}

func (b *RedisBus) publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", channel, err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) Changes(ctx context.Context) (<-chan ChangeEvent, error) {
	out := make(chan ChangeEvent)
	err := subscribe(b, ctx, changesChannel, out, func(data []byte) (ChangeEvent, error) {
		var event ChangeEvent
		err := json.Unmarshal(data, &event)
		return event, err
	})
	return out, err
}

func (b *RedisBus) Nudges(ctx context.Context, userID uuid.UUID) (<-chan Nudge, error) {
	out := make(chan Nudge)
	err := subscribe(b, ctx, nudgePrefix+userID.String(), out, func(data []byte) (Nudge, error) {
		var nudge Nudge
		err := json.Unmarshal(data, &nudge)
		return nudge, err
	})
	return out, err
}

func (b *RedisBus) Milestones(ctx context.Context, userID uuid.UUID) (<-chan Milestone, error) {
	out := make(chan Milestone)
	err := subscribe(b, ctx, milestonePrefix+userID.String(), out, func(data []byte) (Milestone, error) {
		var milestone Milestone
		err := json.Unmarshal(data, &milestone)
		return milestone, err
	})
	return out, err
}

func (b *RedisBus) TaskDue(ctx context.Context, userID uuid.UUID) (<-chan TaskDue, error) {
	out := make(chan TaskDue)
	err := subscribe(b, ctx, taskDuePrefix+userID.String(), out, func(data []byte) (TaskDue, error) {
		var due TaskDue
		err := json.Unmarshal(data, &due)
		return due, err
	})
	return out, err
}

// subscribe pumps decoded messages into out until ctx is cancelled, then
// closes the subscription and the channel.
func subscribe[T any](b *RedisBus, ctx context.Context, channel string, out chan T, decode func([]byte) (T, error)) error {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	messages := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				value, err := decode([]byte(msg.Payload))
				if err != nil {
					b.log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable message")
					continue
				}
				select {
				case out <- value:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (b *RedisBus) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
