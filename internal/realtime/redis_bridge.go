package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultBridgeChannel = "devforum:changes"

type bridgeMessage struct {
	Origin string   `json:"origin"`
	Topics []string `json:"topics"`
}

// RedisBridge relays hub notifications between instances over Redis pub/sub.
type RedisBridge struct {
	rdb        *redis.Client
	hub        *Hub
	channel    string
	instanceID string
	logger     *zap.Logger
}

// NewRedisBridge attaches a bridge to hub. Call Run to start receiving.
func NewRedisBridge(rdb *redis.Client, hub *Hub, channel string, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultBridgeChannel
	}
	b := &RedisBridge{
		rdb:        rdb,
		hub:        hub,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
	hub.setForwarder(b.publish)
	return b
}

func (b *RedisBridge) publish(topics []string) {
	payload, err := json.Marshal(bridgeMessage{Origin: b.instanceID, Topics: topics})
	if err != nil {
		b.logger.Sugar().Errorf("failed to encode change message: %s", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Sugar().Errorf("failed to publish change to redis: %s", err.Error())
	}
}

// Run delivers changes published by other instances until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Sugar().Infof("Listening for changes on redis channel %s", b.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var m bridgeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Sugar().Warnf("dropping malformed change message: %s", err.Error())
				continue
			}
			if m.Origin == b.instanceID {
				continue
			}
			b.hub.deliver(m.Topics...)
		}
	}
}
