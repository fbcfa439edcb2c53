package redis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/realtime"
)

const defaultChannelPrefix = "taskboard:tasks:"

// envelope tags a change with the instance that produced it so the
// producer does not deliver it twice.
type envelope struct {
	Origin string            `json:"origin"`
	Change domain.TaskChange `json:"change"`
}

// Feed relays task changes between instances over Redis pub/sub. Publish
// delivers to the local hub first and then broadcasts; Run relays changes
// from other instances into the local hub.
type Feed struct {
	client *goRedis.Client
	local  realtime.Publisher
	prefix string
	origin string
	logger *zap.Logger
}

func NewFeed(client *goRedis.Client, local realtime.Publisher, prefix string, logger *zap.Logger) *Feed {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		client: client,
		local:  local,
		prefix: prefix,
		origin: uuid.NewString(),
		logger: logger.Named("feed"),
	}
}

func (f *Feed) Publish(ctx context.Context, change domain.TaskChange) error {
	if f.local != nil {
		_ = f.local.Publish(ctx, change)
	}
	if f.client == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: f.origin, Change: change})
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.prefix+change.OwnerID, payload).Err(); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "publish task change", err)
	}
	return nil
}

// Run blocks relaying remote changes until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if f.client == nil {
		<-ctx.Done()
		return nil
	}
	sub := f.client.PSubscribe(ctx, f.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "subscribe task feed", err)
	}
	f.logger.Info("task feed subscribed", zap.String("pattern", f.prefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.relay(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (f *Feed) relay(ctx context.Context, channel string, payload []byte) bool {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		f.logger.Warn("dropping malformed task change", zap.String("channel", channel), zap.Error(err))
		return false
	}
	if env.Origin == f.origin {
		return false
	}
	if env.Change.OwnerID == "" {
		env.Change.OwnerID = strings.TrimPrefix(channel, f.prefix)
	}
	if f.local == nil {
		return false
	}
	_ = f.local.Publish(ctx, env.Change)
	return true
}

var _ realtime.Publisher = (*Feed)(nil)
