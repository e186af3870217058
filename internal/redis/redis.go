// Package redis carries the document change feed between the admin server and
// the players over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var Rdb *redis.Client

const (
	channelPrefix  = "lumen:changes:"
	publishTimeout = 5 * time.Second
)

func InitRedis(reddisAddress string, redisUsername string, redisPassword string) {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     reddisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
}

// Ping checks that the client initialized by InitRedis can reach the server.
func Ping(ctx context.Context) error {
	return Rdb.Ping(ctx).Err()
}

// Change announces that a document in a collection was written or removed.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         string `json:"op"`
	At         int64  `json:"at"`
}

// Channel is the pub/sub channel for one collection.
func Channel(collection string) string {
	return channelPrefix + collection
}

// Feed publishes and subscribes to change announcements.
type Feed struct {
	client *redis.Client
}

// NewFeed wraps client, or the global Rdb when client is nil.
func NewFeed(client *redis.Client) *Feed {
	if client == nil {
		client = Rdb
	}
	return &Feed{client: client}
}

func (f *Feed) Publish(ctx context.Context, change Change) error {
	if change.At == 0 {
		change.At = time.Now().UnixMilli()
	}
	body, err := json.Marshal(change)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return f.client.Publish(ctx, Channel(change.Collection), body).Err()
}

// Subscribe calls handler for every change announced on the collection's
// channel until ctx is done or cancel is called. Handler runs on the feed's
// goroutine.
func (f *Feed) Subscribe(ctx context.Context, collection string, handler func(Change)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := f.client.Subscribe(ctx, Channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				change, err := ParseChange([]byte(msg.Payload))
				if err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change")
					continue
				}
				handler(change)
			}
		}
	}()
	return cancelCtx, nil
}

func ParseChange(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, err
	}
	if c.Collection == "" {
		return Change{}, fmt.Errorf("change without collection")
	}
	return c, nil
}
