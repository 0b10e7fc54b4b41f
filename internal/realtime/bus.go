package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Bus はインスタンス間で端末向けメッセージを中継する。
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// StartForwarder は購読を開始し、受信したメッセージをonMsgに渡す。
	// 購読の確立に失敗した場合はエラーを返す。
	StartForwarder(ctx context.Context, onMsg func(Envelope)) error
	Close() error
}

// RedisBus はRedisのPub/Subを使うBus。
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisBus はRedisに接続してRedisBusを生成する。
func NewRedisBus(ctx context.Context, addr, channel string, logger *slog.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{rdb: rdb, channel: channel, logger: logger}, nil
}

// Publish はメッセージをチャネルに送信する。
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode device message: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder はチャネルを購読し、受信したメッセージをonMsgに渡す。
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					b.logger.Warn("bad device message payload", slog.String("error", err.Error()))
					continue
				}
				onMsg(env)
			}
		}
	}()
	return nil
}

// Close はRedisとの接続を閉じる。
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
