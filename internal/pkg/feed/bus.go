package feed

import (
	"Clubline/internal/pkg/redis"
	"context"
)

// Bus 变更通知总线抽象，生产实现为 redis pub/sub
type Bus interface {
	Subscribe(ctx context.Context, channels ...string) BusSubscription
}

// BusSubscription 单个频道订阅
// Messages 通道关闭即表示订阅中断，订阅端据此终止快照流
type BusSubscription interface {
	Messages() <-chan string
	Close() error
}

type redisBus struct{}

// NewRedisBus 基于全局 redis 客户端的总线实现
func NewRedisBus() Bus {
	return &redisBus{}
}

type redisBusSub struct {
	pubsub interface{ Close() error }
	ch     chan string
}

func (s *redisBusSub) Messages() <-chan string { return s.ch }
func (s *redisBusSub) Close() error            { return s.pubsub.Close() }

func (s *redisBus) Subscribe(ctx context.Context, channels ...string) BusSubscription {
	pubsub := redis.Subscribe(ctx, channels...)
	sub := &redisBusSub{pubsub: pubsub, ch: make(chan string, 16)}

	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			select {
			case sub.ch <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub
}
