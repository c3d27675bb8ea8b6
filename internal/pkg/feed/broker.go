package feed

import (
	"Clubline/internal/api/dto"
	"context"
	log "log/slog"
)

// ConversationLoader 会话列表快照装载
type ConversationLoader interface {
	GetConversationList(ctx context.Context, userID uint64, clubID uint64) ([]*dto.ConversationDTO, error)
}

// MessageLoader 消息窗口快照装载，按订阅用户过滤可见性
type MessageLoader interface {
	GetRecent(ctx context.Context, userID uint64, convID uint64, limit int) ([]*dto.MessageDTO, error)
}

// TypingLoader 输入状态快照装载，已按 5 秒过期过滤
type TypingLoader interface {
	ActiveTypists(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error)
}

// Broker 把存储层的变更通知扇出为订阅流
// 每个订阅维持一条独立的快照序列：收到变更通知后整体重查、整体下发，
// 消费端把每次收到的内容当作全量替换，断线重连也不会产生增量偏差
type Broker struct {
	bus    Bus
	convs  ConversationLoader
	msgs   MessageLoader
	typing TypingLoader
}

func NewBroker(bus Bus, convs ConversationLoader, msgs MessageLoader, typing TypingLoader) *Broker {
	return &Broker{bus: bus, convs: convs, msgs: msgs, typing: typing}
}

// Stream 快照订阅流
// C 关闭即为终止事件：主动 Close、上游订阅中断或装载失败都会关闭 C
type Stream[T any] struct {
	C      <-chan T
	cancel context.CancelFunc
}

// Close 终止订阅，停止后续下发
func (s *Stream[T]) Close() {
	s.cancel()
}

// SubscribeConversations 订阅用户在社团内的会话列表，按最近活跃倒序
func (b *Broker) SubscribeConversations(ctx context.Context, userID uint64, clubID uint64) *Stream[[]*dto.ConversationDTO] {
	return subscribe(ctx, b.bus, ConvListChannel(clubID, userID),
		func(ctx context.Context) ([]*dto.ConversationDTO, error) {
			return b.convs.GetConversationList(ctx, userID, clubID)
		})
}

// SubscribeMessages 订阅会话最近 limit 条消息，按 created_at 升序
func (b *Broker) SubscribeMessages(ctx context.Context, userID uint64, convID uint64, limit int) *Stream[[]*dto.MessageDTO] {
	return subscribe(ctx, b.bus, ConversationChannel(convID),
		func(ctx context.Context) ([]*dto.MessageDTO, error) {
			return b.msgs.GetRecent(ctx, userID, convID, limit)
		})
}

// SubscribeTyping 订阅会话当前输入状态集合
func (b *Broker) SubscribeTyping(ctx context.Context, convID uint64) *Stream[[]*dto.TypingStateDTO] {
	return subscribe(ctx, b.bus, TypingChannel(convID),
		func(ctx context.Context) ([]*dto.TypingStateDTO, error) {
			return b.typing.ActiveTypists(ctx, convID)
		})
}

func subscribe[T any](ctx context.Context, bus Bus, channel string, load func(context.Context) (T, error)) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	sub := bus.Subscribe(ctx, channel)

	// 通知折叠：一轮重查期间到达的多条通知合并为一次刷新
	notify := make(chan struct{}, 1)
	go func() {
		for range sub.Messages() {
			select {
			case notify <- struct{}{}:
			default:
			}
		}
		// 总线中断，触发终止
		cancel()
	}()

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		if !emit(ctx, out, load, channel) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
				if !emit(ctx, out, load, channel) {
					return
				}
			}
		}
	}()

	return &Stream[T]{C: out, cancel: cancel}
}

// emit 重查并下发一次全量快照；消费端未取走的旧快照直接丢弃
func emit[T any](ctx context.Context, out chan T, load func(context.Context) (T, error), channel string) bool {
	snapshot, err := load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WarnContext(ctx, "Feed snapshot load failed, terminating stream", "channel", channel, "err", err)
		}
		return false
	}

	select {
	case <-out:
	default:
	}

	select {
	case out <- snapshot:
		return true
	case <-ctx.Done():
		return false
	}
}
