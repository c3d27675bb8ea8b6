package feed

import (
	"Clubline/internal/pkg/consts"
	"Clubline/internal/pkg/redis"
	"context"
	"fmt"
	log "log/slog"
	"strconv"

	"github.com/goccy/go-json"
)

const (
	EventConversation = "conversation"
	EventMessage      = "message"
	EventTyping       = "typing"
)

// Event 变更通知载荷
// 订阅端收到后整体重查快照，载荷本身只用于提示“有变更”，不携带增量
type Event struct {
	Type           string `json:"type"`
	ConversationID uint64 `json:"conversation_id"`
	ClubID         uint64 `json:"club_id,omitempty"`
	UserID         uint64 `json:"user_id,omitempty"`
}

// Publisher 把存储层变更广播到各订阅频道
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// ConvListChannel 用户会话列表频道
func ConvListChannel(clubID, userID uint64) string {
	return fmt.Sprintf("%s%d:%d", consts.IMConvListKey, clubID, userID)
}

// ConversationChannel 会话内消息频道
func ConversationChannel(convID uint64) string {
	return consts.IMConversationKey + strconv.FormatUint(convID, 10)
}

// TypingChannel 会话输入状态频道
func TypingChannel(convID uint64) string {
	return consts.IMTypingEventKey + strconv.FormatUint(convID, 10)
}

// ConversationChanged 通知各成员的会话列表订阅
func (s *Publisher) ConversationChanged(ctx context.Context, clubID uint64, userIDs []uint64, convID uint64) {
	for _, uid := range userIDs {
		event := &Event{Type: EventConversation, ConversationID: convID, ClubID: clubID, UserID: uid}
		s.publish(ctx, ConvListChannel(clubID, uid), event)
	}
}

// MessageChanged 通知会话内消息订阅
func (s *Publisher) MessageChanged(ctx context.Context, convID uint64) {
	s.publish(ctx, ConversationChannel(convID), &Event{Type: EventMessage, ConversationID: convID})
}

// TypingChanged 通知会话输入状态订阅
func (s *Publisher) TypingChanged(ctx context.Context, convID uint64) {
	s.publish(ctx, TypingChannel(convID), &Event{Type: EventTyping, ConversationID: convID})
}

// publish 推送失败只记日志：订阅端靠全量快照收敛，丢一次通知不会造成永久偏差
func (s *Publisher) publish(ctx context.Context, channel string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.ErrorContext(ctx, "Feed event marshal failed", "channel", channel, "err", err)
		return
	}
	if err := redis.Publish(ctx, channel, data); err != nil {
		log.WarnContext(ctx, "Feed event publish failed", "channel", channel, "err", err)
	}
}
