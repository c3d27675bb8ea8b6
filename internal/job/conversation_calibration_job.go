package job

import (
	"Clubline/internal/model"
	"Clubline/internal/pkg/logger"
	"Clubline/internal/pkg/mongo"
	"Clubline/internal/service"
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/google/uuid"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// conversationStore 校准任务需要的会话读写能力
type conversationStore interface {
	ListActiveSince(ctx context.Context, since time.Time) ([]*model.Conversation, error)
	UpdateLastMessage(ctx context.Context, convID uint64, preview string, senderID uint64, at time.Time) error
}

// messageStore 校准任务需要的消息读取能力
type messageStore interface {
	GetLatest(ctx context.Context, convID uint64) (*mongo.Message, error)
}

// ConversationCalibrationJob 校准会话冗余的最后消息预览
// 预览固定为最后一条消息发送时刻的快照，此任务只修复发送路径回写失败留下的偏差
type ConversationCalibrationJob struct {
	convRepo conversationStore
	msgRepo  messageStore
}

func NewConversationCalibrationJob(convRepo conversationStore, msgRepo messageStore) *ConversationCalibrationJob {
	return &ConversationCalibrationJob{
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

func (s *ConversationCalibrationJob) Run() {
	traceID := "job-conv-calibration-" + uuid.NewString()
	ctx := logger.WithTraceID(context.Background(), traceID)

	// 只校准最近一天有活动的会话
	since := time.Now().Add(-24 * time.Hour)
	conversations, err := s.convRepo.ListActiveSince(ctx, since)
	if err != nil {
		log.ErrorContext(ctx, "list active conversations error", "err", err)
		return
	}

	log.InfoContext(ctx, "ConversationCalibrationJob processing", "conversation_count", len(conversations))

	calibrated := 0
	for _, conv := range conversations {
		latest, err := s.msgRepo.GetLatest(ctx, conv.ID)
		if err != nil {
			if !errors.Is(err, mongodriver.ErrNoDocuments) {
				log.ErrorContext(ctx, "fetch latest message error", "conversation_id", conv.ID, "err", err)
			}
			continue
		}

		preview, ok := sentPreviewOf(latest)
		if !ok {
			continue
		}
		if conv.LastMsgContent == preview && conv.LastSenderID == latest.SenderID {
			continue
		}

		if err := s.convRepo.UpdateLastMessage(ctx, conv.ID, preview, latest.SenderID, latest.CreatedAt); err != nil {
			log.ErrorContext(ctx, "calibrate last message error", "conversation_id", conv.ID, "err", err)
			continue
		}
		calibrated++
	}

	log.InfoContext(ctx, "ConversationCalibrationJob finished", "calibrated_count", calibrated)
}

// sentPreviewOf 还原消息发送时刻的预览文本
// 已编辑的消息取首条历史记录里的原文；全员撤回后原文不可复原，放弃校准
func sentPreviewOf(msg *mongo.Message) (string, bool) {
	if msg.DeletedForEveryone {
		return "", false
	}
	content := msg.Content
	if msg.Edited && len(msg.EditHistory) > 0 {
		content = msg.EditHistory[0].Content
	}
	return service.PreviewOf(msg.MsgType, content), true
}
