package service

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/consts"
	"Clubline/internal/pkg/mongo"
	"Clubline/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "log/slog"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

const (
	// EditWindow 发出后可编辑的时间窗口
	EditWindow = 15 * time.Minute
	// DeleteWindow 发出后可全员撤回的时间窗口
	DeleteWindow = 60 * time.Minute

	defaultRecentLimit = 50
)

// NotifyProducer 外部通知服务的消息出口
type NotifyProducer interface {
	MessageSent(ctx context.Context, event *dto.NotifyEventDTO) error
}

// MessageService 消息明细的全部写读操作
type MessageService interface {
	SendMessage(ctx context.Context, sender *dto.SenderInfo, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	EditMessage(ctx context.Context, userID uint64, req *dto.EditMessageReq) error
	DeleteMessage(ctx context.Context, userID uint64, req *dto.DeleteMessageReq) error
	ReactMessage(ctx context.Context, userID uint64, req *dto.ReactMessageReq) error
	MarkAsRead(ctx context.Context, userID uint64, req *dto.MarkAsReadReq) error
	GetRecent(ctx context.Context, userID uint64, convID uint64, limit int) ([]*dto.MessageDTO, error)
	GetHistory(ctx context.Context, userID uint64, convID uint64, beforeID string, limit int) ([]*dto.MessageDTO, error)
	GetMessage(ctx context.Context, userID uint64, convID uint64, messageID string) (*dto.MessageDTO, error)
}

type messageServiceImpl struct {
	msgRepo  mongo.MessageRepo
	convRepo repository.ConversationRepo
	feed     FeedPublisher
	notifier NotifyProducer
}

func NewMessageService(msgRepo mongo.MessageRepo, convRepo repository.ConversationRepo, feed FeedPublisher, notifier NotifyProducer) MessageService {
	return &messageServiceImpl{
		msgRepo:  msgRepo,
		convRepo: convRepo,
		feed:     feed,
		notifier: notifier,
	}
}

// SendMessage 发送消息
// 保留的 AgentUserID 跳过成员校验，供 AI 助手以非成员身份回复
func (s *messageServiceImpl) SendMessage(ctx context.Context, sender *dto.SenderInfo, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if err := validateContent(req.MsgType, req.Content, req.Attachments); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if sender.UserID != consts.AgentUserID {
		if ok, err := s.convRepo.IsMember(ctx, req.ConversationID, sender.UserID); err != nil || !ok {
			return nil, ErrNotConversationMember
		}
	}

	now := time.Now()
	msg := &mongo.Message{
		ConversationID: req.ConversationID,
		SenderID:       sender.UserID,
		SenderName:     sender.UserName,
		SenderAvatar:   sender.Avatar,
		MsgType:        req.MsgType,
		Content:        req.Content,
		Reactions:      map[string][]uint64{},
		// 发送者自身天然已送达、已读
		DeliveredTo: []uint64{sender.UserID},
		ReadBy:      []uint64{sender.UserID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, a := range req.Attachments {
		msg.Attachments = append(msg.Attachments, mongo.Attachment{URL: a.URL, Name: a.Name, Size: a.Size, Type: a.Type})
	}

	if req.ReplyToID != "" {
		snapshot, err := s.replySnapshot(ctx, req.ConversationID, req.ReplyToID)
		if err != nil {
			return nil, err
		}
		msg.ReplyTo = snapshot
	}

	if err := s.msgRepo.SaveMessage(ctx, msg); err != nil {
		log.ErrorContext(ctx, "消息落库失败", "error", err)
		return nil, UnExpectedError
	}

	if err := s.convRepo.UpdateLastMessage(ctx, req.ConversationID, PreviewOf(msg.MsgType, msg.Content), sender.UserID, now); err != nil {
		log.WarnContext(ctx, "更新会话预览失败", "conversation_id", req.ConversationID, "error", err)
	}

	members, err := s.convRepo.GetMembers(ctx, req.ConversationID)
	if err != nil {
		log.WarnContext(ctx, "获取会话成员失败", "conversation_id", req.ConversationID, "error", err)
	}

	msgDTO := toMessageDTO(msg, sender.UserID)

	s.feed.MessageChanged(ctx, req.ConversationID)

	uids := make([]uint64, 0, len(members))
	recipients := make([]dto.NotifyRecipient, 0, len(members))
	for _, m := range members {
		uids = append(uids, m.UserID)
		if m.UserID == sender.UserID {
			continue
		}
		recipients = append(recipients, dto.NotifyRecipient{UserID: m.UserID, Muted: m.IsMuted == 1})
	}
	s.feed.ConversationChanged(ctx, conv.ClubID, uids, req.ConversationID)

	if s.notifier != nil && len(recipients) > 0 {
		event := &dto.NotifyEventDTO{
			Message:      msgDTO,
			SenderName:   sender.UserName,
			SenderAvatar: sender.Avatar,
			ClubID:       conv.ClubID,
			ConvType:     conv.Type,
			ConvName:     conv.Name,
			Recipients:   recipients,
		}
		if err := s.notifier.MessageSent(ctx, event); err != nil {
			log.WarnContext(ctx, "通知事件投递失败", "conversation_id", req.ConversationID, "error", err)
		}
	}

	return msgDTO, nil
}

// EditMessage 编辑消息，仅限发送者本人在时间窗口内
// 校验顺序：存在性 -> 发送者 -> 删除标记 -> 时间窗口
func (s *messageServiceImpl) EditMessage(ctx context.Context, userID uint64, req *dto.EditMessageReq) error {
	if req.Content == "" {
		return ErrContentEmpty
	}
	msg, msgID, err := s.loadMessage(ctx, req.ConversationID, req.MessageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotMessageSender
	}
	if msg.Deleted {
		return ErrMessageDeleted
	}
	if time.Since(msg.CreatedAt) >= EditWindow {
		return ErrEditWindowExpired
	}

	prev := mongo.EditRecord{Content: msg.Content, EditedAt: time.Now()}
	if err := s.msgRepo.ApplyEdit(ctx, req.ConversationID, msgID, req.Content, prev); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return ErrMessageNotFound
		}
		return err
	}

	// 会话预览不回写：预览固定为最后一次发送时的快照
	s.feed.MessageChanged(ctx, req.ConversationID)
	return nil
}

// DeleteMessage 删除消息
// for_everyone 限发送者本人且在时间窗口内；个人删除不限时、任意成员可删
func (s *messageServiceImpl) DeleteMessage(ctx context.Context, userID uint64, req *dto.DeleteMessageReq) error {
	msg, msgID, err := s.loadMessage(ctx, req.ConversationID, req.MessageID)
	if err != nil {
		return err
	}

	if req.ForEveryone {
		if msg.SenderID != userID {
			return ErrNotMessageSender
		}
		if msg.Deleted {
			return ErrMessageDeleted
		}
		if time.Since(msg.CreatedAt) >= DeleteWindow {
			return ErrDeleteWindowExpired
		}
		if err := s.msgRepo.MarkDeletedForEveryone(ctx, req.ConversationID, msgID, consts.DeletedPlaceholder); err != nil {
			return err
		}
	} else {
		if ok, err := s.convRepo.IsMember(ctx, req.ConversationID, userID); err != nil || !ok {
			return ErrNotConversationMember
		}
		if err := s.msgRepo.HideForUser(ctx, req.ConversationID, msgID, userID); err != nil {
			return err
		}
	}

	s.feed.MessageChanged(ctx, req.ConversationID)
	return nil
}

// ReactMessage 翻转表情回应：未回应则追加，已回应则取消
func (s *messageServiceImpl) ReactMessage(ctx context.Context, userID uint64, req *dto.ReactMessageReq) error {
	if !validEmojiKey(req.Emoji) {
		return ErrParamInvalid
	}
	if ok, err := s.convRepo.IsMember(ctx, req.ConversationID, userID); err != nil || !ok {
		return ErrNotConversationMember
	}
	msg, msgID, err := s.loadMessage(ctx, req.ConversationID, req.MessageID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return ErrMessageDeleted
	}

	if _, err := s.msgRepo.ToggleReaction(ctx, req.ConversationID, msgID, userID, req.Emoji); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return ErrMessageNotFound
		}
		return err
	}

	s.feed.MessageChanged(ctx, req.ConversationID)
	return nil
}

// MarkAsRead 批量标记已读并推进会话级已读水位
func (s *messageServiceImpl) MarkAsRead(ctx context.Context, userID uint64, req *dto.MarkAsReadReq) error {
	if ok, err := s.convRepo.IsMember(ctx, req.ConversationID, userID); err != nil || !ok {
		return ErrNotConversationMember
	}

	msgIDs := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return ErrParamInvalid
		}
		msgIDs = append(msgIDs, oid)
	}

	if err := s.msgRepo.AddReceipts(ctx, req.ConversationID, msgIDs, userID); err != nil {
		return err
	}
	if err := s.convRepo.UpdateLastRead(ctx, req.ConversationID, userID, time.Now()); err != nil {
		log.WarnContext(ctx, "更新已读水位失败", "conversation_id", req.ConversationID, "error", err)
	}

	s.feed.MessageChanged(ctx, req.ConversationID)
	return nil
}

// GetRecent 拉取会话最近消息，按发送时间升序
func (s *messageServiceImpl) GetRecent(ctx context.Context, userID uint64, convID uint64, limit int) ([]*dto.MessageDTO, error) {
	return s.GetHistory(ctx, userID, convID, "", limit)
}

// GetHistory 游标式历史查询，before_id 为空表示第一页
// 个人删除的消息对本人不可见，对其他成员照常返回
func (s *messageServiceImpl) GetHistory(ctx context.Context, userID uint64, convID uint64, beforeID string, limit int) ([]*dto.MessageDTO, error) {
	if ok, err := s.convRepo.IsMember(ctx, convID, userID); err != nil || !ok {
		return nil, ErrNotConversationMember
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	cursor := primitive.NilObjectID
	if beforeID != "" {
		oid, err := primitive.ObjectIDFromHex(beforeID)
		if err != nil {
			return nil, ErrParamInvalid
		}
		cursor = oid
	}

	messages, err := s.msgRepo.GetHistoryBefore(ctx, convID, cursor, limit)
	if err != nil {
		return nil, err
	}

	uidKey := fmt.Sprintf("%d", userID)
	res := make([]*dto.MessageDTO, 0, len(messages))
	for _, msg := range messages {
		if msg.DeletedFor[uidKey] {
			continue
		}
		res = append(res, toMessageDTO(msg, userID))
	}
	return res, nil
}

// GetMessage 按用户视角取单条消息，个人删除的消息对本人不存在
func (s *messageServiceImpl) GetMessage(ctx context.Context, userID uint64, convID uint64, messageID string) (*dto.MessageDTO, error) {
	if ok, err := s.convRepo.IsMember(ctx, convID, userID); err != nil || !ok {
		return nil, ErrNotConversationMember
	}
	msg, _, err := s.loadMessage(ctx, convID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.DeletedFor[fmt.Sprintf("%d", userID)] {
		return nil, ErrMessageNotFound
	}
	return toMessageDTO(msg, userID), nil
}

func (s *messageServiceImpl) loadMessage(ctx context.Context, convID uint64, messageID string) (*mongo.Message, primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, primitive.NilObjectID, ErrParamInvalid
	}
	msg, err := s.msgRepo.GetMessage(ctx, convID, oid)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, primitive.NilObjectID, ErrMessageNotFound
		}
		return nil, primitive.NilObjectID, err
	}
	return msg, oid, nil
}

func (s *messageServiceImpl) replySnapshot(ctx context.Context, convID uint64, replyToID string) (*mongo.ReplySnapshot, error) {
	oid, err := primitive.ObjectIDFromHex(replyToID)
	if err != nil {
		return nil, ErrParamInvalid
	}
	original, err := s.msgRepo.GetMessage(ctx, convID, oid)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &mongo.ReplySnapshot{
		MessageID: original.ID.Hex(),
		Text:      PreviewOf(original.MsgType, original.Content),
		SenderID:  original.SenderID,
	}, nil
}

// PreviewOf 会话列表预览：非文本消息折叠为类型占位
func PreviewOf(msgType int, content string) string {
	switch msgType {
	case consts.MsgTypeImage:
		return "[image]"
	case consts.MsgTypeFile:
		return "[file]"
	default:
		return content
	}
}

// validEmojiKey emoji 作为存储字段键使用，不能包含 '.' 或以 '$' 开头
func validEmojiKey(emoji string) bool {
	if emoji == "" || strings.HasPrefix(emoji, "$") {
		return false
	}
	return !strings.Contains(emoji, ".")
}

func validateContent(msgType int, content string, attachments []dto.AttachmentDTO) error {
	switch msgType {
	case consts.MsgTypeText:
		if content == "" {
			return ErrContentEmpty
		}
	case consts.MsgTypeImage, consts.MsgTypeFile:
		if len(attachments) == 0 {
			return ErrAttachmentsEmpty
		}
	default:
		return ErrParamInvalid
	}
	return nil
}

// toMessageDTO 对指定用户视角做可见性收敛后转换
func toMessageDTO(msg *mongo.Message, _ uint64) *dto.MessageDTO {
	d := &dto.MessageDTO{}
	_ = copier.Copy(d, msg)
	d.ID = msg.ID.Hex()
	if msg.ReplyTo != nil {
		d.ReplyTo = &dto.ReplyToDTO{
			MessageID: msg.ReplyTo.MessageID,
			Text:      msg.ReplyTo.Text,
			SenderID:  msg.ReplyTo.SenderID,
		}
	}
	if d.Reactions == nil {
		d.Reactions = map[string][]uint64{}
	}
	return d
}
