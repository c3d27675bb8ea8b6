package service

import (
	"Clubline/internal/api/dto"
	"context"
)

// ChatService 聊天统一门面，聚合会话、消息、输入状态三条能力线
// Handler 层只依赖这一个入口
type ChatService interface {
	ConversationService
	MessageService
	TypingService

	ForwardMessage(ctx context.Context, sender *dto.SenderInfo, req *dto.ForwardMessageReq) (*dto.MessageDTO, error)
	SendToTarget(ctx context.Context, sender *dto.SenderInfo, req *dto.SendMessageReq) (*dto.MessageDTO, error)
}

type chatServiceImpl struct {
	ConversationService
	MessageService
	TypingService
}

func NewChatService(convSvc ConversationService, msgSvc MessageService, typingSvc TypingService) ChatService {
	return &chatServiceImpl{
		ConversationService: convSvc,
		MessageService:      msgSvc,
		TypingService:       typingSvc,
	}
}

// SendToTarget 发送消息
// conversation_id 为 0 时按 target_user_id 定位或创建单聊，再走常规发送
func (s *chatServiceImpl) SendToTarget(ctx context.Context, sender *dto.SenderInfo, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if req.ConversationID == 0 {
		if req.TargetUserID == 0 || req.ClubID == 0 {
			return nil, ErrParamInvalid
		}
		convID, err := s.GetOrCreateDirectConversation(ctx, sender.UserID, req.TargetUserID, req.ClubID)
		if err != nil {
			return nil, err
		}
		req.ConversationID = convID
	}
	return s.SendMessage(ctx, sender, req)
}

// ForwardMessage 把一条消息转发到与目标用户的单聊
// 转发产生全新消息：内容与附件来自原消息，回应、回执、编辑历史不随行
func (s *chatServiceImpl) ForwardMessage(ctx context.Context, sender *dto.SenderInfo, req *dto.ForwardMessageReq) (*dto.MessageDTO, error) {
	original, err := s.GetMessage(ctx, sender.UserID, req.ConversationID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if original.Deleted {
		return nil, ErrMessageDeleted
	}

	return s.SendToTarget(ctx, sender, &dto.SendMessageReq{
		TargetUserID: req.TargetUserID,
		ClubID:       req.ClubID,
		MsgType:      original.MsgType,
		Content:      original.Content,
		Attachments:  original.Attachments,
	})
}
