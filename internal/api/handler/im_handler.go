package handler

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/api/middleware"
	"Clubline/internal/pkg/consts"
	"Clubline/internal/pkg/llm"
	"Clubline/internal/pkg/response"
	"Clubline/internal/service"
	"context"
	"strconv"
	"strings"
	"time"

	log "log/slog"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	chatService service.ChatService
	responder   llm.Responder
}

func NewIMHandler(chatService service.ChatService, responder llm.Responder) *IMHandler {
	return &IMHandler{chatService: chatService, responder: responder}
}

// SendMessage 发送消息接口
func (s *IMHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	sender := middleware.CurrentUser(c)

	res, err := s.chatService.SendToTarget(c, sender, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	// 命中 AI 触发前缀时异步生成回复，不阻塞发送方
	s.maybeTriggerAgent(res)

	response.Success(c, res)
}

// maybeTriggerAgent 文本命中触发前缀时由 AI 助手作为特殊发送者回帖
func (s *IMHandler) maybeTriggerAgent(msg *dto.MessageDTO) {
	if s.responder == nil || msg.MsgType != consts.MsgTypeText {
		return
	}
	prefix := s.responder.TriggerPrefix()
	if prefix == "" || !strings.HasPrefix(msg.Content, prefix) {
		return
	}
	question := strings.TrimSpace(strings.TrimPrefix(msg.Content, prefix))
	if question == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		answer, err := s.responder.Reply(ctx, question)
		if err != nil {
			log.Error("AI助手回复失败", "conversation_id", msg.ConversationID, "err", err)
			return
		}

		agent := &dto.SenderInfo{
			UserID:   consts.AgentUserID,
			UserName: consts.AgentName,
			Avatar:   consts.AgentAvatar,
		}
		_, err = s.chatService.SendMessage(ctx, agent, &dto.SendMessageReq{
			ConversationID: msg.ConversationID,
			MsgType:        consts.MsgTypeText,
			Content:        answer,
			ReplyToID:      msg.ID,
		})
		if err != nil {
			log.Error("AI助手消息落库失败", "conversation_id", msg.ConversationID, "err", err)
		}
	}()
}

// EditMessage 编辑消息接口
func (s *IMHandler) EditMessage(c *gin.Context) {
	var req dto.EditMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.EditMessage(c, userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteMessage 删除消息接口
func (s *IMHandler) DeleteMessage(c *gin.Context) {
	var req dto.DeleteMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.DeleteMessage(c, userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ReactMessage 表情回应接口，重复提交即为取消
func (s *IMHandler) ReactMessage(c *gin.Context) {
	var req dto.ReactMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.ReactMessage(c, userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAsRead 标记已读接口
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	var req dto.MarkAsReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.MarkAsRead(c, userID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ForwardMessage 转发消息接口
func (s *IMHandler) ForwardMessage(c *gin.Context) {
	var req dto.ForwardMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	sender := middleware.CurrentUser(c)

	res, err := s.chatService.ForwardMessage(c, sender, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SetTyping 上报输入状态
func (s *IMHandler) SetTyping(c *gin.Context) {
	var req dto.SetTypingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	user := middleware.CurrentUser(c)

	if err := s.chatService.SetTyping(c, user, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetChatHistory 获取历史消息，before_id 为空表示第一页
func (s *IMHandler) GetChatHistory(c *gin.Context) {
	convID, _ := strconv.ParseUint(c.Query("conversationId"), 10, 64)
	beforeID := c.Query("beforeId")
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetHistory(c, userID, convID, beforeID, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
