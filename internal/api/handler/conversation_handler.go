package handler

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/response"
	"Clubline/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	chatService service.ChatService
}

func NewConversationHandler(chatService service.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

// CreateConversation 创建会话接口
func (s *ConversationHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	convID, err := s.chatService.CreateConversation(c, userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"conversation_id": convID})
}

// GetDirectConversation 获取或创建与目标用户的单聊
func (s *ConversationHandler) GetDirectConversation(c *gin.Context) {
	var req dto.DirectConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	convID, err := s.chatService.GetOrCreateDirectConversation(c, userID, req.TargetUserID, req.ClubID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"conversation_id": convID})
}

// GetConversationList 获取会话列表
func (s *ConversationHandler) GetConversationList(c *gin.Context) {
	clubID, _ := strconv.ParseUint(c.Query("clubId"), 10, 64)
	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetConversationList(c, userID, clubID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// UpdateGroupInfo 更新群名称/头像
func (s *ConversationHandler) UpdateGroupInfo(c *gin.Context) {
	var req dto.UpdateGroupInfoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.UpdateGroupInfo(c, userID, req.ConversationID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AddGroupMember 拉人入群
func (s *ConversationHandler) AddGroupMember(c *gin.Context) {
	var req dto.GroupMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.AddGroupMember(c, userID, req.ConversationID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveGroupMember 移出群成员或自行退群
func (s *ConversationHandler) RemoveGroupMember(c *gin.Context) {
	var req dto.GroupMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.RemoveGroupMember(c, userID, req.ConversationID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UpdateSettings 更新个人会话设置（免打扰/归档）
func (s *ConversationHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.UpdateSettings(c, userID, req.ConversationID, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
