package dto

import "time"

// CreateConversationReq 创建会话请求体
type CreateConversationReq struct {
	ClubID       uint64   `json:"club_id" binding:"required"`
	Type         int8     `json:"type" binding:"required"` // 1-单聊, 2-群聊
	Participants []uint64 `json:"participants" binding:"required"`
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
}

// DirectConversationReq 获取或创建单聊请求体
type DirectConversationReq struct {
	TargetUserID uint64 `json:"target_user_id" binding:"required"`
	ClubID       uint64 `json:"club_id" binding:"required"`
}

// UpdateGroupInfoReq 更新群信息请求体，空字段不变更
type UpdateGroupInfoReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar"`
}

// GroupMemberReq 群成员调整请求体
type GroupMemberReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	UserID         uint64 `json:"user_id" binding:"required"`
}

// UpdateSettingsReq 会话个人设置请求体，nil 字段不变更
type UpdateSettingsReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	Muted          *bool  `json:"muted"`
	Archived       *bool  `json:"archived"`
}

// MemberSettingsDTO 当前用户在会话内的个人设置
type MemberSettingsDTO struct {
	Muted    bool       `json:"muted"`
	Archived bool       `json:"archived"`
	LastRead *time.Time `json:"last_read"`
}

// LastMessageDTO 会话上冗余的最后一条消息预览，仅随发送更新
type LastMessageDTO struct {
	Text      string    `json:"text"`
	SenderID  uint64    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	ConversationID uint64            `json:"conversation_id"`
	ClubID         uint64            `json:"club_id"`
	Type           int8              `json:"type"`
	Name           string            `json:"name,omitempty"`
	Avatar         string            `json:"avatar,omitempty"`
	PeerID         uint64            `json:"peer_id,omitempty"` // 单聊对手方
	Participants   []uint64          `json:"participants"`
	Admins         []uint64          `json:"admins,omitempty"`
	CreatedBy      uint64            `json:"created_by"`
	LastMessage    *LastMessageDTO   `json:"last_message"`
	Settings       MemberSettingsDTO `json:"settings"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
