package dto

import "time"

// SenderInfo 发送者展示信息快照，发送时刻固化到消息上，不随用户资料变化
type SenderInfo struct {
	UserID   uint64 `json:"user_id"`
	UserName string `json:"user_name"`
	Avatar   string `json:"avatar"`
}

// AttachmentDTO 对象存储返回的附件描述，核心原样携带，不检查文件内容
type AttachmentDTO struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// ReplyToDTO 被回复消息在回复时刻的快照
type ReplyToDTO struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	SenderID  uint64 `json:"sender_id"`
}

// SendMessageReq 发送消息请求体
// conversation_id 为 0 时按 target_user_id + club_id 定位（或创建）单聊会话
type SendMessageReq struct {
	ConversationID uint64          `json:"conversation_id"`
	TargetUserID   uint64          `json:"target_user_id"`
	ClubID         uint64          `json:"club_id"`
	MsgType        int             `json:"msg_type" binding:"required"` // 1-文本, 2-图片, 3-文件
	Content        string          `json:"content"`
	Attachments    []AttachmentDTO `json:"attachments"`
	ReplyToID      string          `json:"reply_to_id"`
}

// EditMessageReq 编辑消息请求体
type EditMessageReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	MessageID      string `json:"message_id" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

// DeleteMessageReq 删除消息请求体
type DeleteMessageReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	MessageID      string `json:"message_id" binding:"required"`
	ForEveryone    bool   `json:"for_everyone"`
}

// ReactMessageReq 表情回应请求体，重复提交即为取消
type ReactMessageReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	MessageID      string `json:"message_id" binding:"required"`
	Emoji          string `json:"emoji" binding:"required"`
}

// MarkAsReadReq 标记已读请求体
type MarkAsReadReq struct {
	ConversationID uint64   `json:"conversation_id" binding:"required"`
	MessageIDs     []string `json:"message_ids" binding:"required"`
}

// ForwardMessageReq 转发消息请求体
type ForwardMessageReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"` // 原消息所在会话
	MessageID      string `json:"message_id" binding:"required"`
	TargetUserID   uint64 `json:"target_user_id" binding:"required"`
	ClubID         uint64 `json:"club_id" binding:"required"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string              `json:"id"`
	ConversationID uint64              `json:"conversation_id"`
	SenderID       uint64              `json:"sender_id"`
	SenderName     string              `json:"sender_name"`
	SenderAvatar   string              `json:"sender_avatar"`
	MsgType        int                 `json:"msg_type"`
	Content        string              `json:"content"`
	Attachments    []AttachmentDTO     `json:"attachments,omitempty"`
	ReplyTo        *ReplyToDTO         `json:"reply_to,omitempty"`
	Reactions      map[string][]uint64 `json:"reactions"`
	Edited         bool                `json:"edited"`
	Deleted        bool                `json:"deleted"`
	DeliveredTo    []uint64            `json:"delivered_to"`
	ReadBy         []uint64            `json:"read_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NotifyEventDTO 推送给外部通知服务的消息事件
type NotifyEventDTO struct {
	Message      *MessageDTO `json:"message"`
	SenderName   string      `json:"sender_name"`
	SenderAvatar string      `json:"sender_avatar"`
	ClubID       uint64      `json:"club_id"`
	ConvType     int8        `json:"conv_type"`
	ConvName     string      `json:"conv_name"`
	// Recipients 除发送者外的会话成员；muted 由各自会话设置决定
	Recipients []NotifyRecipient `json:"recipients"`
}

// NotifyRecipient 通知接收方及其免打扰设置
type NotifyRecipient struct {
	UserID uint64 `json:"user_id"`
	Muted  bool   `json:"muted"`
}
