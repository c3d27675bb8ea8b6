package dto

import "time"

// SetTypingReq 正在输入上报请求体
type SetTypingReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
	IsTyping       *bool  `json:"is_typing" binding:"required"`
}

// TypingStateDTO 会话内某个用户的输入状态
// 客户端断连时删除事件可能丢失，消费方必须自行按 Timestamp 过滤过期记录
type TypingStateDTO struct {
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id"`
	UserName       string    `json:"user_name"`
	Timestamp      time.Time `json:"timestamp"`
}
