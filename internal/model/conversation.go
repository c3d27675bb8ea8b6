package model

import "time"

// Conversation 会话主表
// PairKey 仅单聊持有（c<clubID>:<minUID>_<maxUID>），唯一索引保证
// 同社团内一对用户至多存在一个单聊；群聊为 NULL 不参与约束
type Conversation struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ClubID    uint64  `gorm:"not null;index" json:"clubId"`
	Type      int8    `gorm:"not null;default:1" json:"type"` // 1-单聊, 2-群聊
	PairKey   *string `gorm:"uniqueIndex;type:varchar(64)" json:"pairKey"`
	Name      string  `gorm:"type:varchar(64)" json:"name"`
	Avatar    string  `gorm:"type:varchar(255)" json:"avatar"`
	CreatedBy uint64  `gorm:"not null;default:0" json:"createdBy"`

	// 最后一条消息发送时刻的预览快照，之后的编辑/撤回不回写
	LastMsgContent string     `gorm:"type:varchar(255)" json:"lastMsgContent"`
	LastSenderID   uint64     `gorm:"not null;default:0" json:"lastSenderId"`
	LastMessageAt  *time.Time `gorm:"index" json:"lastMessageAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationMember 会话成员表，同时承载成员的个人会话设置
type ConversationMember struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64     `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64     `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	IsAdmin        int8       `gorm:"not null;default:0" json:"isAdmin"` // 仅群聊有意义
	IsMuted        int8       `gorm:"not null;default:0" json:"isMuted"`
	IsArchived     int8       `gorm:"not null;default:0" json:"isArchived"`
	LastReadAt     *time.Time `json:"lastReadAt"`
	JoinedAt       time.Time  `json:"joinedAt"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"conversation"`
}

func (ConversationMember) TableName() string { return "conversation_members" }
