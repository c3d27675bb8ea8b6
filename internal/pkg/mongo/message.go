package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message MongoDB 消息明细模型
// 发送者展示字段为发送时刻快照，后续不随用户资料联动
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID uint64             `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	SenderID       uint64             `bson:"sender_id" json:"senderId"`
	SenderName     string             `bson:"sender_name" json:"senderName"`
	SenderAvatar   string             `bson:"sender_avatar" json:"senderAvatar"`
	MsgType        int                `bson:"msg_type" json:"msgType"` // 1-文本, 2-图片, 3-文件
	Content        string             `bson:"content" json:"content"`  // 文本内容或附件说明
	Attachments    []Attachment       `bson:"attachments,omitempty" json:"attachments"`
	ReplyTo        *ReplySnapshot     `bson:"reply_to,omitempty" json:"replyTo"`

	// Reactions emoji -> 用户 ID 集合，同一用户对同一 emoji 至多出现一次
	Reactions map[string][]uint64 `bson:"reactions" json:"reactions"`

	Edited      bool         `bson:"edited" json:"edited"`
	EditHistory []EditRecord `bson:"edit_history,omitempty" json:"editHistory"`

	// 软删除：文档永不物理移除
	Deleted            bool            `bson:"deleted" json:"deleted"`
	DeletedForEveryone bool            `bson:"deleted_for_everyone" json:"deletedForEveryone"`
	DeletedFor         map[string]bool `bson:"deleted_for,omitempty" json:"deletedFor"` // key 为用户 ID 字符串

	// 回执集合只增不减，始终包含发送者
	DeliveredTo []uint64 `bson:"delivered_to" json:"deliveredTo"`
	ReadBy      []uint64 `bson:"read_by" json:"readBy"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"` // 创建后不再变更
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"` // 任何变更都抬升
}

// Attachment 对象存储返回的附件描述
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Size int64  `bson:"size" json:"size"`
	Type string `bson:"type" json:"type"`
}

// ReplySnapshot 被回复消息在回复时刻的快照
type ReplySnapshot struct {
	MessageID string `bson:"message_id" json:"messageId"`
	Text      string `bson:"text" json:"text"`
	SenderID  uint64 `bson:"sender_id" json:"senderId"`
}

// EditRecord 编辑前的历史版本
type EditRecord struct {
	Content  string    `bson:"content" json:"content"`
	EditedAt time.Time `bson:"edited_at" json:"editedAt"`
}
