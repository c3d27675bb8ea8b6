package repository

import (
	"Clubline/internal/model"
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error)

	IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error)
	GetMember(ctx context.Context, convID uint64, userID uint64) (*model.ConversationMember, error)
	GetMembers(ctx context.Context, convID uint64) ([]*model.ConversationMember, error)
	GetMembersIn(ctx context.Context, convIDs []uint64) ([]*model.ConversationMember, error)
	AddMember(ctx context.Context, member *model.ConversationMember) error
	RemoveMember(ctx context.Context, convID uint64, userID uint64) error

	UpdateGroupInfo(ctx context.Context, convID uint64, updates map[string]interface{}) error
	UpdateMemberAdmin(ctx context.Context, convID uint64, userID uint64, isAdmin bool) error
	UpdateMemberSettings(ctx context.Context, convID uint64, userID uint64, updates map[string]interface{}) error
	UpdateLastRead(ctx context.Context, convID uint64, userID uint64, at time.Time) error
	UpdateLastMessage(ctx context.Context, convID uint64, preview string, senderID uint64, at time.Time) error

	ListByUser(ctx context.Context, userID uint64, clubID uint64) ([]*model.ConversationMember, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]*model.Conversation, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及初始成员
// 单聊 PairKey 撞唯一索引时原样返回 gorm.ErrDuplicatedKey，调用方回查收敛
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			m.ConversationID = conv.ID
			m.JoinedAt = time.Now()
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversation 根据会话 ID 获取会话
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).First(&conv, convID).Error
	return &conv, err
}

// GetConversationByPairKey 根据单聊唯一键获取会话
func (s *conversationRepoImpl) GetConversationByPairKey(ctx context.Context, pairKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&conv).Error
	return &conv, err
}

// IsMember 检查用户是否是会话成员
func (s *conversationRepoImpl) IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetMember 获取成员行（含个人设置与管理员标记）
func (s *conversationRepoImpl) GetMember(ctx context.Context, convID uint64, userID uint64) (*model.ConversationMember, error) {
	var member model.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		First(&member).Error
	return &member, err
}

// GetMembers 获取会话全部成员
func (s *conversationRepoImpl) GetMembers(ctx context.Context, convID uint64) ([]*model.ConversationMember, error) {
	var members []*model.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// GetMembersIn 批量获取多个会话的成员，供会话列表装配参与者
func (s *conversationRepoImpl) GetMembersIn(ctx context.Context, convIDs []uint64) ([]*model.ConversationMember, error) {
	if len(convIDs) == 0 {
		return nil, nil
	}
	var members []*model.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id IN ?", convIDs).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// AddMember 新增会话成员
func (s *conversationRepoImpl) AddMember(ctx context.Context, member *model.ConversationMember) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(member).Error
}

// RemoveMember 移除会话成员
func (s *conversationRepoImpl) RemoveMember(ctx context.Context, convID uint64, userID uint64) error {
	res := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&model.ConversationMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateGroupInfo 更新群名称/头像
func (s *conversationRepoImpl) UpdateGroupInfo(ctx context.Context, convID uint64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(updates).Error
}

// UpdateMemberAdmin 设置/取消群管理员
func (s *conversationRepoImpl) UpdateMemberAdmin(ctx context.Context, convID uint64, userID uint64, isAdmin bool) error {
	val := int8(0)
	if isAdmin {
		val = 1
	}
	return s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("is_admin", val).Error
}

// UpdateMemberSettings 更新成员个人会话设置（免打扰/归档）
func (s *conversationRepoImpl) UpdateMemberSettings(ctx context.Context, convID uint64, userID uint64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Updates(updates).Error
}

// UpdateLastRead 更新成员已读进度 (已读回执)
func (s *conversationRepoImpl) UpdateLastRead(ctx context.Context, convID uint64, userID uint64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("last_read_at", at).Error
}

// UpdateLastMessage 回写会话最后消息预览
// updated_at 只抬升不回退，补偿性回写不会把会话活跃时间拉回过去
func (s *conversationRepoImpl) UpdateLastMessage(ctx context.Context, convID uint64, preview string, senderID uint64, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"last_msg_content": preview,
			"last_sender_id":   senderID,
			"last_message_at":  at,
			"updated_at":       gorm.Expr("GREATEST(updated_at, ?)", at),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update last message")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByUser 联表查询用户在某社团内的全部会话，按最后活跃时间倒序
func (s *conversationRepoImpl) ListByUser(ctx context.Context, userID uint64, clubID uint64) ([]*model.ConversationMember, error) {
	var members []*model.ConversationMember
	// 使用 Conversation__ 别名配合 GORM 的嵌套填充特性
	err := s.db.WithContext(ctx).Table("conversation_members m").
		Select("m.*, "+
			"c.id AS `Conversation__id`, c.club_id AS `Conversation__club_id`, "+
			"c.type AS `Conversation__type`, c.pair_key AS `Conversation__pair_key`, "+
			"c.name AS `Conversation__name`, c.avatar AS `Conversation__avatar`, "+
			"c.created_by AS `Conversation__created_by`, "+
			"c.last_msg_content AS `Conversation__last_msg_content`, "+
			"c.last_sender_id AS `Conversation__last_sender_id`, "+
			"c.last_message_at AS `Conversation__last_message_at`, "+
			"c.created_at AS `Conversation__created_at`, "+
			"c.updated_at AS `Conversation__updated_at`").
		Joins("JOIN conversations c ON m.conversation_id = c.id").
		Where("m.user_id = ? AND c.club_id = ?", userID, clubID).
		Order("c.updated_at DESC").
		Find(&members).Error
	return members, err
}

// ListActiveSince 拉取近期有消息的会话，供校准任务使用
func (s *conversationRepoImpl) ListActiveSince(ctx context.Context, since time.Time) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).
		Where("last_message_at >= ?", since).
		Find(&convs).Error
	return convs, err
}
