package service

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/model"
	"Clubline/internal/pkg/consts"
	"Clubline/internal/repository"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// FeedPublisher 存储层变更的广播出口
type FeedPublisher interface {
	ConversationChanged(ctx context.Context, clubID uint64, userIDs []uint64, convID uint64)
	MessageChanged(ctx context.Context, convID uint64)
	TypingChanged(ctx context.Context, convID uint64)
}

// ConversationService 会话注册与成员管理
type ConversationService interface {
	CreateConversation(ctx context.Context, creatorID uint64, req *dto.CreateConversationReq) (uint64, error)
	GetOrCreateDirectConversation(ctx context.Context, userID, targetUserID, clubID uint64) (uint64, error)
	GetConversationList(ctx context.Context, userID uint64, clubID uint64) ([]*dto.ConversationDTO, error)
	UpdateGroupInfo(ctx context.Context, operatorID, convID uint64, req *dto.UpdateGroupInfoReq) error
	AddGroupMember(ctx context.Context, operatorID, convID, userID uint64) error
	RemoveGroupMember(ctx context.Context, operatorID, convID, userID uint64) error
	UpdateSettings(ctx context.Context, userID, convID uint64, req *dto.UpdateSettingsReq) error
}

type conversationServiceImpl struct {
	convRepo repository.ConversationRepo
	feed     FeedPublisher
}

func NewConversationService(convRepo repository.ConversationRepo, feed FeedPublisher) ConversationService {
	return &conversationServiceImpl{convRepo: convRepo, feed: feed}
}

// directPairKey 单聊规范化唯一键：社团 + 无序用户对
func directPairKey(clubID, userA, userB uint64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("c%d:%d_%d", clubID, userA, userB)
}

// CreateConversation 创建会话并初始化全部成员的个人设置
func (s *conversationServiceImpl) CreateConversation(ctx context.Context, creatorID uint64, req *dto.CreateConversationReq) (uint64, error) {
	participants := dedupeIDs(req.Participants)

	switch req.Type {
	case consts.ConvTypeDirect:
		if len(participants) != 2 {
			return 0, ErrDirectParticipants
		}
		return s.GetOrCreateDirectConversation(ctx, participants[0], participants[1], req.ClubID)
	case consts.ConvTypeGroup:
		if len(participants) == 0 {
			return 0, ErrGroupParticipantsEmpty
		}
	default:
		return 0, ErrParamInvalid
	}

	// 创建者始终入群并成为初始管理员，保证 admins 非空
	if !containsID(participants, creatorID) {
		participants = append(participants, creatorID)
	}

	conv := &model.Conversation{
		ClubID:    req.ClubID,
		Type:      consts.ConvTypeGroup,
		Name:      req.Name,
		Avatar:    req.Avatar,
		CreatedBy: creatorID,
	}
	members := make([]*model.ConversationMember, 0, len(participants))
	for _, uid := range participants {
		m := &model.ConversationMember{UserID: uid}
		if uid == creatorID {
			m.IsAdmin = 1
		}
		members = append(members, m)
	}

	if err := s.convRepo.CreateConversation(ctx, conv, members); err != nil {
		return 0, err
	}

	s.feed.ConversationChanged(ctx, req.ClubID, participants, conv.ID)
	return conv.ID, nil
}

// GetOrCreateDirectConversation 针对单聊：获取或创建会话
// 并发双创建由 pair_key 唯一索引兜底：后到者撞键后回查并返回先到者的会话，
// 两个调用方最终收敛到同一个 ID
func (s *conversationServiceImpl) GetOrCreateDirectConversation(ctx context.Context, userID, targetUserID, clubID uint64) (uint64, error) {
	if userID == targetUserID {
		return 0, ErrDirectParticipants
	}
	pairKey := directPairKey(clubID, userID, targetUserID)

	conv, err := s.convRepo.GetConversationByPairKey(ctx, pairKey)
	if err == nil {
		return conv.ID, nil
	}

	newConv := &model.Conversation{
		ClubID:    clubID,
		Type:      consts.ConvTypeDirect,
		PairKey:   &pairKey,
		CreatedBy: userID,
	}
	members := []*model.ConversationMember{
		{UserID: userID},
		{UserID: targetUserID},
	}

	if err := s.convRepo.CreateConversation(ctx, newConv, members); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, lookupErr := s.convRepo.GetConversationByPairKey(ctx, pairKey)
			if lookupErr != nil {
				return 0, lookupErr
			}
			return winner.ID, nil
		}
		return 0, err
	}

	s.feed.ConversationChanged(ctx, clubID, []uint64{userID, targetUserID}, newConv.ID)
	return newConv.ID, nil
}

// GetConversationList 获取会话列表，按最近活跃倒序
func (s *conversationServiceImpl) GetConversationList(ctx context.Context, userID uint64, clubID uint64) ([]*dto.ConversationDTO, error) {
	members, err := s.convRepo.ListByUser(ctx, userID, clubID)
	if err != nil {
		return nil, err
	}

	convIDs := make([]uint64, 0, len(members))
	for _, m := range members {
		convIDs = append(convIDs, m.ConversationID)
	}
	allMembers, err := s.convRepo.GetMembersIn(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	byConv := make(map[uint64][]*model.ConversationMember, len(convIDs))
	for _, m := range allMembers {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}

	res := make([]*dto.ConversationDTO, 0, len(members))
	for _, m := range members {
		res = append(res, s.toConversationDTO(&m.Conversation, m, byConv[m.ConversationID], userID))
	}
	return res, nil
}

// UpdateGroupInfo 更新群名称/头像，要求操作者为管理员
func (s *conversationServiceImpl) UpdateGroupInfo(ctx context.Context, operatorID, convID uint64, req *dto.UpdateGroupInfoReq) error {
	conv, err := s.requireGroup(ctx, convID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, convID, operatorID); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if err := s.convRepo.UpdateGroupInfo(ctx, convID, updates); err != nil {
		return err
	}

	s.notifyMembers(ctx, conv, convID)
	return nil
}

// AddGroupMember 拉人入群，要求操作者为管理员
func (s *conversationServiceImpl) AddGroupMember(ctx context.Context, operatorID, convID, userID uint64) error {
	conv, err := s.requireGroup(ctx, convID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, convID, operatorID); err != nil {
		return err
	}

	if err := s.convRepo.AddMember(ctx, &model.ConversationMember{ConversationID: convID, UserID: userID}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrMemberExist
		}
		return err
	}

	s.notifyMembers(ctx, conv, convID)
	return nil
}

// RemoveGroupMember 移除群成员；唯一的例外是成员可以自行退群
func (s *conversationServiceImpl) RemoveGroupMember(ctx context.Context, operatorID, convID, userID uint64) error {
	conv, err := s.requireGroup(ctx, convID)
	if err != nil {
		return err
	}
	if operatorID != userID {
		if err := s.requireAdmin(ctx, convID, operatorID); err != nil {
			return err
		}
	}

	if err := s.convRepo.RemoveMember(ctx, convID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotConversationMember
		}
		return err
	}

	// 管理员集合必须始终是成员的非空子集：最后一个管理员离开时顺位最早入群的成员
	remaining, err := s.convRepo.GetMembers(ctx, convID)
	if err == nil && len(remaining) > 0 {
		hasAdmin := false
		for _, m := range remaining {
			if m.IsAdmin == 1 {
				hasAdmin = true
				break
			}
		}
		if !hasAdmin {
			_ = s.convRepo.UpdateMemberAdmin(ctx, convID, remaining[0].UserID, true)
		}
	}

	s.notifyMembers(ctx, conv, convID)
	s.feed.ConversationChanged(ctx, conv.ClubID, []uint64{userID}, convID)
	return nil
}

// UpdateSettings 更新当前用户的个人会话设置
func (s *conversationServiceImpl) UpdateSettings(ctx context.Context, userID, convID uint64, req *dto.UpdateSettingsReq) error {
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return ErrConversationNotFound
	}
	if ok, err := s.convRepo.IsMember(ctx, convID, userID); err != nil || !ok {
		return ErrNotConversationMember
	}

	updates := map[string]interface{}{}
	if req.Muted != nil {
		updates["is_muted"] = boolToInt8(*req.Muted)
	}
	if req.Archived != nil {
		updates["is_archived"] = boolToInt8(*req.Archived)
	}
	if err := s.convRepo.UpdateMemberSettings(ctx, convID, userID, updates); err != nil {
		return err
	}

	s.feed.ConversationChanged(ctx, conv.ClubID, []uint64{userID}, convID)
	return nil
}

func (s *conversationServiceImpl) requireGroup(ctx context.Context, convID uint64) (*model.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if conv.Type != consts.ConvTypeGroup {
		return nil, ErrNotGroupConversation
	}
	return conv, nil
}

func (s *conversationServiceImpl) requireAdmin(ctx context.Context, convID, userID uint64) error {
	member, err := s.convRepo.GetMember(ctx, convID, userID)
	if err != nil {
		return ErrNotConversationMember
	}
	if member.IsAdmin != 1 {
		return ErrNotGroupAdmin
	}
	return nil
}

func (s *conversationServiceImpl) notifyMembers(ctx context.Context, conv *model.Conversation, convID uint64) {
	members, err := s.convRepo.GetMembers(ctx, convID)
	if err != nil {
		return
	}
	uids := make([]uint64, 0, len(members))
	for _, m := range members {
		uids = append(uids, m.UserID)
	}
	s.feed.ConversationChanged(ctx, conv.ClubID, uids, convID)
}

func (s *conversationServiceImpl) toConversationDTO(conv *model.Conversation, self *model.ConversationMember, members []*model.ConversationMember, userID uint64) *dto.ConversationDTO {
	d := &dto.ConversationDTO{
		ConversationID: conv.ID,
		ClubID:         conv.ClubID,
		Type:           conv.Type,
		Name:           conv.Name,
		Avatar:         conv.Avatar,
		CreatedBy:      conv.CreatedBy,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	d.Settings.Muted = self.IsMuted == 1
	d.Settings.Archived = self.IsArchived == 1
	d.Settings.LastRead = self.LastReadAt

	for _, m := range members {
		d.Participants = append(d.Participants, m.UserID)
		if m.IsAdmin == 1 {
			d.Admins = append(d.Admins, m.UserID)
		}
		if conv.Type == consts.ConvTypeDirect && m.UserID != userID {
			d.PeerID = m.UserID
		}
	}

	if conv.LastMessageAt != nil {
		d.LastMessage = &dto.LastMessageDTO{
			Text:      conv.LastMsgContent,
			SenderID:  conv.LastSenderID,
			Timestamp: *conv.LastMessageAt,
		}
	}
	return d
}

func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	res := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}
