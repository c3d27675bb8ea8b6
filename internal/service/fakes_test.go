package service

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/model"
	"Clubline/internal/pkg/mongo"
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// fakeConvRepo 内存版会话存储，语义对齐 MySQL 实现：
// PairKey 撞键返回 gorm.ErrDuplicatedKey，未命中返回 gorm.ErrRecordNotFound
type fakeConvRepo struct {
	mu            sync.Mutex
	nextID        uint64
	conversations map[uint64]*model.Conversation
	byPairKey     map[string]uint64
	members       map[uint64]map[uint64]*model.ConversationMember
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		nextID:        1,
		conversations: make(map[uint64]*model.Conversation),
		byPairKey:     make(map[string]uint64),
		members:       make(map[uint64]map[uint64]*model.ConversationMember),
	}
}

func (s *fakeConvRepo) CreateConversation(_ context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.PairKey != nil {
		if _, ok := s.byPairKey[*conv.PairKey]; ok {
			return gorm.ErrDuplicatedKey
		}
	}

	conv.ID = s.nextID
	s.nextID++
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	s.conversations[conv.ID] = conv
	if conv.PairKey != nil {
		s.byPairKey[*conv.PairKey] = conv.ID
	}

	s.members[conv.ID] = make(map[uint64]*model.ConversationMember)
	for i, m := range members {
		m.ConversationID = conv.ID
		m.JoinedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		s.members[conv.ID][m.UserID] = m
	}
	return nil
}

func (s *fakeConvRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (s *fakeConvRepo) GetConversationByPairKey(_ context.Context, pairKey string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, ok := s.byPairKey[pairKey]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.conversations[convID], nil
}

func (s *fakeConvRepo) IsMember(_ context.Context, convID uint64, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[convID][userID]
	return ok, nil
}

func (s *fakeConvRepo) GetMember(_ context.Context, convID uint64, userID uint64) (*model.ConversationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[convID][userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (s *fakeConvRepo) GetMembers(_ context.Context, convID uint64) ([]*model.ConversationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*model.ConversationMember, 0, len(s.members[convID]))
	for _, m := range s.members[convID] {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].JoinedAt.Before(res[j].JoinedAt) })
	return res, nil
}

func (s *fakeConvRepo) GetMembersIn(ctx context.Context, convIDs []uint64) ([]*model.ConversationMember, error) {
	var res []*model.ConversationMember
	for _, id := range convIDs {
		members, _ := s.GetMembers(ctx, id)
		res = append(res, members...)
	}
	return res, nil
}

func (s *fakeConvRepo) AddMember(_ context.Context, member *model.ConversationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.ConversationID][member.UserID]; ok {
		return gorm.ErrDuplicatedKey
	}
	member.JoinedAt = time.Now()
	s.members[member.ConversationID][member.UserID] = member
	return nil
}

func (s *fakeConvRepo) RemoveMember(_ context.Context, convID uint64, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[convID][userID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.members[convID], userID)
	return nil
}

func (s *fakeConvRepo) UpdateGroupInfo(_ context.Context, convID uint64, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[convID]
	if name, ok := updates["name"].(string); ok {
		conv.Name = name
	}
	if avatar, ok := updates["avatar"].(string); ok {
		conv.Avatar = avatar
	}
	return nil
}

func (s *fakeConvRepo) UpdateMemberAdmin(_ context.Context, convID uint64, userID uint64, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[convID][userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if isAdmin {
		m.IsAdmin = 1
	} else {
		m.IsAdmin = 0
	}
	return nil
}

func (s *fakeConvRepo) UpdateMemberSettings(_ context.Context, convID uint64, userID uint64, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[convID][userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if muted, ok := updates["is_muted"].(int8); ok {
		m.IsMuted = muted
	}
	if archived, ok := updates["is_archived"].(int8); ok {
		m.IsArchived = archived
	}
	return nil
}

func (s *fakeConvRepo) UpdateLastRead(_ context.Context, convID uint64, userID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[convID][userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.LastReadAt = &at
	return nil
}

func (s *fakeConvRepo) UpdateLastMessage(_ context.Context, convID uint64, preview string, senderID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conv.LastMsgContent = preview
	conv.LastSenderID = senderID
	conv.LastMessageAt = &at
	// updated_at 只抬升不回退
	if at.After(conv.UpdatedAt) {
		conv.UpdatedAt = at
	}
	return nil
}

func (s *fakeConvRepo) ListByUser(ctx context.Context, userID uint64, clubID uint64) ([]*model.ConversationMember, error) {
	s.mu.Lock()
	var res []*model.ConversationMember
	for convID, members := range s.members {
		m, ok := members[userID]
		if !ok {
			continue
		}
		conv := s.conversations[convID]
		if clubID != 0 && conv.ClubID != clubID {
			continue
		}
		clone := *m
		clone.Conversation = *conv
		res = append(res, &clone)
	}
	s.mu.Unlock()
	sort.Slice(res, func(i, j int) bool {
		return res[i].Conversation.UpdatedAt.After(res[j].Conversation.UpdatedAt)
	})
	return res, nil
}

func (s *fakeConvRepo) ListActiveSince(_ context.Context, since time.Time) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*model.Conversation
	for _, conv := range s.conversations {
		if conv.UpdatedAt.After(since) {
			res = append(res, conv)
		}
	}
	return res, nil
}

// fakeMsgRepo 内存版消息存储，复刻单文档原子更新的可见语义
type fakeMsgRepo struct {
	mu       sync.Mutex
	messages []*mongo.Message
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{}
}

func (s *fakeMsgRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeMsgRepo) find(convID uint64, msgID primitive.ObjectID) *mongo.Message {
	for _, m := range s.messages {
		if m.ConversationID == convID && m.ID == msgID {
			return m
		}
	}
	return nil
}

func (s *fakeMsgRepo) GetMessage(_ context.Context, convID uint64, msgID primitive.ObjectID) (*mongo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.find(convID, msgID); m != nil {
		return m, nil
	}
	return nil, mongodriver.ErrNoDocuments
}

func (s *fakeMsgRepo) GetRecent(ctx context.Context, convID uint64, limit int) ([]*mongo.Message, error) {
	return s.GetHistoryBefore(ctx, convID, primitive.NilObjectID, limit)
}

func (s *fakeMsgRepo) GetHistoryBefore(_ context.Context, convID uint64, beforeID primitive.ObjectID, limit int) ([]*mongo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var window []*mongo.Message
	for _, m := range s.messages {
		if m.ConversationID != convID {
			continue
		}
		if !beforeID.IsZero() && m.ID.Hex() >= beforeID.Hex() {
			continue
		}
		window = append(window, m)
	}
	sort.Slice(window, func(i, j int) bool { return window[i].CreatedAt.Before(window[j].CreatedAt) })
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window, nil
}

func (s *fakeMsgRepo) GetLatest(_ context.Context, convID uint64) (*mongo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *mongo.Message
	for _, m := range s.messages {
		if m.ConversationID != convID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, mongodriver.ErrNoDocuments
	}
	return latest, nil
}

func (s *fakeMsgRepo) ApplyEdit(_ context.Context, convID uint64, msgID primitive.ObjectID, newContent string, prev mongo.EditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(convID, msgID)
	if m == nil {
		return mongodriver.ErrNoDocuments
	}
	m.Content = newContent
	m.Edited = true
	m.EditHistory = append(m.EditHistory, prev)
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeMsgRepo) MarkDeletedForEveryone(_ context.Context, convID uint64, msgID primitive.ObjectID, placeholder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(convID, msgID)
	if m == nil {
		return mongodriver.ErrNoDocuments
	}
	m.Deleted = true
	m.DeletedForEveryone = true
	m.Content = placeholder
	m.Attachments = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeMsgRepo) HideForUser(_ context.Context, convID uint64, msgID primitive.ObjectID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(convID, msgID)
	if m == nil {
		return mongodriver.ErrNoDocuments
	}
	if m.DeletedFor == nil {
		m.DeletedFor = make(map[string]bool)
	}
	m.DeletedFor[uintKey(userID)] = true
	m.UpdatedAt = time.Now()
	return nil
}

func (s *fakeMsgRepo) ToggleReaction(_ context.Context, convID uint64, msgID primitive.ObjectID, userID uint64, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(convID, msgID)
	if m == nil {
		return false, mongodriver.ErrNoDocuments
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]uint64)
	}
	users := m.Reactions[emoji]
	for i, uid := range users {
		if uid == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
			return false, nil
		}
	}
	m.Reactions[emoji] = append(users, userID)
	return true, nil
}

func (s *fakeMsgRepo) AddReceipts(_ context.Context, convID uint64, msgIDs []primitive.ObjectID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range msgIDs {
		m := s.find(convID, id)
		if m == nil {
			continue
		}
		m.ReadBy = appendUnique(m.ReadBy, userID)
		m.DeliveredTo = appendUnique(m.DeliveredTo, userID)
	}
	return nil
}

func appendUnique(ids []uint64, id uint64) []uint64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func uintKey(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

// fakeTypingRepo 内存版输入状态存储
type fakeTypingRepo struct {
	mu     sync.Mutex
	states map[uint64]map[uint64]*dto.TypingStateDTO
}

func newFakeTypingRepo() *fakeTypingRepo {
	return &fakeTypingRepo{states: make(map[uint64]map[uint64]*dto.TypingStateDTO)}
}

func (s *fakeTypingRepo) Set(_ context.Context, state *dto.TypingStateDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[state.ConversationID] == nil {
		s.states[state.ConversationID] = make(map[uint64]*dto.TypingStateDTO)
	}
	s.states[state.ConversationID][state.UserID] = state
	return nil
}

func (s *fakeTypingRepo) Remove(_ context.Context, convID uint64, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states[convID], userID)
	return nil
}

func (s *fakeTypingRepo) List(_ context.Context, convID uint64) ([]*dto.TypingStateDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*dto.TypingStateDTO, 0, len(s.states[convID]))
	for _, st := range s.states[convID] {
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UserID < res[j].UserID })
	return res, nil
}

// recordingFeed 记录广播调用的假 FeedPublisher
type recordingFeed struct {
	mu            sync.Mutex
	convEvents    []uint64
	messageEvents []uint64
	typingEvents  []uint64
}

func (s *recordingFeed) ConversationChanged(_ context.Context, _ uint64, _ []uint64, convID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convEvents = append(s.convEvents, convID)
}

func (s *recordingFeed) MessageChanged(_ context.Context, convID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageEvents = append(s.messageEvents, convID)
}

func (s *recordingFeed) TypingChanged(_ context.Context, convID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typingEvents = append(s.typingEvents, convID)
}

// recordingNotifier 记录外发通知事件的假 NotifyProducer
type recordingNotifier struct {
	mu     sync.Mutex
	events []*dto.NotifyEventDTO
}

func (s *recordingNotifier) MessageSent(_ context.Context, event *dto.NotifyEventDTO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}
