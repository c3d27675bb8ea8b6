package service

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/repository"
	"context"
	"fmt"
	"time"
)

// TypingFreshness 读取侧的新鲜度阈值，超过视为已停止输入
const TypingFreshness = 5 * time.Second

// TypingService 输入状态跟踪
// 输入状态是短暂的装饰性信号，不做成员校验，丢失无碍
type TypingService interface {
	SetTyping(ctx context.Context, user *dto.SenderInfo, req *dto.SetTypingReq) error
	ActiveTypists(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error)
}

type typingServiceImpl struct {
	typingRepo repository.TypingRepo
	feed       FeedPublisher
}

func NewTypingService(typingRepo repository.TypingRepo, feed FeedPublisher) TypingService {
	return &typingServiceImpl{typingRepo: typingRepo, feed: feed}
}

// SetTyping 上报或撤销输入状态
func (s *typingServiceImpl) SetTyping(ctx context.Context, user *dto.SenderInfo, req *dto.SetTypingReq) error {
	if req.IsTyping == nil {
		return ErrParamInvalid
	}

	var err error
	if *req.IsTyping {
		err = s.typingRepo.Set(ctx, &dto.TypingStateDTO{
			ConversationID: req.ConversationID,
			UserID:         user.UserID,
			UserName:       user.UserName,
			Timestamp:      time.Now(),
		})
	} else {
		err = s.typingRepo.Remove(ctx, req.ConversationID, user.UserID)
	}
	if err != nil {
		return err
	}

	s.feed.TypingChanged(ctx, req.ConversationID)
	return nil
}

// ActiveTypists 当前仍在输入的用户，过滤掉超过新鲜度阈值的残留状态
func (s *typingServiceImpl) ActiveTypists(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error) {
	states, err := s.typingRepo.List(ctx, convID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-TypingFreshness)
	res := make([]*dto.TypingStateDTO, 0, len(states))
	for _, st := range states {
		if st.Timestamp.Before(cutoff) {
			continue
		}
		res = append(res, st)
	}
	return res, nil
}

// TypingText 输入提示文案
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing", names[0], names[1])
	case 3:
		return fmt.Sprintf("%s, %s, and %s are typing", names[0], names[1], names[2])
	default:
		return fmt.Sprintf("%d people are typing", len(names))
	}
}
