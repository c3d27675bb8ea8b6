package repository

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/consts"
	"Clubline/internal/pkg/redis"
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// TypingStateTTL Hash 整键兜底过期时间
// 真正的 5 秒过期语义由读取方按 Timestamp 过滤实现，这里只做存储侧的卫生兜底
const TypingStateTTL = 30 * time.Second

// TypingRepo 正在输入状态的临时存储
type TypingRepo interface {
	Set(ctx context.Context, state *dto.TypingStateDTO) error
	Remove(ctx context.Context, convID uint64, userID uint64) error
	List(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error)
}

type typingRepoImpl struct{}

func NewTypingRepo() TypingRepo {
	return &typingRepoImpl{}
}

func typingKey(convID uint64) string {
	return consts.IMTypingStateKey + strconv.FormatUint(convID, 10)
}

// Set 覆盖写入用户在会话内的输入状态
func (s *typingRepoImpl) Set(ctx context.Context, state *dto.TypingStateDTO) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	field := strconv.FormatUint(state.UserID, 10)
	return redis.HSetWithExpiration(ctx, typingKey(state.ConversationID), field, data, TypingStateTTL)
}

// Remove 删除用户输入状态；客户端异常断连时可能丢失该调用
func (s *typingRepoImpl) Remove(ctx context.Context, convID uint64, userID uint64) error {
	return redis.HDel(ctx, typingKey(convID), strconv.FormatUint(userID, 10))
}

// List 返回会话内全部输入状态记录，不做过期过滤
func (s *typingRepoImpl) List(ctx context.Context, convID uint64) ([]*dto.TypingStateDTO, error) {
	raw, err := redis.HGetAll(ctx, typingKey(convID))
	if err != nil {
		return nil, err
	}

	states := make([]*dto.TypingStateDTO, 0, len(raw))
	for _, v := range raw {
		var state dto.TypingStateDTO
		if err := json.Unmarshal([]byte(v), &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}
