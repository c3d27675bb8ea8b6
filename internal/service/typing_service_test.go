package service

import (
	"Clubline/internal/api/dto"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTypingEnv() (TypingService, *fakeTypingRepo, *recordingFeed) {
	repo := newFakeTypingRepo()
	feed := &recordingFeed{}
	return NewTypingService(repo, feed), repo, feed
}

func boolPtr(b bool) *bool { return &b }

func TestSetTyping(t *testing.T) {
	ctx := context.Background()

	t.Run("上报与撤销", func(t *testing.T) {
		svc, _, feed := newTypingEnv()
		user := &dto.SenderInfo{UserID: 1, UserName: "小明"}

		require.NoError(t, svc.SetTyping(ctx, user, &dto.SetTypingReq{ConversationID: 7, IsTyping: boolPtr(true)}))
		active, err := svc.ActiveTypists(ctx, 7)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "小明", active[0].UserName)

		require.NoError(t, svc.SetTyping(ctx, user, &dto.SetTypingReq{ConversationID: 7, IsTyping: boolPtr(false)}))
		active, err = svc.ActiveTypists(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, active)

		assert.Len(t, feed.typingEvents, 2)
	})

	t.Run("is_typing 缺失被拒绝", func(t *testing.T) {
		svc, _, _ := newTypingEnv()
		err := svc.SetTyping(ctx, &dto.SenderInfo{UserID: 1}, &dto.SetTypingReq{ConversationID: 7})
		assert.ErrorIs(t, err, ErrParamInvalid)
	})

	t.Run("超过新鲜度阈值的残留状态被过滤", func(t *testing.T) {
		svc, repo, _ := newTypingEnv()

		require.NoError(t, repo.Set(ctx, &dto.TypingStateDTO{
			ConversationID: 7, UserID: 1, UserName: "小明",
			Timestamp: time.Now().Add(-10 * time.Second),
		}))
		require.NoError(t, repo.Set(ctx, &dto.TypingStateDTO{
			ConversationID: 7, UserID: 2, UserName: "小红",
			Timestamp: time.Now(),
		}))

		active, err := svc.ActiveTypists(ctx, 7)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.EqualValues(t, 2, active[0].UserID)
	})
}

func TestTypingText(t *testing.T) {
	assert.Equal(t, "", TypingText(nil))
	assert.Equal(t, "Alice is typing", TypingText([]string{"Alice"}))
	assert.Equal(t, "Alice and Bob are typing", TypingText([]string{"Alice", "Bob"}))
	assert.Equal(t, "Alice, Bob, and Carol are typing", TypingText([]string{"Alice", "Bob", "Carol"}))
	assert.Equal(t, "4 people are typing", TypingText([]string{"Alice", "Bob", "Carol", "Dave"}))
}
