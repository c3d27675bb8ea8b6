package service

import (
	"Clubline/internal/api/dto"
	"Clubline/internal/pkg/consts"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msgTestEnv struct {
	svc      MessageService
	convSvc  ConversationService
	convRepo *fakeConvRepo
	msgRepo  *fakeMsgRepo
	feed     *recordingFeed
	notifier *recordingNotifier
}

func newMsgEnv() *msgTestEnv {
	convRepo := newFakeConvRepo()
	msgRepo := newFakeMsgRepo()
	feed := &recordingFeed{}
	notifier := &recordingNotifier{}
	return &msgTestEnv{
		svc:      NewMessageService(msgRepo, convRepo, feed, notifier),
		convSvc:  NewConversationService(convRepo, feed),
		convRepo: convRepo,
		msgRepo:  msgRepo,
		feed:     feed,
		notifier: notifier,
	}
}

func sender(id uint64) *dto.SenderInfo {
	return &dto.SenderInfo{UserID: id, UserName: "用户", Avatar: "a.png"}
}

func (e *msgTestEnv) directConv(t *testing.T) uint64 {
	t.Helper()
	convID, err := e.convSvc.GetOrCreateDirectConversation(context.Background(), 1, 2, 10)
	require.NoError(t, err)
	return convID
}

func (e *msgTestEnv) send(t *testing.T, convID uint64, userID uint64, content string) *dto.MessageDTO {
	t.Helper()
	msg, err := e.svc.SendMessage(context.Background(), sender(userID), &dto.SendMessageReq{
		ConversationID: convID,
		MsgType:        consts.MsgTypeText,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

// backdate 把消息创建时间拨回过去，用于时间窗口断言
func (e *msgTestEnv) backdate(msgID string, age time.Duration) {
	e.msgRepo.mu.Lock()
	defer e.msgRepo.mu.Unlock()
	for _, m := range e.msgRepo.messages {
		if m.ID.Hex() == msgID {
			m.CreatedAt = time.Now().Add(-age)
		}
	}
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("文本消息内容不能为空", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		_, err := env.svc.SendMessage(ctx, sender(1), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeText,
		})
		assert.ErrorIs(t, err, ErrContentEmpty)
	})

	t.Run("图片消息必须带附件", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		_, err := env.svc.SendMessage(ctx, sender(1), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeImage,
		})
		assert.ErrorIs(t, err, ErrAttachmentsEmpty)
	})

	t.Run("非成员不能发消息", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		_, err := env.svc.SendMessage(ctx, sender(9), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeText,
			Content:        "hi",
		})
		assert.ErrorIs(t, err, ErrNotConversationMember)
	})

	t.Run("发送者天然已读已送达", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "hello")

		assert.Equal(t, []uint64{1}, msg.ReadBy)
		assert.Equal(t, []uint64{1}, msg.DeliveredTo)
	})

	t.Run("AI助手跳过成员校验", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		agent := &dto.SenderInfo{UserID: consts.AgentUserID, UserName: consts.AgentName}
		msg, err := env.svc.SendMessage(ctx, agent, &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeText,
			Content:        "这是AI的回复",
		})
		require.NoError(t, err)
		assert.Equal(t, consts.AgentUserID, msg.SenderID)
	})

	t.Run("发送刷新会话预览并通知接收方", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)

		muted := true
		require.NoError(t, env.convSvc.UpdateSettings(ctx, 2, convID, &dto.UpdateSettingsReq{Muted: &muted}))

		env.send(t, convID, 1, "今晚活动照常")

		conv, err := env.convRepo.GetConversation(ctx, convID)
		require.NoError(t, err)
		assert.Equal(t, "今晚活动照常", conv.LastMsgContent)
		assert.EqualValues(t, 1, conv.LastSenderID)

		require.Len(t, env.notifier.events, 1)
		event := env.notifier.events[0]
		require.Len(t, event.Recipients, 1)
		assert.EqualValues(t, 2, event.Recipients[0].UserID)
		assert.True(t, event.Recipients[0].Muted)
	})

	t.Run("非文本消息预览折叠为类型占位", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)

		_, err := env.svc.SendMessage(ctx, sender(1), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeImage,
			Attachments:    []dto.AttachmentDTO{{URL: "u", Name: "p.jpg", Size: 10, Type: "image/jpeg"}},
		})
		require.NoError(t, err)

		conv, _ := env.convRepo.GetConversation(ctx, convID)
		assert.Equal(t, "[image]", conv.LastMsgContent)

		_, err = env.svc.SendMessage(ctx, sender(1), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeFile,
			Attachments:    []dto.AttachmentDTO{{URL: "u", Name: "报名表.xlsx", Size: 10, Type: "application/vnd.ms-excel"}},
		})
		require.NoError(t, err)

		conv, _ = env.convRepo.GetConversation(ctx, convID)
		assert.Equal(t, "[file]", conv.LastMsgContent)
	})

	t.Run("回复携带原消息快照", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		original := env.send(t, convID, 1, "周六比赛谁参加")

		reply, err := env.svc.SendMessage(ctx, sender(2), &dto.SendMessageReq{
			ConversationID: convID,
			MsgType:        consts.MsgTypeText,
			Content:        "我参加",
			ReplyToID:      original.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, reply.ReplyTo)
		assert.Equal(t, original.ID, reply.ReplyTo.MessageID)
		assert.Equal(t, "周六比赛谁参加", reply.ReplyTo.Text)
		assert.EqualValues(t, 1, reply.ReplyTo.SenderID)
	})
}

func TestEditMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("窗口内编辑成功并保留历史", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "原始内容")
		env.backdate(msg.ID, 14*time.Minute+59*time.Second)

		err := env.svc.EditMessage(ctx, 1, &dto.EditMessageReq{
			ConversationID: convID, MessageID: msg.ID, Content: "改后内容",
		})
		require.NoError(t, err)

		edited, err := env.svc.GetMessage(ctx, 1, convID, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "改后内容", edited.Content)
		assert.True(t, edited.Edited)
	})

	t.Run("超过十五分钟编辑失败", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "原始内容")
		env.backdate(msg.ID, 15*time.Minute+time.Second)

		err := env.svc.EditMessage(ctx, 1, &dto.EditMessageReq{
			ConversationID: convID, MessageID: msg.ID, Content: "改后内容",
		})
		assert.ErrorIs(t, err, ErrEditWindowExpired)
	})

	t.Run("只能编辑自己的消息", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "原始内容")

		err := env.svc.EditMessage(ctx, 2, &dto.EditMessageReq{
			ConversationID: convID, MessageID: msg.ID, Content: "篡改",
		})
		assert.ErrorIs(t, err, ErrNotMessageSender)
	})

	t.Run("已撤回的消息不能编辑", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "原始内容")
		require.NoError(t, env.svc.DeleteMessage(ctx, 1, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		}))

		err := env.svc.EditMessage(ctx, 1, &dto.EditMessageReq{
			ConversationID: convID, MessageID: msg.ID, Content: "复活",
		})
		assert.ErrorIs(t, err, ErrMessageDeleted)
	})

	t.Run("编辑不回写会话预览", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "原始内容")

		require.NoError(t, env.svc.EditMessage(ctx, 1, &dto.EditMessageReq{
			ConversationID: convID, MessageID: msg.ID, Content: "改后内容",
		}))

		// 预览保持发送时刻的快照
		conv, _ := env.convRepo.GetConversation(ctx, convID)
		assert.Equal(t, "原始内容", conv.LastMsgContent)
		assert.EqualValues(t, 1, conv.LastSenderID)
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("全员撤回替换为占位文案", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "说错话了")

		require.NoError(t, env.svc.DeleteMessage(ctx, 1, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		}))

		// 双方视角都只剩占位
		for _, uid := range []uint64{1, 2} {
			got, err := env.svc.GetMessage(ctx, uid, convID, msg.ID)
			require.NoError(t, err)
			assert.True(t, got.Deleted)
			assert.Equal(t, consts.DeletedPlaceholder, got.Content)
			assert.Empty(t, got.Attachments)
		}
	})

	t.Run("全员撤回不回写会话预览", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "说错话了")

		require.NoError(t, env.svc.DeleteMessage(ctx, 1, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		}))

		conv, _ := env.convRepo.GetConversation(ctx, convID)
		assert.Equal(t, "说错话了", conv.LastMsgContent)
	})

	t.Run("超过六十分钟不能全员撤回", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "旧消息")
		env.backdate(msg.ID, time.Hour+time.Second)

		err := env.svc.DeleteMessage(ctx, 1, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		})
		assert.ErrorIs(t, err, ErrDeleteWindowExpired)
	})

	t.Run("只有发送者能全员撤回", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "消息")

		err := env.svc.DeleteMessage(ctx, 2, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		})
		assert.ErrorIs(t, err, ErrNotMessageSender)
	})

	t.Run("个人删除不限时且只影响本人", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "只对我隐藏")
		env.backdate(msg.ID, 48*time.Hour)

		// 非发送者、超时很久，个人删除依然成功
		require.NoError(t, env.svc.DeleteMessage(ctx, 2, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID,
		}))

		_, err := env.svc.GetMessage(ctx, 2, convID, msg.ID)
		assert.ErrorIs(t, err, ErrMessageNotFound)

		// 发送者照常可见
		got, err := env.svc.GetMessage(ctx, 1, convID, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "只对我隐藏", got.Content)
	})
}

func TestReactMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("重复回应即是取消", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "比赛赢了")

		react := &dto.ReactMessageReq{ConversationID: convID, MessageID: msg.ID, Emoji: "👍"}
		require.NoError(t, env.svc.ReactMessage(ctx, 2, react))

		got, _ := env.svc.GetMessage(ctx, 1, convID, msg.ID)
		assert.Equal(t, []uint64{2}, got.Reactions["👍"])

		require.NoError(t, env.svc.ReactMessage(ctx, 2, react))
		got, _ = env.svc.GetMessage(ctx, 1, convID, msg.ID)
		assert.NotContains(t, got.Reactions, "👍")
	})

	t.Run("不同用户的回应互不覆盖", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "比赛赢了")

		react := &dto.ReactMessageReq{ConversationID: convID, MessageID: msg.ID, Emoji: "👍"}
		require.NoError(t, env.svc.ReactMessage(ctx, 1, react))
		require.NoError(t, env.svc.ReactMessage(ctx, 2, react))
		// 1 号取消，2 号保留
		require.NoError(t, env.svc.ReactMessage(ctx, 1, react))

		got, _ := env.svc.GetMessage(ctx, 2, convID, msg.ID)
		assert.Equal(t, []uint64{2}, got.Reactions["👍"])
	})

	t.Run("已撤回的消息不能回应", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "消息")
		require.NoError(t, env.svc.DeleteMessage(ctx, 1, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: msg.ID, ForEveryone: true,
		}))

		err := env.svc.ReactMessage(ctx, 2, &dto.ReactMessageReq{
			ConversationID: convID, MessageID: msg.ID, Emoji: "👍",
		})
		assert.ErrorIs(t, err, ErrMessageDeleted)
	})

	t.Run("非成员不能回应", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "消息")

		err := env.svc.ReactMessage(ctx, 9, &dto.ReactMessageReq{
			ConversationID: convID, MessageID: msg.ID, Emoji: "👍",
		})
		assert.ErrorIs(t, err, ErrNotConversationMember)
	})

	t.Run("emoji 不允许字段路径特殊字符", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		msg := env.send(t, convID, 1, "消息")

		for _, emoji := range []string{"", "a.b", "$set", "$"} {
			err := env.svc.ReactMessage(ctx, 2, &dto.ReactMessageReq{
				ConversationID: convID, MessageID: msg.ID, Emoji: emoji,
			})
			assert.ErrorIs(t, err, ErrParamInvalid, "emoji=%q", emoji)
		}
	})
}

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()
	env := newMsgEnv()
	convID := env.directConv(t)

	m1 := env.send(t, convID, 1, "一")
	m2 := env.send(t, convID, 1, "二")

	require.NoError(t, env.svc.MarkAsRead(ctx, 2, &dto.MarkAsReadReq{
		ConversationID: convID,
		MessageIDs:     []string{m1.ID, m2.ID},
	}))

	for _, id := range []string{m1.ID, m2.ID} {
		got, err := env.svc.GetMessage(ctx, 2, convID, id)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint64{1, 2}, got.ReadBy)
		assert.ElementsMatch(t, []uint64{1, 2}, got.DeliveredTo)
	}

	member, err := env.convRepo.GetMember(ctx, convID, 2)
	require.NoError(t, err)
	assert.NotNil(t, member.LastReadAt)

	// 回执只增不减：重复标记不产生重复项
	require.NoError(t, env.svc.MarkAsRead(ctx, 2, &dto.MarkAsReadReq{
		ConversationID: convID,
		MessageIDs:     []string{m1.ID},
	}))
	got, _ := env.svc.GetMessage(ctx, 2, convID, m1.ID)
	assert.Len(t, got.ReadBy, 2)
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("非成员不能拉历史", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)
		_, err := env.svc.GetHistory(ctx, 9, convID, "", 10)
		assert.ErrorIs(t, err, ErrNotConversationMember)
	})

	t.Run("按时间升序返回且过滤个人删除", func(t *testing.T) {
		env := newMsgEnv()
		convID := env.directConv(t)

		m1 := env.send(t, convID, 1, "一")
		env.backdate(m1.ID, 3*time.Minute)
		m2 := env.send(t, convID, 2, "二")
		env.backdate(m2.ID, 2*time.Minute)
		m3 := env.send(t, convID, 1, "三")
		env.backdate(m3.ID, time.Minute)

		require.NoError(t, env.svc.DeleteMessage(ctx, 2, &dto.DeleteMessageReq{
			ConversationID: convID, MessageID: m2.ID,
		}))

		// 2 号视角少一条
		history, err := env.svc.GetHistory(ctx, 2, convID, "", 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "一", history[0].Content)
		assert.Equal(t, "三", history[1].Content)

		// 1 号视角完整
		history, err = env.svc.GetHistory(ctx, 1, convID, "", 10)
		require.NoError(t, err)
		assert.Len(t, history, 3)
	})
}
