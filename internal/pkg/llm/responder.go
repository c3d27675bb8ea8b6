package llm

import (
	"Clubline/internal/api/config"
	"context"
	"errors"
	log "log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/semaphore"
)

var (
	chatWeight = int64(5)
	chatSem    = semaphore.NewWeighted(chatWeight)
)

// Responder 聊天 AI 助手
// 消息文本命中触发前缀时，由表现层剥掉前缀后调用 Reply
type Responder interface {
	TriggerPrefix() string
	Reply(ctx context.Context, question string) (string, error)
}

type responderImpl struct{}

func NewResponder() Responder {
	return &responderImpl{}
}

func (s *responderImpl) TriggerPrefix() string {
	return config.Cfg.LLM.TriggerPrefix
}

// Reply 单轮对话，无工具调用
func (s *responderImpl) Reply(ctx context.Context, question string) (string, error) {
	if err := chatSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer chatSem.Release(1)

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(chatPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(question),
			},
		},
	}

	log.Info("正在请求AI大模型")
	resp, err := llmClient.GenerateContent(ctx, messages,
		llms.WithModel(config.Cfg.LLM.Model),
		llms.WithTemperature(0.7),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("AI大模型返回为空")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
