// Package ai 封装 AI 服务商适配器
// 核心只依赖 Provider 接口：探测可用性、生成会话摘要。
package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dredbirozsolt/livechat/internal/config"
	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// summaryPrompt 摘要生成提示词
const summaryPrompt = `You are a support assistant. Summarize the following support conversation in 2-3 sentences. Mention the visitor's problem and the outcome. Reply with the summary only.`

// Provider AI 服务商适配器接口
type Provider interface {
	// Configured 凭证是否已配置
	Configured() bool
	// Probe 轻量能力探测；调用方负责把失败当作"不可用"，不在此路径重试
	Probe(ctx context.Context) error
	// Summarize 生成会话摘要（尽力而为，失败由调用方吞掉）
	Summarize(ctx context.Context, messages []*model.Message) (string, error)
}

// chatModelProvider 基于 eino ChatModel 的实现
type chatModelProvider struct {
	cfg *config.Config

	mu        sync.Mutex
	chatModel einomodel.ChatModel // 懒初始化，首次使用时构建
}

// NewProvider 创建 AI 服务商适配器
func NewProvider(cfg *config.Config) Provider {
	return &chatModelProvider{cfg: cfg}
}

// credentials 返回当前服务商的凭证配置
func (p *chatModelProvider) credentials() (apiKey, baseURL, modelName string) {
	aiCfg := p.cfg.AI
	switch aiCfg.Provider {
	case "deepseek":
		return aiCfg.DeepSeek.APIKey, aiCfg.DeepSeek.BaseURL, aiCfg.DeepSeek.Model
	default:
		return aiCfg.OpenAI.APIKey, aiCfg.OpenAI.BaseURL, aiCfg.OpenAI.Model
	}
}

// Configured 凭证是否已配置
func (p *chatModelProvider) Configured() bool {
	apiKey, _, _ := p.credentials()
	return apiKey != ""
}

// getChatModel 获取或构建 ChatModel
func (p *chatModelProvider) getChatModel(ctx context.Context) (einomodel.ChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.chatModel != nil {
		return p.chatModel, nil
	}

	apiKey, baseURL, modelName := p.credentials()
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", p.cfg.AI.Provider)
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	p.chatModel = cm
	return cm, nil
}

// Probe 发起一次最小的生成调用验证服务商可达
func (p *chatModelProvider) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AI.ProbeTimeout())
	defer cancel()

	cm, err := p.getChatModel(ctx)
	if err != nil {
		return err
	}

	_, err = cm.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: "ping"},
	})
	if err != nil {
		return types.UpstreamUnavailable("probe failed", err)
	}
	return nil
}

// Summarize 生成会话摘要
func (p *chatModelProvider) Summarize(ctx context.Context, messages []*model.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AI.ProbeTimeout())
	defer cancel()

	cm, err := p.getChatModel(ctx)
	if err != nil {
		return "", err
	}

	resp, err := cm.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: summaryPrompt},
		{Role: schema.User, Content: buildTranscript(messages)},
	})
	if err != nil {
		return "", types.UpstreamUnavailable("failed to generate summary", err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// buildTranscript 将消息列表拼接为摘要输入
func buildTranscript(messages []*model.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			continue
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
