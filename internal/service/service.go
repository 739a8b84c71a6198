package service

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/dredbirozsolt/livechat/internal/config"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/ai"
	"github.com/dredbirozsolt/livechat/internal/service/auth"
	"github.com/dredbirozsolt/livechat/internal/service/chat"
	"github.com/dredbirozsolt/livechat/internal/service/health"
	"github.com/dredbirozsolt/livechat/internal/service/notify"
	"github.com/dredbirozsolt/livechat/internal/service/presence"
	"github.com/dredbirozsolt/livechat/internal/service/retirement"
)

// Services 服务集合
type Services struct {
	Chat       *chat.Service
	Presence   *presence.Service
	Health     *health.Service
	Retirement *retirement.Service
	Auth       *auth.Service

	Config   *config.Config
	Provider ai.Provider
	Notifier notify.Notifier
}

// NewServices 创建所有服务
// pinger 提供数据库可达性检查（system 健康行使用）；redisClient 可为 nil，
// 此时通知退化为空实现。
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client,
	pinger func(ctx context.Context) error) (*Services, error) {

	provider := ai.NewProvider(cfg)

	var notifier notify.Notifier = notify.NopNotifier{}
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient, cfg.Redis.EventChannel)
	}

	healthSvc := health.NewService(repo.Health, provider, pinger)
	presenceSvc := presence.NewService(repo.Presence, repo.Operator)
	chatSvc := chat.NewService(repo, healthSvc, presenceSvc, provider, notifier, &cfg.Chat)
	retirementSvc := retirement.NewService(repo.Conversation, &cfg.Chat)
	authSvc := auth.NewService(repo.Operator)

	return &Services{
		Chat:       chatSvc,
		Presence:   presenceSvc,
		Health:     healthSvc,
		Retirement: retirementSvc,
		Auth:       authSvc,
		Config:     cfg,
		Provider:   provider,
		Notifier:   notifier,
	}, nil
}
