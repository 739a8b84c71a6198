package handler

import (
	"github.com/dredbirozsolt/livechat/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Conversation *ConversationHandler
	Operator     *OperatorHandler
	Admin        *AdminHandler
	Auth         *AuthHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Conversation: NewConversationHandler(svc),
		Operator:     NewOperatorHandler(svc),
		Admin:        NewAdminHandler(svc),
		Auth:         NewAuthHandler(svc),
	}
}
