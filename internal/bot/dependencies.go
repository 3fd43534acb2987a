package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
)

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

type HandlerFunc func(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error)

func (f HandlerFunc) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	return f(ctx, u, chat, user)
}
