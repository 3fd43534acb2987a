package bot

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type UpdateProcessor struct {
	chatID         int64
	updateHandlers []Handler
}

// NewUpdateProcessor runs handlers in order for updates of chatID. A zero
// chatID accepts every chat.
func NewUpdateProcessor(chatID int64, handlers ...Handler) *UpdateProcessor {
	enabledHandlers := make([]Handler, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			enabledHandlers = append(enabledHandlers, handler)
		}
	}
	return &UpdateProcessor{
		chatID:         chatID,
		updateHandlers: enabledHandlers,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	chat := u.FromChat()
	user := u.SentFrom()

	entry := log.WithFields(log.Fields{
		"request_id": uuid.New(),
		"update_id":  u.UpdateID,
	})
	if chat != nil {
		entry = entry.WithField("chat_id", chat.ID)
	}
	if user != nil {
		entry = entry.WithField("user_id", user.ID)
	}

	if up.chatID != 0 && (chat == nil || chat.ID != up.chatID) {
		entry.Trace("update from an untracked chat")
		return nil
	}
	ctx = WithLogEntry(ctx, entry)

	for _, handler := range up.updateHandlers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		proceed, err := handler.Handle(ctx, u, chat, user)
		if err != nil {
			return errors.WithMessage(err, "handling error")
		}
		if !proceed {
			entry.Trace("not proceeding")
			return nil
		}
	}
	return nil
}

func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

// MessageText returns the text or the media caption of msg.
func MessageText(msg *api.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}
