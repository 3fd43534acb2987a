package telegram

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	apperrors "github.com/enrule/langbot/internal/errors"
	"github.com/enrule/langbot/internal/policy/permissions"
)

const msgNoPrivileges = "not enough rights"

// Requester is the part of *api.BotAPI the operations need.
type Requester interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetChatAdministrators(config api.ChatAdministratorsConfig) ([]api.ChatMember, error)
}

// Operations provides rate limited Telegram calls used by the moderator
type Operations struct {
	bot     Requester
	selfID  int64
	limiter *rate.Limiter
}

// NewOperations allows perMinute outgoing requests with a burst of the same
// size. A non-positive perMinute disables limiting. selfID is the bot's own
// user id, restrictions are pre-checked against its rights when it is set.
func NewOperations(bot Requester, selfID int64, perMinute int) *Operations {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Operations{bot: bot, selfID: selfID, limiter: limiter}
}

func (o *Operations) wait(ctx context.Context) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit")
	}
	return nil
}

// Reply sends text to the chat, as a reply when replyTo is set
func (o *Operations) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	msg := api.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyParameters.MessageID = replyTo
		msg.ReplyParameters.ChatID = chatID
		msg.ReplyParameters.AllowSendingWithoutReply = true
	}
	msg.DisableNotification = true
	if _, err := o.bot.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

// Restrict takes away every sending permission until the given time
func (o *Operations) Restrict(ctx context.Context, chatID int64, userID int64, until time.Time) error {
	if err := o.checkCanRestrict(ctx, chatID); err != nil {
		return err
	}
	if err := o.wait(ctx); err != nil {
		return err
	}
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate:   until.Unix(),
		Permissions: &api.ChatPermissions{},

		UseIndependentChatPermissions: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		return withPrivilegeError(err, "restrict")
	}
	return nil
}

// Unrestrict restores the full permission set
func (o *Operations) Unrestrict(ctx context.Context, chatID int64, userID int64) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendAudios:         true,
			CanSendDocuments:      true,
			CanSendPhotos:         true,
			CanSendVideos:         true,
			CanSendVideoNotes:     true,
			CanSendVoiceNotes:     true,
			CanSendPolls:          true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
			CanChangeInfo:         true,
			CanInviteUsers:        true,
			CanPinMessages:        true,
			CanManageTopics:       true,
		},
		UseIndependentChatPermissions: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		return withPrivilegeError(err, "unrestrict")
	}
	return nil
}

// Administrators returns ids of the current chat administrators
func (o *Operations) Administrators(ctx context.Context, chatID int64) ([]int64, error) {
	if err := o.wait(ctx); err != nil {
		return nil, err
	}
	members, err := o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chat administrators")
	}
	ids := make([]int64, 0, len(members))
	for i := range members {
		if permissions.IsModerator(&members[i]) {
			ids = append(ids, members[i].User.ID)
		}
	}
	return ids, nil
}

func (o *Operations) checkCanRestrict(ctx context.Context, chatID int64) error {
	if o.selfID == 0 {
		return nil
	}
	if err := o.wait(ctx); err != nil {
		return err
	}
	members, err := o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return errors.Wrap(err, "failed to get chat administrators")
	}
	for i := range members {
		if members[i].User != nil && members[i].User.ID == o.selfID && permissions.CanRestrict(&members[i]) {
			return nil
		}
	}
	return errors.Wrap(apperrors.ErrNoPrivileges, "restrict: bot is not allowed to restrict members")
}

func withPrivilegeError(err error, operation string) error {
	if strings.Contains(err.Error(), msgNoPrivileges) {
		return errors.Wrapf(apperrors.ErrNoPrivileges, "%s: %s", operation, err.Error())
	}
	return errors.Wrapf(err, "failed to %s user", operation)
}
