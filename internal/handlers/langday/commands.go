package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/enrule/langbot/internal/bot"
	"github.com/enrule/langbot/internal/cooldown"
	apperrors "github.com/enrule/langbot/internal/errors"
	"github.com/enrule/langbot/internal/i18n"
	"github.com/enrule/langbot/internal/langday"
	"github.com/enrule/langbot/internal/observability"
	"github.com/enrule/langbot/internal/utils/duration"
)

type commandFunc func(ctx context.Context, cmd command) error

type command struct {
	msg  *api.Message
	chat *api.Chat
	user *api.User
	args string
	lang string
}

func (m *Moderator) commands() map[string]struct {
	adminOnly bool
	run       commandFunc
} {
	return map[string]struct {
		adminOnly bool
		run       commandFunc
	}{
		"today":           {false, m.todayCommand},
		"langchecks":      {true, m.langChecksCommand},
		"otherlang":       {true, m.otherLangCommand},
		"forcelang":       {true, m.forceLangCommand},
		"cooldown":        {true, m.cooldownCommand},
		"mute":            {true, m.muteCommand},
		"pardon":          {true, m.pardonCommand},
		"mute_duration":   {true, m.muteDurationCommand},
		"warnings_expiry": {true, m.warningsExpiryCommand},
		"warnings_number": {true, m.warningsNumberCommand},
		"why":             {true, m.whyCommand},
	}
}

func (m *Moderator) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	name := strings.ToLower(msg.Command())
	route, ok := m.commands()[name]
	if !ok {
		return nil
	}
	entry := m.getLogEntry(ctx).WithFields(log.Fields{
		"method":    "handleCommand",
		"command":   name,
		"user_id":   user.ID,
		"user_name": bot.GetUN(user),
	})

	if route.adminOnly && !isAnonymousAdmin(msg, chat) && !m.isAdmin(ctx, chat.ID, user.ID) {
		entry.Debug("ignoring admin command from a regular member")
		return nil
	}

	observability.RecordCommand(name)
	return route.run(ctx, command{
		msg:  msg,
		chat: chat,
		user: user,
		args: strings.TrimSpace(msg.CommandArguments()),
		lang: userLanguage(user),
	})
}

// userLanguage picks the admin's client language when it is supported.
func userLanguage(user *api.User) string {
	code := strings.ToLower(user.LanguageCode)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if tool.In(code, i18n.GetLanguagesList()...) {
		return code
	}
	return langday.English.String()
}

func (m *Moderator) respond(ctx context.Context, cmd command, text string) error {
	if err := m.transport.Reply(ctx, cmd.chat.ID, cmd.msg.MessageID, text); err != nil {
		return errors.WithMessage(err, "command reply")
	}
	return nil
}

func (m *Moderator) todayCommand(ctx context.Context, cmd command) error {
	disabled, err := m.policy.Disabled(ctx)
	if err != nil {
		return err
	}
	day, err := m.policy.Today(ctx, m.now())
	if err != nil {
		return err
	}
	return m.respond(ctx, cmd, todayMessage(day, disabled))
}

func (m *Moderator) langChecksCommand(ctx context.Context, cmd command) error {
	disabled, err := m.policy.ToggleDisabled(ctx)
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("disabled", disabled).Info("language checks toggled")
	if disabled {
		return m.respond(ctx, cmd, i18n.Get("Language checks are now disabled", cmd.lang))
	}
	return m.respond(ctx, cmd, i18n.Get("Language checks are now enabled", cmd.lang))
}

func (m *Moderator) otherLangCommand(ctx context.Context, cmd command) error {
	disabled, err := m.policy.ToggleOtherLangChecks(ctx)
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("disabled", disabled).Info("other language checks toggled")
	if disabled {
		return m.respond(ctx, cmd, i18n.Get("Other language checks are now disabled", cmd.lang))
	}
	return m.respond(ctx, cmd, i18n.Get("Other language checks are now enabled", cmd.lang))
}

func (m *Moderator) forceLangCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		if err := m.policy.SetForcedLanguage(ctx, langday.NoLang); err != nil {
			return err
		}
		return m.respond(ctx, cmd, i18n.Get("Forced day is now disabled.", cmd.lang))
	}

	arg := strings.Fields(cmd.args)[0]
	lang, ok := langday.ParseLang(arg)
	if !ok {
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get(`Unknown language "%s"`, cmd.lang), arg))
	}
	if err := m.policy.SetForcedLanguage(ctx, lang); err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("lang", lang.String()).Info("language forced")
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Language is now forced to %s", cmd.lang), lang.String()))
}

func (m *Moderator) cooldownCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		value, err := m.cooldown.Reset(ctx)
		if err != nil {
			return err
		}
		m.getLogEntry(ctx).Info("cooldown reset to default values")
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Setting cooldown to the default value of %s", cmd.lang), duration.String(value)))
	}

	value, err := duration.Parse(cmd.args, duration.Minute)
	if err != nil {
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get(`Wrong cooldown duration value: "%s". Try something like "3", "10m", "1m30s", etc.`, cmd.lang), cmd.args))
	}
	if err := m.cooldown.SetDuration(ctx, value); err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Cooldown must be in range between 0 and %s", cmd.lang), duration.String(cooldown.MaxDuration)))
		}
		return err
	}
	m.getLogEntry(ctx).WithField("cooldown", value).Info("cooldown modified")
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Cooldown between warnings is now %s", cmd.lang), duration.String(value)))
}

func (m *Moderator) muteCommand(ctx context.Context, cmd command) error {
	enabled, err := m.ledger.ToggleMute(ctx)
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("enabled", enabled).Info("mute capacity modified")
	if enabled {
		return m.respond(ctx, cmd, i18n.Get("Mute on language violations is now on", cmd.lang))
	}
	return m.respond(ctx, cmd, i18n.Get("Mute on language violations is now off", cmd.lang))
}

func (m *Moderator) muteDurationCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		value, err := m.ledger.MuteDuration(ctx)
		if err != nil {
			return err
		}
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Mute duration is %s", cmd.lang), duration.String(value)))
	}

	value, err := duration.Parse(cmd.args, duration.Minute)
	if err == nil {
		err = m.ledger.SetMuteDuration(ctx, value)
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get(`Incorrect duration value "%s". Try something like "3", "10m", "1m30s", etc.`, cmd.lang), cmd.args))
	}
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("duration", value).Info("changing mute duration")
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Mute duration is now %s", cmd.lang), duration.String(value)))
}

func (m *Moderator) warningsExpiryCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		value, err := m.ledger.WarningsExpiry(ctx)
		if err != nil {
			return err
		}
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Warning expiry is %s", cmd.lang), duration.String(value)))
	}

	value, err := duration.Parse(cmd.args, duration.Minute)
	if err == nil {
		err = m.ledger.SetWarningsExpiry(ctx, value)
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get(`Incorrect expiry value "%s". Try something like "3", "10m", "1m30s", etc.`, cmd.lang), cmd.args))
	}
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("expiry", value).Info("changing warning expiry")
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Warning expiry is now %s", cmd.lang), duration.String(value)))
}

func (m *Moderator) warningsNumberCommand(ctx context.Context, cmd command) error {
	if cmd.args == "" {
		value, err := m.ledger.MaxViolations(ctx)
		if err != nil {
			return err
		}
		return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Maximum number of warnings is %d", cmd.lang), value))
	}

	value, err := strconv.ParseInt(cmd.args, 10, 64)
	if err != nil {
		err = apperrors.ErrInvalidInput
	} else {
		err = m.ledger.SetMaxViolations(ctx, value)
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return m.respond(ctx, cmd, i18n.Get("Maximum number of warnings must be a non-negative integer!", cmd.lang))
	}
	if err != nil {
		return err
	}
	m.getLogEntry(ctx).WithField("max", value).Info("changing max warnings number")
	return m.respond(ctx, cmd, fmt.Sprintf(i18n.Get("Max warnings number is now %d", cmd.lang), value))
}

func (m *Moderator) whyCommand(ctx context.Context, cmd command) error {
	if cmd.msg.ReplyToMessage == nil {
		return m.respond(ctx, cmd, i18n.Get("Reply to a message to see how it was classified", cmd.lang))
	}
	d := m.LastDecision(cmd.chat.ID, cmd.msg.ReplyToMessage.MessageID)
	if d == nil {
		return m.respond(ctx, cmd, i18n.Get("No decision recorded for this message", cmd.lang))
	}
	count, err := m.ledger.Count(ctx, d.SenderID)
	if err != nil {
		return err
	}
	restriction, err := m.restrictions.GetActiveRestriction(ctx, cmd.chat.ID, d.SenderID)
	if err != nil {
		return err
	}

	lines := []string{
		fmt.Sprintf(
			i18n.Get("Stage: %s\nOutcome: %s\nTarget: %s\nDetected: %s\nReason: %s", cmd.lang),
			d.Verdict.Stage, d.Outcome, d.Target.String(), d.Verdict.Language.String(), d.Verdict.Reason,
		),
		fmt.Sprintf(i18n.Get("Warnings: %d", cmd.lang), count),
	}
	if restriction != nil {
		until := restriction.ExpiresAt.In(m.now().Location()).Format("2006-01-02 15:04")
		lines = append(lines, fmt.Sprintf(i18n.Get("Muted until: %s", cmd.lang), until))
	}
	return m.respond(ctx, cmd, strings.Join(lines, "\n"))
}
