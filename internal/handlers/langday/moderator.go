package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/enrule/langbot/internal/bot"
	"github.com/enrule/langbot/internal/classifier"
	"github.com/enrule/langbot/internal/cooldown"
	"github.com/enrule/langbot/internal/db"
	"github.com/enrule/langbot/internal/langday"
	"github.com/enrule/langbot/internal/observability"
	"github.com/enrule/langbot/internal/violations"
)

type transport interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
	Restrict(ctx context.Context, chatID int64, userID int64, until time.Time) error
	Unrestrict(ctx context.Context, chatID int64, userID int64) error
	Administrators(ctx context.Context, chatID int64) ([]int64, error)
}

type restrictionLog interface {
	AddRestriction(ctx context.Context, restriction *db.UserRestriction) error
	RemoveRestriction(ctx context.Context, chatID int64, userID int64) error
	GetActiveRestriction(ctx context.Context, chatID, userID int64) (*db.UserRestriction, error)
	ListActiveRestrictions(ctx context.Context, chatID int64) ([]*db.UserRestriction, error)
}

type languageClassifier interface {
	Classify(ctx context.Context, m classifier.Message, day langday.DaySetting, otherLangChecks bool) (classifier.Verdict, error)
}

type Config struct {
	AdminsTTL             time.Duration
	UnrestrictConcurrency int
}

func DefaultConfig() Config {
	return Config{
		AdminsTTL:             3 * time.Hour,
		UnrestrictConcurrency: 4,
	}
}

// Incoming is a chat message as seen by the pipeline.
type Incoming struct {
	ChatID         int64
	MessageID      int
	SenderID       int64
	SenderUsername string
	Text           string
	Timestamp      int64
	// SenderIsChat marks anonymous admins and automatic forwards from the
	// linked channel. Posts made as any other channel are not trusted.
	SenderIsChat bool
}

// AllowedUpdates lists the update kinds Handle reacts to.
var AllowedUpdates = []string{"message", "chat_member", "my_chat_member"}

// Moderator enforces the language of the day in the tracked chat.
type Moderator struct {
	cfg          Config
	transport    transport
	restrictions restrictionLog
	classifier   languageClassifier
	policy       *langday.Policy
	cooldown     *cooldown.Gate
	ledger       *violations.Ledger
	admins       *adminCache
	lastResults  *expirable.LRU[messageKey, *Decision]
	now          func() time.Time
}

func NewModerator(
	cfg Config,
	transport transport,
	restrictions restrictionLog,
	classifier languageClassifier,
	policy *langday.Policy,
	gate *cooldown.Gate,
	ledger *violations.Ledger,
) *Moderator {
	if cfg.UnrestrictConcurrency <= 0 {
		cfg.UnrestrictConcurrency = 1
	}
	return &Moderator{
		cfg:          cfg,
		transport:    transport,
		restrictions: restrictions,
		classifier:   classifier,
		policy:       policy,
		cooldown:     gate,
		ledger:       ledger,
		admins:       newAdminCache(transport, cfg.AdminsTTL),
		lastResults:  newLastResults(),
		now:          time.Now,
	}
}

func (m *Moderator) getLogEntry(ctx context.Context) *log.Entry {
	return bot.LogEntry(ctx).WithField("object", "Moderator")
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if chat == nil {
		return true, nil
	}
	if u.ChatMember != nil || u.MyChatMember != nil {
		m.admins.Invalidate(chat.ID)
		return true, nil
	}

	msg := u.Message
	if msg == nil || user == nil {
		return true, nil
	}
	if user.IsBot && msg.SenderChat == nil {
		return true, nil
	}

	if msg.IsCommand() {
		return false, m.handleCommand(ctx, msg, chat, user)
	}

	text := bot.MessageText(msg)
	if text == "" {
		return true, nil
	}

	in := Incoming{
		ChatID:         chat.ID,
		MessageID:      msg.MessageID,
		SenderID:       user.ID,
		SenderUsername: user.UserName,
		Text:           text,
		Timestamp:      int64(msg.Date),
		SenderIsChat:   isAnonymousAdmin(msg, chat) || isLinkedChannelPost(msg),
	}
	if msg.SenderChat != nil && !in.SenderIsChat {
		// Posted as a channel: the channel is the offender, not Channel_Bot.
		in.SenderID = msg.SenderChat.ID
		in.SenderUsername = msg.SenderChat.UserName
	}
	_, err := m.HandleMessage(ctx, in)
	return true, err
}

// isAnonymousAdmin reports a message sent on behalf of the chat itself.
func isAnonymousAdmin(msg *api.Message, chat *api.Chat) bool {
	return msg.SenderChat != nil && msg.SenderChat.ID == chat.ID
}

func isLinkedChannelPost(msg *api.Message) bool {
	return msg.SenderChat != nil && msg.IsAutomaticForward
}

func (m *Moderator) isAdmin(ctx context.Context, chatID, userID int64) bool {
	isAdmin, err := m.admins.IsAdmin(ctx, chatID, userID)
	if err != nil {
		m.getLogEntry(ctx).WithField("error", err.Error()).Warn("failed to fetch chat administrators")
		return false
	}
	return isAdmin
}

// HandleMessage runs the moderation pipeline for one message.
func (m *Moderator) HandleMessage(ctx context.Context, in Incoming) (*Decision, error) {
	done := observability.StartMessageProcessing()
	ctx, span := observability.Tracer().Start(ctx, "langday.HandleMessage")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chat_id", in.ChatID),
		attribute.Int64("user_id", in.SenderID),
		attribute.Int("message_id", in.MessageID),
	)

	entry := m.getLogEntry(ctx).WithFields(log.Fields{
		"method":     "HandleMessage",
		"message_id": in.MessageID,
		"user_id":    in.SenderID,
	})

	decision, err := m.decide(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		done("error")
		return nil, err
	}
	m.remember(decision)

	stage := string(decision.Verdict.Stage)
	span.SetAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", string(decision.Outcome)),
		attribute.String("language", string(decision.Verdict.Language)),
	)
	observability.RecordDecision(stage, string(decision.Outcome))
	done(stage)

	entry.WithFields(log.Fields{
		"stage":    stage,
		"outcome":  decision.Outcome,
		"target":   decision.Target.String(),
		"detected": decision.Verdict.Language.String(),
		"reason":   decision.Verdict.Reason,
	}).Debug("message processed")
	return decision, nil
}

func (m *Moderator) decide(ctx context.Context, in Incoming) (*Decision, error) {
	day, err := m.policy.Today(ctx, m.now())
	if err != nil {
		return nil, errors.WithMessage(err, "day settings")
	}
	otherDisabled, err := m.policy.OtherLangChecksDisabled(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "other language checks flag")
	}

	fromAdmin := in.SenderIsChat || m.isAdmin(ctx, in.ChatID, in.SenderID)
	var sentAt time.Time
	if in.Timestamp > 0 {
		sentAt = time.Unix(in.Timestamp, 0)
	}

	verdict, err := m.classifier.Classify(ctx, classifier.Message{
		Text:      in.Text,
		SentAt:    sentAt,
		FromAdmin: fromAdmin,
	}, day, !otherDisabled)
	if err != nil {
		return nil, errors.WithMessage(err, "classify")
	}

	decision := &Decision{
		ChatID:    in.ChatID,
		MessageID: in.MessageID,
		SenderID:  in.SenderID,
		Target:    day.Language,
		Verdict:   verdict,
		Outcome:   OutcomeNone,
		At:        m.now(),
	}
	if !verdict.Decided() {
		return decision, nil
	}
	if verdict.Language != langday.Foreign && verdict.Language == day.Language {
		decision.Outcome = OutcomeMatch
		return decision, nil
	}

	if !m.cooldown.TryActivate() {
		end, _ := m.cooldown.EndTime()
		m.getLogEntry(ctx).WithField("cooldown_until", end).Info("language mismatch while cooling down, staying silent")
		decision.Outcome = OutcomeThrottled
		return decision, nil
	}

	decision.Outcome, decision.Count = m.escalate(ctx, in, day.Language)
	observability.RecordAction(string(decision.Outcome))
	return decision, nil
}

// escalate warns or mutes the sender. Failures are logged and reported in
// the returned outcome, never returned.
func (m *Moderator) escalate(ctx context.Context, in Incoming, target langday.Lang) (Outcome, int64) {
	entry := m.getLogEntry(ctx).WithFields(log.Fields{
		"method":  "escalate",
		"user_id": in.SenderID,
		"target":  target.String(),
	})
	lang := replyLanguage(target)
	warning := warningMessage(target)

	settings, err := m.ledger.Settings(ctx)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to read violation settings")
		m.reply(ctx, in, warning)
		return OutcomeNotice, 0
	}
	if !settings.MuteEnabled {
		m.reply(ctx, in, warning)
		return OutcomeNotice, 0
	}

	reg, err := m.ledger.Register(ctx, in.SenderID, in.SenderUsername)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to register violation")
		m.reply(ctx, in, warning)
		return OutcomeNotice, 0
	}

	if reg.Action() == violations.ActionWarn {
		m.reply(ctx, in, warning+"\n\n"+violationMessage(lang, reg))
		return OutcomeWarn, reg.Count
	}

	now := m.now()
	until := now.Add(settings.MuteDuration)
	if err := m.transport.Restrict(ctx, in.ChatID, in.SenderID, until); err != nil {
		entry.WithField("error", err.Error()).Error("error while restricting a member")
		m.reply(ctx, in, muteFailedMessage(lang))
		return OutcomeMuteFailed, reg.Count
	}

	if err := m.restrictions.AddRestriction(ctx, &db.UserRestriction{
		UserID:       in.SenderID,
		ChatID:       in.ChatID,
		RestrictedAt: now,
		ExpiresAt:    until,
		Reason:       "language violation",
	}); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to log restriction")
	}
	entry.WithField("count", reg.Count).WithField("until", until).Info("user muted")
	m.reply(ctx, in, mutedMessage(lang))
	return OutcomeMute, reg.Count
}

func (m *Moderator) reply(ctx context.Context, in Incoming, text string) {
	if err := m.transport.Reply(ctx, in.ChatID, in.MessageID, text); err != nil {
		m.getLogEntry(ctx).WithField("error", err.Error()).Error("failed to send reply")
	}
}
