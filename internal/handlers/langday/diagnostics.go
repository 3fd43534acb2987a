package handlers

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/enrule/langbot/internal/classifier"
	"github.com/enrule/langbot/internal/langday"
)

const (
	maxLastResults = 1000
	lastResultsTTL = 24 * time.Hour
)

type Outcome string

const (
	OutcomeNone       Outcome = "none"
	OutcomeMatch      Outcome = "match"
	OutcomeThrottled  Outcome = "throttled"
	OutcomeNotice     Outcome = "notice"
	OutcomeWarn       Outcome = "warn"
	OutcomeMute       Outcome = "mute"
	OutcomeMuteFailed Outcome = "mute_failed"
)

// Decision records what the pipeline did with one message.
type Decision struct {
	ChatID    int64
	MessageID int
	SenderID  int64
	Target    langday.Lang
	Verdict   classifier.Verdict
	Outcome   Outcome
	Count     int64
	At        time.Time
}

type messageKey struct {
	chatID    int64
	messageID int
}

func newLastResults() *expirable.LRU[messageKey, *Decision] {
	return expirable.NewLRU[messageKey, *Decision](maxLastResults, nil, lastResultsTTL)
}

func (m *Moderator) remember(d *Decision) {
	m.lastResults.Add(messageKey{chatID: d.ChatID, messageID: d.MessageID}, d)
}

// LastDecision returns the recorded decision for a message, if any.
func (m *Moderator) LastDecision(chatID int64, messageID int) *Decision {
	d, ok := m.lastResults.Get(messageKey{chatID: chatID, messageID: messageID})
	if !ok {
		return nil
	}
	return d
}
