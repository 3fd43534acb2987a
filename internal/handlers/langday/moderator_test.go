package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/enrule/langbot/internal/classifier"
	"github.com/enrule/langbot/internal/cooldown"
	"github.com/enrule/langbot/internal/db"
	"github.com/enrule/langbot/internal/db/memory"
	"github.com/enrule/langbot/internal/langday"
	"github.com/enrule/langbot/internal/violations"
)

const testChatID int64 = -100500

type sentReply struct {
	chatID  int64
	replyTo int
	text    string
}

type transportStub struct {
	mu           sync.Mutex
	admins       []int64
	restrictErr  error
	replies      []sentReply
	restricted   map[int64]time.Time
	unrestricted []int64
}

func newTransportStub(admins ...int64) *transportStub {
	return &transportStub{admins: admins, restricted: map[int64]time.Time{}}
}

func (s *transportStub) Reply(_ context.Context, chatID int64, replyTo int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, sentReply{chatID: chatID, replyTo: replyTo, text: text})
	return nil
}

func (s *transportStub) Restrict(_ context.Context, _ int64, userID int64, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restrictErr != nil {
		return s.restrictErr
	}
	s.restricted[userID] = until
	return nil
}

func (s *transportStub) Unrestrict(_ context.Context, _ int64, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unrestricted = append(s.unrestricted, userID)
	return nil
}

func (s *transportStub) Administrators(_ context.Context, _ int64) ([]int64, error) {
	return s.admins, nil
}

func (s *transportStub) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.replies))
	for _, r := range s.replies {
		out = append(out, r.text)
	}
	return out
}

type restrictionsStub struct {
	mu      sync.Mutex
	records map[int64]*db.UserRestriction
}

func newRestrictionsStub() *restrictionsStub {
	return &restrictionsStub{records: map[int64]*db.UserRestriction{}}
}

func (s *restrictionsStub) AddRestriction(_ context.Context, r *db.UserRestriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.UserID] = r
	return nil
}

func (s *restrictionsStub) RemoveRestriction(_ context.Context, _ int64, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *restrictionsStub) GetActiveRestriction(_ context.Context, _ int64, userID int64) (*db.UserRestriction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID], nil
}

func (s *restrictionsStub) ListActiveRestrictions(_ context.Context, _ int64) ([]*db.UserRestriction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*db.UserRestriction, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

type classifierStub struct {
	mu      sync.Mutex
	verdict classifier.Verdict
	last    classifier.Message
}

func (s *classifierStub) Classify(_ context.Context, m classifier.Message, _ langday.DaySetting, _ bool) (classifier.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = m
	return s.verdict, nil
}

type kvStub struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *kvStub) GetKV(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *kvStub) SetKV(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

type testEnv struct {
	m            *Moderator
	transport    *transportStub
	restrictions *restrictionsStub
	classifier   *classifierStub
	policy       *langday.Policy
	gate         *cooldown.Gate
	ledger       *violations.Ledger
	now          time.Time
}

func newTestEnv(t *testing.T, admins ...int64) *testEnv {
	t.Helper()

	kv := &kvStub{values: map[string]string{}}
	env := &testEnv{
		transport:    newTransportStub(admins...),
		restrictions: newRestrictionsStub(),
		classifier: &classifierStub{verdict: classifier.Verdict{
			Language: langday.English,
			Stage:    classifier.StageML,
			Reason:   "guessed",
		}},
		policy: langday.NewPolicy(kv, time.UTC),
		gate:   cooldown.NewGate(kv),
		ledger: violations.NewLedger(memory.NewViolationStore(), kv),
		now:    time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC),
	}
	if err := env.policy.SetForcedLanguage(context.Background(), langday.Russian); err != nil {
		t.Fatalf("force language: %v", err)
	}
	env.m = NewModerator(DefaultConfig(), env.transport, env.restrictions, env.classifier, env.policy, env.gate, env.ledger)
	env.m.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) message(id int, userID int64, username string) Incoming {
	return Incoming{
		ChatID:         testChatID,
		MessageID:      id,
		SenderID:       userID,
		SenderUsername: username,
		Text:           "hello there, how are you doing",
	}
}

func TestHandleMessageEscalatesToMute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	if err := env.gate.SetDuration(ctx, 0); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}

	wantOutcomes := []Outcome{OutcomeWarn, OutcomeWarn, OutcomeMute}
	for i, want := range wantOutcomes {
		d, err := env.m.HandleMessage(ctx, env.message(i+1, 42, "john"))
		if err != nil {
			t.Fatalf("message %d: %v", i+1, err)
		}
		if d.Outcome != want {
			t.Fatalf("message %d outcome = %s, want %s", i+1, d.Outcome, want)
		}
		if d.Count != int64(i+1) {
			t.Fatalf("message %d count = %d, want %d", i+1, d.Count, i+1)
		}
	}

	warning := "Hey, today is a Russian day. Try to speak Russian!"
	want := []string{
		warning + "\n\nThis is your 1st warning",
		warning + "\n\nThis is your last warning",
		"You're temporarily muted for a repeated violation.",
	}
	got := env.transport.texts()
	if len(got) != len(want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reply %d = %q, want %q", i, got[i], want[i])
		}
	}

	until, ok := env.transport.restricted[42]
	if !ok {
		t.Fatal("user was not restricted")
	}
	if !until.Equal(env.now.Add(violations.DefaultMuteDuration)) {
		t.Fatalf("restricted until %v", until)
	}
	if _, ok := env.restrictions.records[42]; !ok {
		t.Fatal("restriction was not logged")
	}
}

func TestHandleMessageCooldownKeepsSilence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.m.HandleMessage(ctx, env.message(1, 42, "john"))
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	if first.Outcome != OutcomeWarn {
		t.Fatalf("first outcome = %s", first.Outcome)
	}

	second, err := env.m.HandleMessage(ctx, env.message(2, 43, "jane"))
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if second.Outcome != OutcomeThrottled {
		t.Fatalf("second outcome = %s, want throttled", second.Outcome)
	}
	if n := len(env.transport.texts()); n != 1 {
		t.Fatalf("expected a single reply, got %d", n)
	}
	count, err := env.ledger.Count(ctx, 43)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("throttled violation must not be counted, got %d", count)
	}
}

func TestHandleMessageMatchAndUndecided(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verdict classifier.Verdict
		want    Outcome
	}{
		{
			name:    "target-language",
			verdict: classifier.Verdict{Language: langday.Russian, Stage: classifier.StageCharset},
			want:    OutcomeMatch,
		},
		{
			name:    "too-short",
			verdict: classifier.Verdict{Stage: classifier.StageLength},
			want:    OutcomeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.classifier.verdict = tt.verdict

			d, err := env.m.HandleMessage(context.Background(), env.message(1, 42, "john"))
			if err != nil {
				t.Fatalf("handle: %v", err)
			}
			if d.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s", d.Outcome, tt.want)
			}
			if n := len(env.transport.texts()); n != 0 {
				t.Fatalf("expected no replies, got %d", n)
			}
			if env.gate.IsCoolingDown() {
				t.Fatal("gate must stay open")
			}
		})
	}
}

func TestHandleMessageMarksAdmins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 7)
	env.classifier.verdict = classifier.Verdict{Stage: classifier.StageAdmin}

	if _, err := env.m.HandleMessage(context.Background(), env.message(1, 7, "boss")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !env.classifier.last.FromAdmin {
		t.Fatal("admin sender must be flagged")
	}

	in := env.message(2, 1087968824, "GroupAnonymousBot")
	in.SenderIsChat = true
	if _, err := env.m.HandleMessage(context.Background(), in); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !env.classifier.last.FromAdmin {
		t.Fatal("messages sent on behalf of a chat must be flagged")
	}

	if _, err := env.m.HandleMessage(context.Background(), env.message(3, 8, "member")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.classifier.last.FromAdmin {
		t.Fatal("regular member must not be flagged")
	}
}

func TestHandleTrustsOnlyOwnChat(t *testing.T) {
	t.Parallel()

	channelBot := &api.User{ID: 136817688, UserName: "Channel_Bot", IsBot: true}
	tests := []struct {
		name          string
		senderChat    *api.Chat
		autoForward   bool
		wantFromAdmin bool
		wantSender    int64
	}{
		{"anonymous admin", &api.Chat{ID: testChatID}, false, true, channelBot.ID},
		{"linked channel forward", &api.Chat{ID: -100900, Type: "channel"}, true, true, channelBot.ID},
		{"member posting as a channel", &api.Chat{ID: -100777, Type: "channel", UserName: "mychannel"}, false, false, -100777},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			u := &api.Update{Message: &api.Message{
				MessageID:          9,
				From:               channelBot,
				SenderChat:         tt.senderChat,
				IsAutomaticForward: tt.autoForward,
				Text:               "hello there, how are you doing",
			}}
			if _, err := env.m.Handle(context.Background(), u, &api.Chat{ID: testChatID}, channelBot); err != nil {
				t.Fatalf("handle: %v", err)
			}
			if env.classifier.last.FromAdmin != tt.wantFromAdmin {
				t.Fatalf("FromAdmin = %v, want %v", env.classifier.last.FromAdmin, tt.wantFromAdmin)
			}
			d := env.m.LastDecision(testChatID, 9)
			if d == nil || d.SenderID != tt.wantSender {
				t.Fatalf("decision = %+v, want sender %d", d, tt.wantSender)
			}
		})
	}
}

func TestHandleIgnoresEditedMessages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := &api.User{ID: 42, UserName: "john"}
	u := &api.Update{EditedMessage: &api.Message{
		MessageID: 5,
		From:      user,
		Text:      "hello there, how are you doing",
	}}
	proceed, err := env.m.Handle(context.Background(), u, &api.Chat{ID: testChatID}, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !proceed || env.m.LastDecision(testChatID, 5) != nil {
		t.Fatal("edited messages must pass through untouched")
	}
	for _, kind := range AllowedUpdates {
		if kind == "edited_message" {
			t.Fatal("edited messages must not be requested")
		}
	}
}

func TestHandleMessageMuteFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.transport.restrictErr = errors.New("not enough rights")
	if err := env.gate.SetDuration(ctx, 0); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}
	if err := env.ledger.SetMaxViolations(ctx, 1); err != nil {
		t.Fatalf("set max: %v", err)
	}

	d, err := env.m.HandleMessage(ctx, env.message(1, 42, "john"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if d.Outcome != OutcomeMuteFailed {
		t.Fatalf("outcome = %s, want mute_failed", d.Outcome)
	}
	texts := env.transport.texts()
	if len(texts) != 1 || texts[0] != "You're in luck, pal. I'll get to you next time" {
		t.Fatalf("unexpected replies %q", texts)
	}
	if len(env.restrictions.records) != 0 {
		t.Fatal("failed mute must not be logged")
	}
}

func TestHandleMessageMuteDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	if err := env.ledger.SetMuteEnabled(ctx, false); err != nil {
		t.Fatalf("disable mute: %v", err)
	}

	d, err := env.m.HandleMessage(ctx, env.message(1, 42, "john"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if d.Outcome != OutcomeNotice {
		t.Fatalf("outcome = %s, want notice", d.Outcome)
	}
	texts := env.transport.texts()
	if len(texts) != 1 || texts[0] != "Hey, today is a Russian day. Try to speak Russian!" {
		t.Fatalf("unexpected replies %q", texts)
	}
	count, err := env.ledger.Count(ctx, 42)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("violation must not be counted, got %d", count)
	}
}

func TestLastDecisionIsRemembered(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.m.HandleMessage(context.Background(), env.message(11, 42, "john")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	d := env.m.LastDecision(testChatID, 11)
	if d == nil {
		t.Fatal("decision was not remembered")
	}
	if d.Verdict.Stage != classifier.StageML || d.Target != langday.Russian {
		t.Fatalf("unexpected decision %+v", d)
	}
	if env.m.LastDecision(testChatID, 12) != nil {
		t.Fatal("unexpected decision for an unknown message")
	}
}
