package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/enrule/langbot/internal/db"
	apperrors "github.com/enrule/langbot/internal/errors"
)

type record struct {
	count     int64
	username  string
	expiresAt time.Time
}

func (r *record) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// ViolationStore keeps the ledger in process memory. A single mutex makes
// every operation atomic, so DeleteAllViolations is a plain sweep.
type ViolationStore struct {
	mu        sync.Mutex
	records   map[int64]*record
	usernames map[string]int64
	now       func() time.Time
}

func NewViolationStore() *ViolationStore {
	return &ViolationStore{
		records:   map[int64]*record{},
		usernames: map[string]int64{},
		now:       time.Now,
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

func (s *ViolationStore) get(userID int64, now time.Time) *record {
	rec, ok := s.records[userID]
	if !ok {
		return nil
	}
	if rec.expired(now) {
		s.drop(userID, rec)
		return nil
	}
	return rec
}

func (s *ViolationStore) drop(userID int64, rec *record) {
	delete(s.records, userID)
	if rec.username != "" && s.usernames[rec.username] == userID {
		delete(s.usernames, rec.username)
	}
}

func (s *ViolationStore) IncrementViolation(_ context.Context, userID int64, username string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := s.get(userID, now)
	if rec == nil {
		rec = &record{}
		s.records[userID] = rec
	}
	rec.count++
	if ttl > 0 {
		rec.expiresAt = now.Add(ttl)
	} else {
		rec.expiresAt = time.Time{}
	}

	if name := normalizeUsername(username); name != "" {
		if rec.username != "" && rec.username != name && s.usernames[rec.username] == userID {
			delete(s.usernames, rec.username)
		}
		rec.username = name
		s.usernames[name] = userID
	}
	return rec.count, nil
}

func (s *ViolationStore) GetViolation(_ context.Context, userID int64) (*db.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(userID, s.now())
	if rec == nil {
		return nil, nil
	}
	return &db.Violation{UserID: userID, Username: rec.username, Count: rec.count}, nil
}

func (s *ViolationStore) ResolveUsername(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.usernames[normalizeUsername(username)]
	if !ok || s.get(userID, s.now()) == nil {
		return 0, apperrors.ErrNotFound
	}
	return userID, nil
}

func (s *ViolationStore) DeleteViolation(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.get(userID, s.now())
	if rec == nil {
		return false, nil
	}
	s.drop(userID, rec)
	return true, nil
}

func (s *ViolationStore) DeleteAllViolations(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]int64, 0, len(s.records))
	for userID, rec := range s.records {
		if !rec.expired(now) {
			ids = append(ids, userID)
		}
	}
	s.records = map[int64]*record{}
	s.usernames = map[string]int64{}
	return ids, nil
}
