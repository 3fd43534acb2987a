package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/enrule/langbot/internal/db"
	apperrors "github.com/enrule/langbot/internal/errors"
)

const (
	keyPrefix         = "enrule:violations:"
	counterKeyPrefix  = keyPrefix + "counter:"
	usernameKeyPrefix = keyPrefix + "username:"
	userIDKeyPrefix   = keyPrefix + "userid:"

	scanBatchSize = 100
)

// deletes the counter and both index entries of one user
var pardonScript = redis.NewScript(`
local name = redis.call('GET', KEYS[2])
local deleted = redis.call('DEL', KEYS[1], KEYS[2])
if name then
	deleted = deleted + redis.call('DEL', ARGV[1] .. name)
end
return deleted
`)

// walks the whole ledger key space and returns the ids of deleted counters
var pardonAllScript = redis.NewScript(`
local cursor = '0'
local ids = {}
repeat
	local page = redis.call('SCAN', cursor, 'MATCH', ARGV[1], 'COUNT', ARGV[2])
	cursor = page[1]
	for _, key in ipairs(page[2]) do
		local id = string.match(key, ARGV[3])
		if id then
			table.insert(ids, id)
		end
		redis.call('DEL', key)
	end
until cursor == '0'
return ids
`)

// lua pattern, the prefix carries no magic characters
const counterIDPattern = "^" + counterKeyPrefix + "(%-?%d+)$"

type ViolationStore struct {
	client *redis.Client
}

func NewViolationStore(redisURL string) (*ViolationStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return &ViolationStore{client: redis.NewClient(opt)}, nil
}

func NewViolationStoreWithClient(client *redis.Client) *ViolationStore {
	return &ViolationStore{client: client}
}

func (s *ViolationStore) getLogEntry() *log.Entry {
	return log.WithField("object", "RedisViolationStore")
}

func (s *ViolationStore) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "ping redis")
	}
	s.getLogEntry().WithField("addr", s.client.Options().Addr).Info("connected")
	return nil
}

func (s *ViolationStore) Stop(_ context.Context) error {
	return s.client.Close()
}

func counterKey(userID int64) string {
	return counterKeyPrefix + strconv.FormatInt(userID, 10)
}

func userIDKey(userID int64) string {
	return userIDKeyPrefix + strconv.FormatInt(userID, 10)
}

func usernameKey(username string) string {
	return usernameKeyPrefix + username
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

func (s *ViolationStore) IncrementViolation(ctx context.Context, userID int64, username string, ttl time.Duration) (int64, error) {
	if ttl < 0 {
		ttl = 0
	}
	key := counterKey(userID)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	} else {
		pipe.Persist(ctx, key)
	}
	if name := normalizeUsername(username); name != "" {
		pipe.Set(ctx, usernameKey(name), userID, ttl)
		pipe.Set(ctx, userIDKey(userID), name, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrapf(err, "register violation for %d", userID)
	}
	return incr.Val(), nil
}

func (s *ViolationStore) GetViolation(ctx context.Context, userID int64) (*db.Violation, error) {
	values, err := s.client.MGet(ctx, counterKey(userID), userIDKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "get violation for %d", userID)
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, nil
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed counter %q: %w", raw, err)
	}
	username, _ := values[1].(string)
	return &db.Violation{UserID: userID, Username: username, Count: count}, nil
}

func (s *ViolationStore) ResolveUsername(ctx context.Context, username string) (int64, error) {
	name := normalizeUsername(username)
	if name == "" {
		return 0, apperrors.ErrNotFound
	}
	userID, err := s.client.Get(ctx, usernameKey(name)).Int64()
	if err == redis.Nil {
		return 0, apperrors.ErrNotFound
	} else if err != nil {
		return 0, errors.Wrapf(err, "resolve username %s", name)
	}
	return userID, nil
}

func (s *ViolationStore) DeleteViolation(ctx context.Context, userID int64) (bool, error) {
	deleted, err := pardonScript.Run(ctx, s.client,
		[]string{counterKey(userID), userIDKey(userID)},
		usernameKeyPrefix,
	).Int64()
	if err != nil {
		return false, errors.Wrapf(err, "pardon %d", userID)
	}
	return deleted > 0, nil
}

func (s *ViolationStore) DeleteAllViolations(ctx context.Context) ([]int64, error) {
	raw, err := pardonAllScript.Run(ctx, s.client, nil,
		keyPrefix+"*", scanBatchSize, counterIDPattern,
	).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "pardon all")
	}

	ids := make([]int64, 0, len(raw))
	for _, value := range raw {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.getLogEntry().WithField("value", value).Warn("skipping malformed counter id")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
