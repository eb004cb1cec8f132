package historystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/galaxyguard/warden/automod/strikes"

	"github.com/redis/go-redis/v9"
)

var redisHistoryPrefix string = "history/"
var redisInfractionsSuffix string = "/infractions"
var redisRecentKey string = "history-recent"

// Appends in a single server-side step: clamps the timestamp to the last stored one, pushes the entry, and updates
// the summary fields from the resulting list length.
//
// KEYS: history hash, infraction list, recent index
// ARGV: now (ms), infraction timestamp (ms), infraction JSON, user ID
var appendScript = redis.NewScript(`
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')
local ts = tonumber(ARGV[2])
if ts < last then ts = last end
if redis.call('HEXISTS', KEYS[1], 'created') == 0 then
  redis.call('HSET', KEYS[1], 'created', ARGV[1], 'trust', '0')
end
local tsStr = string.format('%d', ts)
local n = redis.call('RPUSH', KEYS[2], tsStr .. ' ' .. ARGV[3])
redis.call('HSET', KEYS[1], 'total', n, 'last', tsStr)
redis.call('ZADD', KEYS[3], ts, ARGV[4])
return n
`)

// Histories are kept as a hash of summary fields plus a list of infraction entries. Timestamps are stored with
// millisecond precision.
type RedisHistoryStore struct {
	Client *redis.Client
	Now    func() time.Time
}

var _ HistoryStore = (*RedisHistoryStore)(nil)

func NewRedisHistoryStore(redisURL string) (*RedisHistoryStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rhs := RedisHistoryStore{
		Client: rdb,
		Now:    time.Now,
	}
	return &rhs, nil
}

func (s *RedisHistoryStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func historyKey(userID string) string {
	return redisHistoryPrefix + userID
}

func infractionsKey(userID string) string {
	return redisHistoryPrefix + userID + redisInfractionsSuffix
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *RedisHistoryStore) Get(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	// MULTI, so the hash and the list are read at the same point relative to appends
	multi := s.Client.TxPipeline()
	fieldsCmd := multi.HGetAll(ctx, historyKey(userID))
	entriesCmd := multi.LRange(ctx, infractionsKey(userID), 0, -1)
	if _, err := multi.Exec(ctx); err != nil {
		return nil, err
	}
	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, nil
	}

	h := strikes.History{UserID: userID}
	var err error
	if v, ok := fields["created"]; ok {
		if h.CreatedAt, err = parseMillis(v); err != nil {
			return nil, fmt.Errorf("parsing history created time: %w", err)
		}
	}
	if v, ok := fields["trust"]; ok {
		if h.TrustScore, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("parsing trust score: %w", err)
		}
	}
	if v, ok := fields["last"]; ok {
		last, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("parsing last infraction time: %w", err)
		}
		h.LastInfractionAt = &last
	}
	for _, entry := range entriesCmd.Val() {
		tsStr, raw, ok := strings.Cut(entry, " ")
		if !ok {
			return nil, fmt.Errorf("malformed infraction entry for %s", userID)
		}
		var inf strikes.Infraction
		if err := json.Unmarshal([]byte(raw), &inf); err != nil {
			return nil, fmt.Errorf("parsing infraction: %w", err)
		}
		if inf.Timestamp, err = parseMillis(tsStr); err != nil {
			return nil, fmt.Errorf("parsing infraction time: %w", err)
		}
		h.Infractions = append(h.Infractions, inf)
	}
	h.TotalInfractions = len(h.Infractions)
	return &h, nil
}

func (s *RedisHistoryStore) Create(ctx context.Context, userID string) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	key := historyKey(userID)
	multi := s.Client.TxPipeline()
	multi.HSetNX(ctx, key, "created", strconv.FormatInt(s.now().UnixMilli(), 10))
	multi.HSetNX(ctx, key, "trust", "0")
	if _, err := multi.Exec(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *RedisHistoryStore) AppendInfraction(ctx context.Context, userID string, inf strikes.Infraction) (*strikes.History, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	now := s.now()
	inf = prepareInfraction(inf, nil, now)
	raw, err := json.Marshal(inf)
	if err != nil {
		return nil, err
	}
	keys := []string{historyKey(userID), infractionsKey(userID), redisRecentKey}
	err = appendScript.Run(ctx, s.Client, keys, now.UnixMilli(), inf.Timestamp.UnixMilli(), string(raw), userID).Err()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *RedisHistoryStore) SetTrustScore(ctx context.Context, userID string, score float64) (*strikes.History, error) {
	if _, err := s.Create(ctx, userID); err != nil {
		return nil, err
	}
	err := s.Client.HSet(ctx, historyKey(userID), "trust", strconv.FormatFloat(score, 'f', -1, 64)).Err()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *RedisHistoryStore) ClearInfractions(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	multi := s.Client.TxPipeline()
	multi.Del(ctx, infractionsKey(userID))
	multi.HDel(ctx, historyKey(userID), "last")
	multi.ZRem(ctx, redisRecentKey, userID)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisHistoryStore) ListRecent(ctx context.Context, limit int) ([]*strikes.History, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.Client.ZRevRange(ctx, redisRecentKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*strikes.History, 0, len(ids))
	for _, id := range ids {
		h, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if h != nil {
			out = append(out, h)
		}
	}
	return out, nil
}
