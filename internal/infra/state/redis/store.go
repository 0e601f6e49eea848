package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/repository"
)

// auditMax caps the audit trail independently of the history cap.
const auditMax = 1000

// Store is the Redis implementation of repository.Store. All cross-process
// state lives behind this type; every method is a single atomic command or a
// pipeline of commands that do not need cross-key atomicity.
type Store struct {
	client     *redis.Client
	keyPrefix  string
	historyMax int
}

// NewStore creates a Store. keyPrefix defaults to "chat:" and historyMax to
// 500 when unset.
func NewStore(client *redis.Client, keyPrefix string, historyMax int) *Store {
	if client == nil {
		panic("redis client cannot be nil for Store")
	}
	if keyPrefix == "" {
		keyPrefix = "chat:"
	}
	if historyMax <= 0 {
		historyMax = 500
	}
	return &Store{client: client, keyPrefix: keyPrefix, historyMax: historyMax}
}

func (s *Store) roomsKey() string { return s.keyPrefix + "rooms" }

func (s *Store) roomUsersKey(room string) string {
	return fmt.Sprintf("%sroom:%s:users", s.keyPrefix, room)
}

func (s *Store) roomMetaKey(room string) string {
	return fmt.Sprintf("%sroom:%s", s.keyPrefix, room)
}

func (s *Store) userKey(userID string) string {
	return fmt.Sprintf("%suser:%s", s.keyPrefix, userID)
}

func (s *Store) historyKey(room string) string {
	return fmt.Sprintf("%sroom:%s:history", s.keyPrefix, room)
}

func (s *Store) auditKey(room string) string {
	return fmt.Sprintf("%saudit:%s", s.keyPrefix, room)
}

func (s *Store) banKey(room, userID string) string {
	return fmt.Sprintf("%sroom:%s:ban:%s", s.keyPrefix, room, userID)
}

func (s *Store) timeoutKey(room, userID string) string {
	return fmt.Sprintf("%sroom:%s:timeout:%s", s.keyPrefix, room, userID)
}

func (s *Store) holdKey(room, nameLower string) string {
	return fmt.Sprintf("%sroom:%s:name:%s:hold", s.keyPrefix, room, nameLower)
}

// CreateHold reserves the name with SET NX EX; the expiry bounds how long a
// join token can wait before the handshake.
func (s *Store) CreateHold(ctx context.Context, room, nameLower, userID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.holdKey(room, nameLower), userID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to create hold for %q in room %q: %w", nameLower, room, err)
	}
	return ok, nil
}

// ConsumeHold uses GETDEL so that reading the owner and releasing the hold is
// one atomic step; two concurrent handshakes can never both observe the same
// live hold.
func (s *Store) ConsumeHold(ctx context.Context, room, nameLower string) (string, error) {
	owner, err := s.client.GetDel(ctx, s.holdKey(room, nameLower)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to consume hold for %q in room %q: %w", nameLower, room, err)
	}
	return owner, nil
}

func (s *Store) JoinRoom(ctx context.Context, room string, user domain.UserRef) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.roomsKey(), room)
	pipe.SAdd(ctx, s.roomUsersKey(room), user.ID)
	pipe.HSet(ctx, s.userKey(user.ID), map[string]interface{}{
		"name":    user.Name,
		"room":    room,
		"sinceTs": now,
		"lastTs":  now,
		"msg":     "0",
	})
	pipe.HSetNX(ctx, s.roomMetaKey(room), "sinceTs", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to record membership for %s in room %q: %w", user.ID, room, err)
	}
	return nil
}

func (s *Store) LeaveRoom(ctx context.Context, room, userID string) error {
	if err := s.client.SRem(ctx, s.roomUsersKey(room), userID).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove %s from room %q: %w", userID, room, err)
	}
	return nil
}

func (s *Store) TouchUser(ctx context.Context, userID string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, s.userKey(userID), "msg", 1)
	pipe.HSet(ctx, s.userKey(userID), "lastTs", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to touch user %s: %w", userID, err)
	}
	return nil
}

// Rooms builds the roster from the room catalog set plus each room's
// membership cardinality and meta hash, sorted by occupancy then name.
func (s *Store) Rooms(ctx context.Context) ([]domain.RoomInfo, error) {
	names, err := s.client.SMembers(ctx, s.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list rooms: %w", err)
	}
	if len(names) == 0 {
		return []domain.RoomInfo{}, nil
	}

	pipe := s.client.Pipeline()
	occCmds := make([]*redis.IntCmd, len(names))
	sinceCmds := make([]*redis.StringCmd, len(names))
	slowCmds := make([]*redis.StringCmd, len(names))
	for i, name := range names {
		occCmds[i] = pipe.SCard(ctx, s.roomUsersKey(name))
		sinceCmds[i] = pipe.HGet(ctx, s.roomMetaKey(name), "sinceTs")
		slowCmds[i] = pipe.HGet(ctx, s.roomMetaKey(name), "slow")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: failed to load room roster: %w", err)
	}

	rooms := make([]domain.RoomInfo, 0, len(names))
	for i, name := range names {
		since, _ := strconv.ParseInt(sinceCmds[i].Val(), 10, 64)
		slow := slowCmds[i].Val()
		if slow == "" {
			slow = domain.SlowModeOff
		}
		rooms = append(rooms, domain.RoomInfo{
			Name:      name,
			Occupants: occCmds[i].Val(),
			SinceTS:   since,
			Slow:      slow,
		})
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Occupants != rooms[j].Occupants {
			return rooms[i].Occupants > rooms[j].Occupants
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

func (s *Store) RoomUsers(ctx context.Context, room string) ([]domain.UserInfo, error) {
	ids, err := s.client.SMembers(ctx, s.roomUsersKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list users for room %q: %w", room, err)
	}
	if len(ids) == 0 {
		return []domain.UserInfo{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.userKey(id), "name", "sinceTs", "lastTs", "msg")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: failed to load users for room %q: %w", room, err)
	}

	users := make([]domain.UserInfo, 0, len(ids))
	for i, id := range ids {
		vals := cmds[i].Val()
		users = append(users, domain.UserInfo{
			ID:      id,
			Name:    sliceString(vals, 0),
			SinceTS: sliceInt(vals, 1),
			LastTS:  sliceInt(vals, 2),
			Msg:     sliceInt(vals, 3),
		})
	}
	return users, nil
}

func sliceString(vals []interface{}, i int) string {
	if i >= len(vals) || vals[i] == nil {
		return ""
	}
	v, _ := vals[i].(string)
	return v
}

func sliceInt(vals []interface{}, i int) int64 {
	n, _ := strconv.ParseInt(sliceString(vals, i), 10, 64)
	return n
}

func (s *Store) SlowMode(ctx context.Context, room string) (time.Duration, error) {
	v, err := s.client.HGet(ctx, s.roomMetaKey(room), "slow").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: failed to get slow mode for room %q: %w", room, err)
	}
	return domain.ParseSlowMode(v), nil
}

func (s *Store) SetSlowMode(ctx context.Context, room, value string) error {
	if err := s.client.HSet(ctx, s.roomMetaKey(room), "slow", value).Err(); err != nil {
		return fmt.Errorf("redis: failed to set slow mode for room %q: %w", room, err)
	}
	return nil
}

func (s *Store) IsBanned(ctx context.Context, room, userID string) (bool, error) {
	_, err := s.client.Get(ctx, s.banKey(room, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: failed to check ban for %s in room %q: %w", userID, room, err)
	}
	return true, nil
}

// Ban has no expiry; there is no unban operation in this core.
func (s *Store) Ban(ctx context.Context, room, userID string) error {
	if err := s.client.Set(ctx, s.banKey(room, userID), "1", 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to ban %s in room %q: %w", userID, room, err)
	}
	return nil
}

// InTimeout relies on the key's remaining TTL, so the penalty expires
// store-side regardless of process restarts.
func (s *Store) InTimeout(ctx context.Context, room, userID string) (bool, error) {
	ttl, err := s.client.PTTL(ctx, s.timeoutKey(room, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check timeout for %s in room %q: %w", userID, room, err)
	}
	return ttl > 0, nil
}

func (s *Store) Timeout(ctx context.Context, room, userID string, d time.Duration) error {
	if err := s.client.Set(ctx, s.timeoutKey(room, userID), "1", d).Err(); err != nil {
		return fmt.Errorf("redis: failed to time out %s in room %q: %w", userID, room, err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, room string, msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal history entry %s: %w", msg.ID, err)
	}
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.historyKey(room), raw)
	pipe.LTrim(ctx, s.historyKey(room), 0, int64(s.historyMax-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append history for room %q: %w", room, err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = s.historyMax
	}
	raws, err := s.client.LRange(ctx, s.historyKey(room), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read history for room %q: %w", room, err)
	}
	items := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			logrus.WithError(err).WithField("room", room).Warn("Skipping undecodable history entry")
			continue
		}
		items = append(items, msg)
	}
	return items, nil
}

func (s *Store) AppendAudit(ctx context.Context, room string, entry domain.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal audit entry: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.auditKey(room), raw)
	pipe.LTrim(ctx, s.auditKey(room), 0, auditMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to append audit for room %q: %w", room, err)
	}
	return nil
}

func (s *Store) Audit(ctx context.Context, room string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = auditMax
	}
	raws, err := s.client.LRange(ctx, s.auditKey(room), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read audit for room %q: %w", room, err)
	}
	entries := make([]domain.AuditEntry, 0, len(raws))
	for _, raw := range raws {
		var entry domain.AuditEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logrus.WithError(err).WithField("room", room).Warn("Skipping undecodable audit entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CountRequest pairs INCR with EXPIRE in one pipeline; INCR itself is atomic,
// the pipeline just keeps the window refresh close to it.
func (s *Store) CountRequest(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, s.keyPrefix+key)
	pipe.Expire(ctx, s.keyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: rate limit pipeline failed for key %q: %w", key, err)
	}
	return incr.Val(), nil
}
