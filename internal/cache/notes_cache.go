package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mirkodev/notes-service/internal/observability"

	"github.com/redis/go-redis/v9"
)

// NotesCache is a read-through cache for note listings, keyed by a
// fingerprint of the query parameters. Every note mutation invalidates the
// owner's keys. Cache failures degrade to database reads; they are logged
// and never surfaced to callers.
type NotesCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewNotesCache(client redis.UniversalClient, ttl time.Duration) *NotesCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NotesCache{client: client, ttl: ttl}
}

// Fingerprint condenses the listing parameters into a bounded cache key
// segment. Tag order does not change the fingerprint.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:8])
}

func UserNotesKey(userID uint, fingerprint string) string {
	return fmt.Sprintf("user_notes:%d:%s", userID, fingerprint)
}

func SharedNotesKey(userID uint, fingerprint string) string {
	return fmt.Sprintf("shared_notes:%d:%s", userID, fingerprint)
}

func NoteKey(noteID uint) string {
	return "note:" + strconv.FormatUint(uint64(noteID), 10)
}

func (c *NotesCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.RecordCacheEvent("miss")
		return false
	}
	if err != nil {
		observability.RecordCacheEvent("error")
		slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		observability.RecordCacheEvent("decode_error")
		slog.WarnContext(ctx, "cache decode failed", "key", key, "error", err)
		return false
	}
	observability.RecordCacheEvent("hit")
	return true
}

func (c *NotesCache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		observability.RecordCacheEvent("error")
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// InvalidateUser drops every cached listing that could contain one of the
// user's notes: the user's own listings plus all shared listings, since a
// mutated note may appear in any target user's shared view. Uses SCAN, not
// KEYS, to avoid blocking the server.
func (c *NotesCache) InvalidateUser(ctx context.Context, userID uint) {
	c.deleteByPattern(ctx, fmt.Sprintf("user_notes:%d:*", userID))
	c.deleteByPattern(ctx, "shared_notes:*")
}

func (c *NotesCache) InvalidateNote(ctx context.Context, noteID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, NoteKey(noteID)).Err(); err != nil {
		observability.RecordCacheEvent("error")
		slog.WarnContext(ctx, "cache invalidate failed", "note_id", noteID, "error", err)
	}
}

func (c *NotesCache) deleteByPattern(ctx context.Context, pattern string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		observability.RecordCacheEvent("error")
		slog.WarnContext(ctx, "cache scan failed", "pattern", pattern, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		observability.RecordCacheEvent("error")
		slog.WarnContext(ctx, "cache invalidate failed", "pattern", pattern, "error", err)
		return
	}
	observability.RecordCacheEvent("invalidate")
}
