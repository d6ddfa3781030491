// Package cache はプロフィールの読み取りキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hitoshi/learnhub/internal/model"
)

// ProfileCache はプロフィールのキャッシュインターフェース。
// Getはキャッシュミス時にnil, nilを返す。
// SetはUpdatedAtがより新しいエントリを古い値で上書きしない。
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Set(ctx context.Context, profile *model.Profile) error
	Invalidate(ctx context.Context, userID string) error
}

const keyPrefix = "learnhub:profile:"

// maxSetAttempts はWATCH中にキーが変更された場合の再試行回数。
const maxSetAttempts = 3

// profileKey はユーザーIDに対応するキャッシュキーを返す。
func profileKey(userID string) string {
	return keyPrefix + userID
}

// IsStale はincomingがcachedより古い版であればtrueを返す。
// 同時刻の場合は上書きを許す。
func IsStale(cached, incoming *model.Profile) bool {
	if cached == nil {
		return false
	}
	return cached.UpdatedAt.After(incoming.UpdatedAt)
}

// cachedProfile はRedisに保存するJSON表現。
// モデルにJSONタグを持たせないため、キャッシュ専用の形を定義する。
type cachedProfile struct {
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	Country     string     `json:"country"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func encodeProfile(p *model.Profile) ([]byte, error) {
	return json.Marshal(cachedProfile{
		UserID:      p.UserID,
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		DateOfBirth: p.DateOfBirth,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
}

func decodeProfile(raw []byte) (*model.Profile, error) {
	var c cachedProfile
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &model.Profile{
		UserID:      c.UserID,
		FullName:    c.FullName,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		City:        c.City,
		State:       c.State,
		Country:     c.Country,
		DateOfBirth: c.DateOfBirth,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

// RedisProfileCache はRedisを使用したProfileCache。
type RedisProfileCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisProfileCache はREDIS_URL形式の接続URLからクライアントを生成し、疎通を確認する。
func NewRedisProfileCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisProfileCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisProfileCache{rdb: rdb, ttl: ttl}, nil
}

// Get はキャッシュからプロフィールを取得する。キャッシュミスはnil, nil。
func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*model.Profile, error) {
	raw, err := c.rdb.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached profile: %w", err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return p, nil
}

// Set はプロフィールをTTL付きで保存する。
// WATCHで既存エントリと比較し、既存の方が新しければ何もしない。
func (c *RedisProfileCache) Set(ctx context.Context, p *model.Profile) error {
	raw, err := encodeProfile(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	key := profileKey(p.UserID)

	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			// 壊れたエントリは上書きする
			if existing, derr := decodeProfile(current); derr == nil && IsStale(existing, p) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}

	for range maxSetAttempts {
		err = c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// Invalidate はキャッシュエントリを削除する。存在しない場合もエラーにしない。
func (c *RedisProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, profileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached profile: %w", err)
	}
	return nil
}

// Close はRedisクライアントを閉じる。
func (c *RedisProfileCache) Close() error {
	return c.rdb.Close()
}

// NopProfileCache は常にキャッシュミスとなるProfileCache。
// REDIS_URL未設定時に使用する。
type NopProfileCache struct{}

func (NopProfileCache) Get(context.Context, string) (*model.Profile, error) { return nil, nil }
func (NopProfileCache) Set(context.Context, *model.Profile) error         { return nil }
func (NopProfileCache) Invalidate(context.Context, string) error          { return nil }

// compile-time interface check
var (
	_ ProfileCache = (*RedisProfileCache)(nil)
	_ ProfileCache = NopProfileCache{}
)
