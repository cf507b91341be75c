package utils

import (
	"context"
	"encoding/json"
	"time"
)

// The redis cache is a pure view-layer cache over community and post reads.
// The store's persisted fields stay authoritative: every membership change
// and every reconciliation correction invalidates the affected keys instead
// of writing counts into the cache.

const defaultCacheTTL = 10 * time.Minute

const (
	// CommunityListKey caches the community index, member counts included.
	CommunityListKey = "cache:communities:list"
	// communityKeyPrefix precedes per-community detail and member listings.
	communityKeyPrefix = "cache:communities:"
	// PostListPrefix precedes feed pages keyed by sort and page.
	PostListPrefix = "cache:posts:list:"
)

// CommunityKey is the cache key for one community's detail payload.
func CommunityKey(id string) string {
	return communityKeyPrefix + id
}

// CommunityMembersKey is the cache key for one community's member listing.
func CommunityMembersKey(id string) string {
	return communityKeyPrefix + id + ":members"
}

// CacheGetBytes returns cached bytes for a key, missing on any redis error.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it under key.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateCommunity drops the community list plus the community's detail
// and member-listing entries. Called after join, leave and reconciliation.
func InvalidateCommunity(id string) {
	InvalidateByPrefix(communityKeyPrefix + id)
	deleteKeys(CommunityListKey)
}

// InvalidateByPrefix deletes keys matching the prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bound rounds, a stale entry just expires later
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}

func deleteKeys(keys ...string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = rc.Del(ctx, keys...).Err()
}
