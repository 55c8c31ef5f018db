package viewstate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists snapshots in two scopes, mirroring the browser's
// sessionStorage/localStorage split: a per-tab copy with a TTL and a durable
// cross-session copy per user. All writes for a user funnel through here.
type Store struct {
	client *redis.Client
	tabTTL time.Duration
}

// NewStore creates a snapshot store from a Redis URL.
func NewStore(redisURL string, tabTTL time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client, tabTTL: tabTTL}, nil
}

// NewStoreWithClient creates a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client, tabTTL time.Duration) *Store {
	return &Store{client: client, tabTTL: tabTTL}
}

func tabKey(userID, tabID string) string {
	return "viewstate:tab:" + userID + ":" + tabID
}

func profileKey(userID string) string {
	return "viewstate:profile:" + userID
}

// Save writes the snapshot to both scopes. The per-tab copy expires with
// the tab TTL; the cross-session copy persists until sign-out.
func (s *Store) Save(ctx context.Context, userID, tabID string, sn Snapshot) error {
	data, err := Encode(sn)
	if err != nil {
		return err
	}
	if tabID != "" {
		if err := s.client.Set(ctx, tabKey(userID, tabID), data, s.tabTTL).Err(); err != nil {
			return fmt.Errorf("save tab snapshot: %w", err)
		}
	}
	if err := s.client.Set(ctx, profileKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("save profile snapshot: %w", err)
	}
	return nil
}

// LoadTab reads the per-tab snapshot. Missing or undecodable blobs return
// ok=false; corruption is logged and otherwise ignored so callers always
// degrade to defaults.
func (s *Store) LoadTab(ctx context.Context, userID, tabID string) (Snapshot, bool) {
	return s.load(ctx, tabKey(userID, tabID))
}

// LoadProfile reads the cross-session snapshot.
func (s *Store) LoadProfile(ctx context.Context, userID string) (Snapshot, bool) {
	return s.load(ctx, profileKey(userID))
}

// Load returns the newer of the two scopes. The browser original let
// whichever effect wrote last win by accident; comparing SavedAt makes the
// choice deterministic when two tabs raced.
func (s *Store) Load(ctx context.Context, userID, tabID string) (Snapshot, bool) {
	tab, tabOK := s.LoadTab(ctx, userID, tabID)
	profile, profileOK := s.LoadProfile(ctx, userID)
	switch {
	case tabOK && profileOK:
		if profile.SavedAt.After(tab.SavedAt) {
			return profile, true
		}
		return tab, true
	case tabOK:
		return tab, true
	case profileOK:
		return profile, true
	}
	return Snapshot{}, false
}

func (s *Store) load(ctx context.Context, key string) (Snapshot, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false
	}
	if err != nil {
		log.Printf("viewstate: read %s: %v", key, err)
		return Snapshot{}, false
	}
	sn, err := Decode(data)
	if err != nil {
		log.Printf("viewstate: corrupt snapshot at %s: %v", key, err)
		return Snapshot{}, false
	}
	return sn, true
}

// Clear removes both scopes for a user; called on sign-out. Only the
// calling tab's key can be removed, remaining tab keys age out via TTL.
func (s *Store) Clear(ctx context.Context, userID, tabID string) error {
	keys := []string{profileKey(userID)}
	if tabID != "" {
		keys = append(keys, tabKey(userID, tabID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// Ping checks Redis reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
