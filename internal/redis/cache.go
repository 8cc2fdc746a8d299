package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carelink-chat/internal/profile"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type CacheConfig struct {
	ProfileTTL      time.Duration
	ConversationTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ProfileTTL:      10 * time.Minute,
		ConversationTTL: 5 * time.Minute,
	}
}

// CacheStore backs both profile.Cache and proxy.ParticipantCache. Values are JSON.
type CacheStore struct {
	client goredis.UniversalClient
	config CacheConfig
}

func NewCacheStore(client goredis.UniversalClient, config CacheConfig) *CacheStore {
	return &CacheStore{client: client, config: config}
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func participantsKey(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String() + ":participants"
}

// GetProfiles returns the cached subset of ids. Misses and entries that no longer decode
// are left out so the resolver falls through to the directory for them.
func (c *CacheStore) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]profile.Profile, error) {
	found := make(map[uuid.UUID]profile.Profile, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return found, fmt.Errorf("profile cache get: %w", err)
	}

	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var p profile.Profile
		if json.Unmarshal([]byte(s), &p) != nil || p.ID != ids[i] {
			continue
		}
		found[p.ID] = p
	}
	return found, nil
}

// SetProfiles writes every resolved profile in one pipeline. Placeholders are skipped so a
// directory outage never gets cached.
func (c *CacheStore) SetProfiles(ctx context.Context, profiles []profile.Profile) error {
	_, err := c.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, p := range profiles {
			if p.IsPlaceholder() {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			pipe.Set(ctx, profileKey(p.ID), data, c.config.ProfileTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("profile cache set: %w", err)
	}
	return nil
}

// GetConversationParticipants returns nil, nil on a miss.
func (c *CacheStore) GetConversationParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	data, err := c.client.Get(ctx, participantsKey(conversationID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("participant cache get: %w", err)
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		// A corrupt entry reads as a miss and is overwritten by the next Set.
		return nil, nil
	}
	return ids, nil
}

func (c *CacheStore) SetConversationParticipants(ctx context.Context, conversationID uuid.UUID, participantIDs []uuid.UUID) error {
	data, err := json.Marshal(participantIDs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, participantsKey(conversationID), data, c.config.ConversationTTL).Err()
}

func (c *CacheStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
