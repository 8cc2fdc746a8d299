//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile.go -package=mocks

// Package profile resolves participant ids into display data from the read-only directory.
package profile

import (
	"context"

	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Kind is the directory variant a participant was found in.
type Kind string

const (
	KindPatient Kind = "patient"
	KindMentor  Kind = "mentor"
	KindAccount Kind = "account"
	KindUnknown Kind = "unknown"
)

const UnknownDisplayName = "Unknown User"

type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Kind        Kind      `json:"kind"`
}

// Placeholder is returned for ids the directory does not know.
func Placeholder(id uuid.UUID) Profile {
	return Profile{ID: id, DisplayName: UnknownDisplayName, Kind: KindUnknown}
}

func (p Profile) IsPlaceholder() bool {
	return p.Kind == KindUnknown
}

// Directory is the read-only participant directory.
type Directory interface {
	// Lookup returns the profiles found; missing ids are simply absent.
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
	// Contacts lists profiles the user may start a conversation with.
	Contacts(ctx context.Context, userID uuid.UUID, kind Kind, limit int) ([]Profile, error)
}

type Cache interface {
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
	SetProfiles(ctx context.Context, profiles []Profile) error
}

type Resolver struct {
	directory Directory
	cache     Cache
	log       *logger.Logger
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(directory Directory, cache Cache, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{directory: directory, cache: cache, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) Profile {
	return r.ResolveMany(ctx, []uuid.UUID{id})[id]
}

// ResolveMany never fails: directory errors and misses yield placeholders, which are not cached.
func (r *Resolver) ResolveMany(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]Profile {
	ids = lo.Uniq(lo.Filter(ids, func(id uuid.UUID, _ int) bool { return id != uuid.Nil }))
	out := make(map[uuid.UUID]Profile, len(ids))

	missing := ids
	if r.cache != nil && len(ids) > 0 {
		cached, err := r.cache.GetProfiles(ctx, ids)
		if err != nil {
			r.log.WithContext(ctx).Warnf("profile cache read failed: %v", err)
		}
		for id, p := range cached {
			out[id] = p
		}
		missing = lo.Filter(ids, func(id uuid.UUID, _ int) bool {
			_, ok := out[id]
			return !ok
		})
	}

	if len(missing) > 0 {
		found, err := r.directory.Lookup(ctx, missing)
		if err != nil {
			r.log.WithContext(ctx).Errorf("profile lookup failed for %d ids: %v", len(missing), err)
			found = nil
		}
		fresh := make([]Profile, 0, len(found))
		for _, id := range missing {
			if p, ok := found[id]; ok {
				out[id] = p
				fresh = append(fresh, p)
				continue
			}
			out[id] = Placeholder(id)
		}
		if r.cache != nil && len(fresh) > 0 {
			if err := r.cache.SetProfiles(ctx, fresh); err != nil {
				r.log.WithContext(ctx).Warnf("profile cache write failed: %v", err)
			}
		}
	}
	return out
}

// Contacts lists counterparts for userID. Patients see mentors, mentors see patients and
// anyone else sees both. Errors yield an empty list.
func (r *Resolver) Contacts(ctx context.Context, userID uuid.UUID, limit int) []Profile {
	if limit <= 0 {
		limit = 50
	}
	self := r.Resolve(ctx, userID)
	contacts, err := r.directory.Contacts(ctx, userID, self.Kind, limit)
	if err != nil {
		r.log.WithContext(ctx).Errorf("contact lookup failed: %v", err)
		return []Profile{}
	}
	return lo.Filter(contacts, func(p Profile, _ int) bool { return p.ID != userID })
}
