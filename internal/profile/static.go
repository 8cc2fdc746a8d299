package profile

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// StaticDirectory serves a fixed set of profiles. Used by the in-memory store driver.
type StaticDirectory struct {
	profiles map[uuid.UUID]Profile
}

func NewStaticDirectory(profiles ...Profile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[uuid.UUID]Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *StaticDirectory) Lookup(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	out := make(map[uuid.UUID]Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (d *StaticDirectory) Contacts(_ context.Context, userID uuid.UUID, kind Kind, limit int) ([]Profile, error) {
	var out []Profile
	for _, p := range d.profiles {
		if p.ID != userID && CanContact(kind, p.Kind) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return rank(out[i].Kind) < rank(out[j].Kind)
		}
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func rank(k Kind) int {
	for _, s := range DefaultSources {
		if s.Kind == k {
			return s.Rank
		}
	}
	return len(DefaultSources) + 1
}
