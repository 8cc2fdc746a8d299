package profile_test

import (
	"context"
	"errors"
	"testing"

	"carelink-chat/internal/mocks"
	"carelink-chat/internal/profile"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	patient = profile.Profile{ID: uuid.MustParse("11111111-1111-4111-8111-111111111111"), DisplayName: "Pat Jordan", Kind: profile.KindPatient}
	mentorA = profile.Profile{ID: uuid.MustParse("22222222-2222-4222-8222-222222222221"), DisplayName: "Morgan Lee", Kind: profile.KindMentor}
	mentorB = profile.Profile{ID: uuid.MustParse("22222222-2222-4222-8222-222222222222"), DisplayName: "Alex Kim", Kind: profile.KindMentor}
	staff   = profile.Profile{ID: uuid.MustParse("33333333-3333-4333-8333-333333333333"), DisplayName: "Care Desk", Kind: profile.KindAccount}
)

func TestResolver_CacheHitSkipsDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	cache := mocks.NewMockCache(ctrl)
	r := profile.NewResolver(dir, cache, nil)

	cache.EXPECT().GetProfiles(gomock.Any(), []uuid.UUID{patient.ID}).
		Return(map[uuid.UUID]profile.Profile{patient.ID: patient}, nil)

	assert.Equal(t, patient, r.Resolve(context.Background(), patient.ID))
}

func TestResolver_MissesAreLookedUpAndCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	cache := mocks.NewMockCache(ctrl)
	r := profile.NewResolver(dir, cache, nil)
	unknown := uuid.New()

	cache.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).
		Return(map[uuid.UUID]profile.Profile{patient.ID: patient}, nil)
	dir.EXPECT().Lookup(gomock.Any(), []uuid.UUID{mentorA.ID, unknown}).
		Return(map[uuid.UUID]profile.Profile{mentorA.ID: mentorA}, nil)
	cache.EXPECT().SetProfiles(gomock.Any(), []profile.Profile{mentorA}).Return(nil)

	got := r.ResolveMany(context.Background(), []uuid.UUID{patient.ID, mentorA.ID, unknown, patient.ID, uuid.Nil})
	require.Len(t, got, 3)
	assert.Equal(t, mentorA, got[mentorA.ID])
	assert.True(t, got[unknown].IsPlaceholder())
	assert.Equal(t, profile.UnknownDisplayName, got[unknown].DisplayName)
}

func TestResolver_DirectoryFailureYieldsPlaceholders(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	cache := mocks.NewMockCache(ctrl)
	r := profile.NewResolver(dir, cache, nil)

	cache.EXPECT().GetProfiles(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	dir.EXPECT().Lookup(gomock.Any(), []uuid.UUID{mentorA.ID}).Return(nil, errors.New("db down"))

	p := r.Resolve(context.Background(), mentorA.ID)
	assert.Equal(t, profile.Placeholder(mentorA.ID), p)
}

func TestResolver_Contacts(t *testing.T) {
	ctx := context.Background()
	dir := profile.NewStaticDirectory(patient, mentorA, mentorB, staff)
	r := profile.NewResolver(dir, nil, nil)

	t.Run("patients see mentors", func(t *testing.T) {
		got := r.Contacts(ctx, patient.ID, 0)
		assert.Equal(t, []profile.Profile{mentorB, mentorA}, got)
	})

	t.Run("mentors see patients", func(t *testing.T) {
		assert.Equal(t, []profile.Profile{patient}, r.Contacts(ctx, mentorA.ID, 10))
	})

	t.Run("others see both, patients first", func(t *testing.T) {
		assert.Equal(t, []profile.Profile{patient, mentorB}, r.Contacts(ctx, staff.ID, 2))
	})

	t.Run("directory errors yield an empty list", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		failing := mocks.NewMockDirectory(ctrl)
		failing.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(map[uuid.UUID]profile.Profile{}, nil)
		failing.EXPECT().Contacts(gomock.Any(), patient.ID, profile.KindUnknown, 50).Return(nil, errors.New("db down"))

		got := profile.NewResolver(failing, nil, nil).Contacts(ctx, patient.ID, 0)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestCanContact(t *testing.T) {
	assert.True(t, profile.CanContact(profile.KindPatient, profile.KindMentor))
	assert.False(t, profile.CanContact(profile.KindPatient, profile.KindPatient))
	assert.True(t, profile.CanContact(profile.KindMentor, profile.KindPatient))
	assert.False(t, profile.CanContact(profile.KindMentor, profile.KindAccount))
	assert.True(t, profile.CanContact(profile.KindAccount, profile.KindMentor))
	assert.False(t, profile.CanContact(profile.KindUnknown, profile.KindAccount))
}
