package services

import (
	"context"
	"testing"

	"carelink-chat/internal/profile"
	"carelink-chat/internal/proxy"
	"carelink-chat/internal/repository/memstore"

	"github.com/google/uuid"
)

var (
	patientID  = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	mentorID   = uuid.MustParse("22222222-2222-4222-8222-222222222221")
	strangerID = uuid.MustParse("44444444-4444-4444-8444-444444444444")
)

type testEnv struct {
	db            *memstore.DB
	conversations *ConversationService
	messages      *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memstore.New()
	dir := profile.NewStaticDirectory(
		profile.Profile{ID: patientID, DisplayName: "Pat Jordan", Kind: profile.KindPatient},
		profile.Profile{ID: mentorID, DisplayName: "Morgan Lee", Kind: profile.KindMentor},
	)
	resolver := profile.NewResolver(dir, nil, nil)
	access := proxy.NewAccessControl(db.Conversations(), nil, nil)
	return &testEnv{
		db:            db,
		conversations: NewConversationService(db.Conversations(), db.Messages(), resolver, nil),
		messages:      NewMessageService(db.Messages(), db.Conversations(), db.Outbox(), access, nil),
	}
}

func (e *testEnv) conversation(t *testing.T) uuid.UUID {
	t.Helper()
	c, _, err := e.conversations.FindOrCreate(context.Background(), patientID, mentorID, nil)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return c.ID
}
