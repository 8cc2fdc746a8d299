package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/internal/profile"
	"carelink-chat/internal/repository"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCreate is a store whose participant insert fails inside the creation transaction.
type failingCreate struct {
	repository.ConversationRepository
}

func (failingCreate) CreateIfAbsent(context.Context, repository.ConversationSeed) (conversation.Conversation, bool, error) {
	return conversation.Conversation{}, false, fmt.Errorf("%w: insert participant: duplicate key value", chat_errors.ErrCreationFailed)
}

func TestConversationService_FindOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the same conversation for either argument order", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		first, created, err := env.conversations.FindOrCreate(ctx, patientID, mentorID, nil)
		req.NoError(err)
		req.True(created)

		second, created, err := env.conversations.FindOrCreate(ctx, mentorID, patientID, nil)
		req.NoError(err)
		req.False(created)
		req.Equal(first.ID, second.ID)
	})

	t.Run("concurrent callers share one conversation", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		const callers = 16
		ids := make([]uuid.UUID, callers)
		createdCount := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := patientID, mentorID
				if i%2 == 1 {
					a, b = b, a
				}
				c, created, err := env.conversations.FindOrCreate(ctx, a, b, nil)
				if err != nil {
					t.Errorf("find or create: %v", err)
					return
				}
				mu.Lock()
				ids[i] = c.ID
				if created {
					createdCount++
				}
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		req.Equal(1, createdCount)
		req.Len(lo.Uniq(ids), 1)

		list, err := env.conversations.GetUserConversations(ctx, patientID)
		req.NoError(err)
		req.Len(list, 1)
	})

	t.Run("creation seeds participants, the started message and outbox rows", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		c, _, err := env.conversations.FindOrCreate(ctx, patientID, mentorID, nil)
		req.NoError(err)
		req.Len(c.Participants, 2)
		req.True(c.HasParticipant(patientID))
		req.True(c.HasParticipant(mentorID))

		msgs, err := env.messages.List(ctx, c.ID, patientID, 0, 0)
		req.NoError(err)
		req.Len(msgs, 1)
		req.Equal(message.KindSystem, msgs[0].Kind)
		req.Equal(message.ConversationStartedContent, msgs[0].Content)
		req.Equal(patientID, msgs[0].SenderID)

		types := lo.Map(env.db.OutboxEvents(), func(e outbox.OutboxEvent, _ int) string { return e.EventType })
		req.Equal([]string{
			string(events.EventParticipantAdded),
			string(events.EventParticipantAdded),
			string(events.EventMessageNew),
		}, types)
	})

	t.Run("appointment scope yields a separate conversation", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		appt := "appt-42"

		plain, _, err := env.conversations.FindOrCreate(ctx, patientID, mentorID, nil)
		req.NoError(err)
		scoped, created, err := env.conversations.FindOrCreate(ctx, mentorID, patientID, &appt)
		req.NoError(err)
		req.True(created)
		req.NotEqual(plain.ID, scoped.ID)
		req.NotNil(scoped.AppointmentID)
		req.Equal(appt, *scoped.AppointmentID)

		again, created, err := env.conversations.FindOrCreate(ctx, patientID, mentorID, &appt)
		req.NoError(err)
		req.False(created)
		req.Equal(scoped.ID, again.ID)
	})

	t.Run("creation failure reaches the caller and leaves nothing behind", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		svc := NewConversationService(failingCreate{env.db.Conversations()}, env.db.Messages(), nil, nil)

		c, created, err := svc.FindOrCreate(ctx, patientID, mentorID, nil)
		req.ErrorIs(err, chat_errors.ErrCreationFailed)
		req.False(created)
		req.Equal(uuid.Nil, c.ID)

		list, err := env.conversations.GetUserConversations(ctx, patientID)
		req.NoError(err)
		req.Empty(list)
		req.Empty(env.db.OutboxEvents())
	})

	t.Run("rejects a conversation with oneself", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.conversations.FindOrCreate(ctx, patientID, patientID, nil)
		require.ErrorIs(t, err, chat_errors.ErrInvalidParticipants)
	})

	t.Run("rejects a missing user id", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.conversations.FindOrCreate(ctx, uuid.Nil, mentorID, nil)
		require.ErrorIs(t, err, chat_errors.ErrUnauthenticated)
	})
}

func TestConversationService_GetConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves participant profiles", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)

		view, err := env.conversations.GetConversation(ctx, id, mentorID)
		req.NoError(err)
		req.Len(view.Participants, 2)
		names := lo.Map(view.Participants, func(p ParticipantView, _ int) string { return p.Profile.DisplayName })
		req.ElementsMatch([]string{"Pat Jordan", "Morgan Lee"}, names)
		req.Equal(int64(1), view.UnreadCount)
	})

	t.Run("unknown participants become placeholders", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		c, _, err := env.conversations.FindOrCreate(ctx, patientID, strangerID, nil)
		req.NoError(err)

		view, err := env.conversations.GetConversation(ctx, c.ID, patientID)
		req.NoError(err)
		other, ok := lo.Find(view.Participants, func(p ParticipantView) bool { return p.UserID == strangerID })
		req.True(ok)
		req.Equal(profile.UnknownDisplayName, other.Profile.DisplayName)
		req.True(other.Profile.IsPlaceholder())
	})

	t.Run("non participants are rejected", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.conversation(t)
		_, err := env.conversations.GetConversation(ctx, id, strangerID)
		require.ErrorIs(t, err, chat_errors.ErrNotAParticipant)
	})

	t.Run("missing conversation", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.conversations.GetConversation(ctx, uuid.New(), patientID)
		require.ErrorIs(t, err, chat_errors.ErrConversationNotFound)
	})
}

func TestConversationService_GetUserConversations(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	env := newTestEnv(t)

	older := env.conversation(t)
	newer, _, err := env.conversations.FindOrCreate(ctx, patientID, strangerID, nil)
	req.NoError(err)

	_, err = env.messages.Append(ctx, SendInput{ConversationID: older, SenderID: mentorID, Content: "latest activity"})
	req.NoError(err)

	list, err := env.conversations.GetUserConversations(ctx, patientID)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal(older, list[0].Conversation.ID)
	req.Equal(newer.ID, list[1].Conversation.ID)

	first := list[0]
	req.Equal("Morgan Lee", first.Other.DisplayName)
	req.NotNil(first.LastMessage)
	req.Equal("latest activity", first.LastMessage.Content)
	req.True(first.Unread)
	assert.Equal(t, int64(1), first.UnreadCount)

	second := list[1]
	req.True(second.Other.IsPlaceholder())
	req.False(second.Unread, "the creator's own started message is not unread for them")
}

func TestConversationService_Contacts(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	contacts, err := env.conversations.Contacts(context.Background(), patientID, 10)
	req.NoError(err)
	req.Len(contacts, 1)
	req.Equal(mentorID, contacts[0].ID)

	_, err = env.conversations.Contacts(context.Background(), uuid.Nil, 10)
	req.ErrorIs(err, chat_errors.ErrUnauthenticated)
}
