package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carelink-chat/internal/domain/conversation"
	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/domain/outbox"
	"carelink-chat/internal/mocks"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMessageService_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("messages are strictly ordered by creation", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)

		m1, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Content: "first"})
		req.NoError(err)
		m2, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: mentorID, Content: "second"})
		req.NoError(err)
		req.True(m1.CreatedAt.Before(m2.CreatedAt))

		list, err := env.messages.List(ctx, id, patientID, 0, 0)
		req.NoError(err)
		contents := lo.Map(list, func(m message.Message, _ int) string { return m.Content })
		req.Equal([]string{message.ConversationStartedContent, "first", "second"}, contents)
	})

	t.Run("non participants cannot append", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)

		_, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: strangerID, Content: "hi"})
		req.ErrorIs(err, chat_errors.ErrNotAParticipant)

		list, err := env.messages.List(ctx, id, patientID, 0, 0)
		req.NoError(err)
		req.Len(list, 1)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.messages.Append(ctx, SendInput{ConversationID: uuid.New(), SenderID: patientID, Content: "hi"})
		require.ErrorIs(t, err, chat_errors.ErrConversationNotFound)
	})

	t.Run("a repeated client message id returns the stored message", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)
		before := len(env.db.OutboxEvents())

		in := SendInput{ConversationID: id, SenderID: patientID, Content: "once", ClientMessageID: "tmp-1"}
		first, err := env.messages.Append(ctx, in)
		req.NoError(err)
		second, err := env.messages.Append(ctx, in)
		req.NoError(err)
		req.Equal(first.ID, second.ID)

		list, err := env.messages.List(ctx, id, patientID, 0, 0)
		req.NoError(err)
		req.Len(list, 2)
		req.Len(env.db.OutboxEvents(), before+1)
	})

	t.Run("validates content", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.conversation(t)

		for name, in := range map[string]SendInput{
			"empty":          {ConversationID: id, SenderID: patientID, Content: "   "},
			"too long":       {ConversationID: id, SenderID: patientID, Content: strings.Repeat("x", message.MaxContentRunes+1)},
			"bad attachment": {ConversationID: id, SenderID: patientID, Attachment: &message.Attachment{Key: "k", Kind: "spreadsheet"}},
			"long client id": {ConversationID: id, SenderID: patientID, Content: "x", ClientMessageID: strings.Repeat("c", 65)},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := env.messages.Append(ctx, in)
				require.ErrorIs(t, err, chat_errors.ErrInvalidInput)
			})
		}
	})

	t.Run("attachment only messages are verified", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		env := newTestEnv(t)
		id := env.conversation(t)

		verifier := mocks.NewMockAttachmentVerifier(ctrl)
		env.messages.WithAttachmentVerifier(verifier)
		att := &message.Attachment{Key: "attachments/" + patientID.String() + "/scan.png", Kind: message.AttachmentImage}

		verifier.EXPECT().Verify(gomock.Any(), patientID, att.Key).Return(nil)
		m, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Attachment: att})
		req.NoError(err)
		req.Equal(att, m.Attachment)

		verifier.EXPECT().Verify(gomock.Any(), patientID, att.Key).Return(chat_errors.ErrInvalidInput)
		_, err = env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Attachment: att})
		req.ErrorIs(err, chat_errors.ErrInvalidInput)
	})

	t.Run("moves last_message_at forward", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)

		m, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: mentorID, Content: "ping"})
		req.NoError(err)
		c, err := env.db.Conversations().GetByID(ctx, id)
		req.NoError(err)
		req.True(c.LastMessageAt.Equal(m.CreatedAt))
	})
}

func TestMessageService_List(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	env := newTestEnv(t)
	id := env.conversation(t)

	for i := 0; i < 5; i++ {
		_, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Content: "m"})
		req.NoError(err)
	}

	page, err := env.messages.List(ctx, id, mentorID, 2, 1)
	req.NoError(err)
	req.Len(page, 2)

	_, err = env.messages.List(ctx, id, strangerID, 0, 0)
	req.ErrorIs(err, chat_errors.ErrNotAParticipant)

	limit, offset := NormalizePage(0, -3)
	req.Equal(DefaultPageSize, limit)
	req.Equal(0, offset)
	limit, _ = NormalizePage(10_000, 0)
	req.Equal(MaxPageSize, limit)
}

func TestMessageService_MarkRead(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	env := newTestEnv(t)
	id := env.conversation(t)

	_, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Content: "hello"})
	req.NoError(err)

	marked, err := env.messages.MarkRead(ctx, id, mentorID)
	req.NoError(err)
	req.Equal(int64(2), marked)

	unread, err := env.messages.UnreadCount(ctx, id, mentorID)
	req.NoError(err)
	req.Zero(unread)

	marked, err = env.messages.MarkRead(ctx, id, mentorID)
	req.NoError(err)
	req.Zero(marked)
	unread, err = env.messages.UnreadCount(ctx, id, mentorID)
	req.NoError(err)
	req.Zero(unread)

	reads := lo.Filter(env.db.OutboxEvents(), func(e outbox.OutboxEvent, _ int) bool {
		return e.EventType == string(events.EventMessagesRead)
	})
	req.Len(reads, 1, "only a read that changed rows is announced")

	c, err := env.db.Conversations().GetByID(ctx, id)
	req.NoError(err)
	p, ok := lo.Find(c.Participants, func(p conversation.Participant) bool { return p.UserID == mentorID })
	req.True(ok)
	req.NotNil(p.LastReadAt)

	_, err = env.messages.MarkRead(ctx, id, strangerID)
	req.ErrorIs(err, chat_errors.ErrNotAParticipant)
}

func TestMessageService_SoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("only the sender can delete", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)
		m, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Content: "mine"})
		req.NoError(err)

		err = env.messages.SoftDelete(ctx, m.ID, mentorID)
		req.ErrorIs(err, chat_errors.ErrMessageNotFound)

		list, err := env.messages.List(ctx, id, patientID, 0, 0)
		req.NoError(err)
		req.True(lo.ContainsBy(list, func(x message.Message) bool { return x.ID == m.ID }))
	})

	t.Run("deleted messages leave the transcript", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		id := env.conversation(t)
		m, err := env.messages.Append(ctx, SendInput{ConversationID: id, SenderID: patientID, Content: "oops"})
		req.NoError(err)

		req.NoError(env.messages.SoftDelete(ctx, m.ID, patientID))
		err = env.messages.SoftDelete(ctx, m.ID, patientID)
		req.True(errors.Is(err, chat_errors.ErrMessageNotFound))

		list, err := env.messages.List(ctx, id, patientID, 0, 0)
		req.NoError(err)
		req.False(lo.ContainsBy(list, func(x message.Message) bool { return x.ID == m.ID }))

		last := env.db.OutboxEvents()[len(env.db.OutboxEvents())-1]
		req.Equal(string(events.EventMessageDeleted), last.EventType)
		req.Equal(id.String(), last.AggregateID)
	})
}

// Patient and mentor: create, greet, mentor reads.
func TestPatientMentorScenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	env := newTestEnv(t)

	c, created, err := env.conversations.FindOrCreate(ctx, patientID, mentorID, nil)
	req.NoError(err)
	req.True(created)
	req.Len(c.Participants, 2)

	msgs, err := env.messages.List(ctx, c.ID, mentorID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 1)

	_, err = env.messages.Append(ctx, SendInput{ConversationID: c.ID, SenderID: patientID, Content: "Hello"})
	req.NoError(err)

	msgs, err = env.messages.List(ctx, c.ID, mentorID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal(message.ConversationStartedContent, msgs[0].Content)
	req.Equal("Hello", msgs[1].Content)

	list, err := env.conversations.GetUserConversations(ctx, mentorID)
	req.NoError(err)
	req.Len(list, 1)
	req.True(list[0].Unread)
	req.Equal("Pat Jordan", list[0].Other.DisplayName)

	_, err = env.messages.MarkRead(ctx, c.ID, mentorID)
	req.NoError(err)

	list, err = env.conversations.GetUserConversations(ctx, mentorID)
	req.NoError(err)
	req.False(list[0].Unread)
	req.Zero(list[0].UnreadCount)
}
