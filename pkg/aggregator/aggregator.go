// Package aggregator maintains one session's view of its conversations: the list with
// previews and unread flags, the active transcript, and optimistic sends.
//
// All state is owned by a single goroutine started with Run. Public methods enqueue
// work onto it and network calls run in background goroutines whose results are
// posted back to the loop.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"carelink-chat/pkg/client"
	chat_errors "carelink-chat/pkg/errors"
	"carelink-chat/pkg/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize      = 200
	maxPageSize          = 200
	defaultContactsLimit = 20
	opsBuffer            = 128
	unsubscribeTimeout   = 2 * time.Second
	redialMinDelay       = 500 * time.Millisecond
	redialMaxDelay       = 30 * time.Second
)

// Backend is the chat API as seen by a session. *client.Client satisfies it.
type Backend interface {
	ListConversations(ctx context.Context) ([]client.ConversationSummary, error)
	Contacts(ctx context.Context, limit int) ([]client.Profile, error)
	FindOrCreate(ctx context.Context, participantID uuid.UUID, appointmentID *string) (client.Conversation, bool, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]client.Message, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, req client.SendMessageRequest) (client.Message, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID) (int64, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
}

// Subscriber is the realtime subscription handle. *client.Stream satisfies it.
// Events is closed when the connection ends.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Events() <-chan events.Envelope
}

type NoticeKind string

const (
	NoticeSendFailed   NoticeKind = "send_failed"
	NoticeDeleteFailed NoticeKind = "delete_failed"
	NoticeCreateFailed NoticeKind = "create_failed"
	NoticeDisconnected NoticeKind = "disconnected"
	NoticeReconnected  NoticeKind = "reconnected"
)

// Notice is a user-visible report about a user-initiated action.
// For NoticeSendFailed, Content holds the text to restore into the composer.
type Notice struct {
	Kind    NoticeKind
	Text    string
	Content string
	Err     error
}

// Notifier must not block.
type Notifier interface {
	Notify(n Notice)
}

// View is an immutable copy of the session state for rendering.
type View struct {
	Conversations []client.ConversationSummary
	ActiveID      uuid.UUID
	// ActiveContact is set when a contact is selected whose conversation does not exist yet.
	ActiveContact *client.Profile
	Transcript    []Entry
	Sending       bool
	Loaded        bool
}

type Config struct {
	UserID        uuid.UUID
	Backend       Backend
	Subscriber    Subscriber
	Notifier      Notifier
	Logger        *zap.Logger
	PageSize      int
	ContactsLimit int
	// Redial replaces the Subscriber after its event stream closes. Without it the session
	// stays offline and only reloads what it missed.
	Redial func(ctx context.Context) (Subscriber, error)
}

type outgoing struct {
	pending        Pending
	conversationID uuid.UUID
	contact        *client.Profile
	preview        *previewBackup
}

type previewBackup struct {
	conversationID uuid.UUID
	lastMessage    *client.LastMessage
	lastMessageAt  time.Time
	index          int
}

type Aggregator struct {
	userID        uuid.UUID
	backend       Backend
	subscriber    Subscriber
	redial        func(ctx context.Context) (Subscriber, error)
	notifier      Notifier
	log           *zap.Logger
	pageSize      int
	contactsLimit int

	ops     chan func()
	stopped chan struct{}
	changes chan struct{}
	view    atomic.Pointer[View]
	running atomic.Bool

	// loop-owned
	ctx           context.Context
	conversations []client.ConversationSummary
	loaded        bool
	activeID      uuid.UUID
	activeContact *client.Profile
	transcript    transcript
	sending       *outgoing
	evts          <-chan events.Envelope
	subscribed    map[string]bool
	loadGen       uint64
	cancelLoad    context.CancelFunc
	// tailOffset is where the last loaded page of the active conversation started.
	tailOffset int
}

func New(cfg Config) (*Aggregator, error) {
	if cfg.UserID == uuid.Nil {
		return nil, chat_errors.ErrUnauthenticated
	}
	if cfg.Backend == nil || cfg.Subscriber == nil || cfg.Notifier == nil {
		return nil, errors.New("aggregator: backend, subscriber and notifier are required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.ContactsLimit <= 0 {
		cfg.ContactsLimit = defaultContactsLimit
	}
	a := &Aggregator{
		userID:        cfg.UserID,
		backend:       cfg.Backend,
		subscriber:    cfg.Subscriber,
		redial:        cfg.Redial,
		notifier:      cfg.Notifier,
		log:           log.With(zap.String("user_id", cfg.UserID.String())),
		pageSize:      cfg.PageSize,
		contactsLimit: cfg.ContactsLimit,
		ops:           make(chan func(), opsBuffer),
		stopped:       make(chan struct{}),
		changes:       make(chan struct{}, 1),
		subscribed:    make(map[string]bool),
	}
	a.view.Store(&View{})
	return a, nil
}

// Run owns the session state until ctx is cancelled. It loads the conversation list,
// auto-selects a conversation and follows realtime events.
func (a *Aggregator) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("aggregator: already running")
	}
	defer close(a.stopped)

	a.ctx = ctx
	a.evts = a.subscriber.Events()
	a.subscribe(events.UserTopic(a.userID))
	a.loadConversations(true)
	a.publish()
	defer a.unsubscribeAll()

	for {
		select {
		case <-ctx.Done():
			if a.cancelLoad != nil {
				a.cancelLoad()
			}
			return nil
		case fn := <-a.ops:
			fn()
		case env, ok := <-a.evts:
			if ok {
				a.handleEvent(env)
			} else {
				a.onDisconnect()
			}
		}
		a.publish()
	}
}

// Snapshot returns the latest published view.
func (a *Aggregator) Snapshot() View {
	return *a.view.Load()
}

// Changes signals after the view changed. Signals are coalesced.
func (a *Aggregator) Changes() <-chan struct{} {
	return a.changes
}

// Select makes conversationID active, loads its transcript and marks it read.
func (a *Aggregator) Select(conversationID uuid.UUID) {
	a.enqueue(func() { a.activate(conversationID) })
}

// SelectContact activates the conversation with the contact, or defers its creation
// until the first message is sent.
func (a *Aggregator) SelectContact(contact client.Profile) {
	a.enqueue(func() { a.selectContact(contact) })
}

// Refresh reloads the conversation list.
func (a *Aggregator) Refresh() {
	a.enqueue(func() { a.loadConversations(false) })
}

// Send submits content to the active conversation optimistically. It returns once the
// message is queued; the outcome is reflected in the view or reported to the Notifier.
func (a *Aggregator) Send(ctx context.Context, content string) error {
	return a.call(ctx, func() error { return a.send(content) })
}

// Delete soft-deletes one of the user's own messages.
func (a *Aggregator) Delete(messageID uuid.UUID) {
	a.enqueue(func() { a.deleteMessage(messageID) })
}

func (a *Aggregator) enqueue(fn func()) {
	select {
	case a.ops <- fn:
	case <-a.stopped:
	}
}

func (a *Aggregator) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	a.enqueue(func() { reply <- fn() })
	select {
	case err := <-reply:
		return err
	case <-a.stopped:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs work off the loop and applies its result on the loop.
func (a *Aggregator) spawn(ctx context.Context, work func(ctx context.Context) func()) {
	go func() {
		apply := work(ctx)
		if apply != nil {
			a.enqueue(apply)
		}
	}()
}

func (a *Aggregator) publish() {
	v := &View{
		Conversations: append([]client.ConversationSummary(nil), a.conversations...),
		ActiveID:      a.activeID,
		Transcript:    a.transcript.entries(),
		Sending:       a.sending != nil,
		Loaded:        a.loaded,
	}
	if a.activeContact != nil {
		c := *a.activeContact
		v.ActiveContact = &c
	}
	a.view.Store(v)
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// subscribe is a no-op while the event stream is down; onReconnected subscribes anew.
func (a *Aggregator) subscribe(topic string) {
	if a.subscribed[topic] || a.evts == nil {
		return
	}
	a.subscribed[topic] = true
	sub := a.subscriber
	a.spawn(a.ctx, func(ctx context.Context) func() {
		err := sub.Subscribe(ctx, topic)
		if err == nil {
			return nil
		}
		return func() {
			if sub != a.subscriber {
				return
			}
			a.log.Warn("subscribe failed", zap.String("topic", topic), zap.Error(err))
			delete(a.subscribed, topic)
		}
	})
}

func (a *Aggregator) unsubscribe(topic string) {
	if !a.subscribed[topic] {
		return
	}
	delete(a.subscribed, topic)
	sub := a.subscriber
	a.spawn(a.ctx, func(ctx context.Context) func() {
		if err := sub.Unsubscribe(ctx, topic); err != nil {
			a.log.Warn("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
		return nil
	})
}

// wantedTopics is the user topic plus every listed or active conversation.
func (a *Aggregator) wantedTopics() map[string]bool {
	want := map[string]bool{events.UserTopic(a.userID): true}
	for _, c := range a.conversations {
		want[events.ConversationTopic(c.ID)] = true
	}
	if a.activeID != uuid.Nil {
		want[events.ConversationTopic(a.activeID)] = true
	}
	return want
}

// pruneSubscriptions drops topics of conversations that left the list.
func (a *Aggregator) pruneSubscriptions() {
	want := a.wantedTopics()
	for topic := range a.subscribed {
		if !want[topic] {
			a.unsubscribe(topic)
		}
	}
}

// unsubscribeAll cancels every live subscription before Run returns.
func (a *Aggregator) unsubscribeAll() {
	if a.evts == nil {
		clear(a.subscribed)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), unsubscribeTimeout)
	defer cancel()
	for topic := range a.subscribed {
		if err := a.subscriber.Unsubscribe(ctx, topic); err != nil {
			a.log.Debug("unsubscribe on shutdown failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	clear(a.subscribed)
}

// onDisconnect runs once the event stream closes. Whatever was missed is recovered by
// reloading the list and the active transcript, after redialing when that is possible.
func (a *Aggregator) onDisconnect() {
	a.evts = nil
	clear(a.subscribed)
	a.log.Warn("event stream closed")
	if a.redial == nil {
		a.notifier.Notify(Notice{Kind: NoticeDisconnected, Text: "Connection lost. Live updates are paused."})
		a.reload()
		return
	}
	a.notifier.Notify(Notice{Kind: NoticeDisconnected, Text: "Connection lost. Reconnecting..."})
	a.spawn(a.ctx, func(ctx context.Context) func() {
		delay := redialMinDelay
		for {
			sub, err := a.redial(ctx)
			if err == nil {
				return func() { a.onReconnected(sub) }
			}
			a.log.Warn("redial failed", zap.Duration("retry_in", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, redialMaxDelay)
		}
	})
}

// onReconnected subscribes the new stream to every wanted topic and reloads once the
// gateway has acknowledged them, so nothing published in between is lost.
func (a *Aggregator) onReconnected(sub Subscriber) {
	a.subscriber = sub
	a.evts = sub.Events()
	want := a.wantedTopics()
	for topic := range want {
		a.subscribed[topic] = true
	}
	a.spawn(a.ctx, func(ctx context.Context) func() {
		var failed []string
		for topic := range want {
			if err := sub.Subscribe(ctx, topic); err != nil {
				a.log.Warn("resubscribe failed", zap.String("topic", topic), zap.Error(err))
				failed = append(failed, topic)
			}
		}
		return func() {
			if sub == a.subscriber {
				for _, topic := range failed {
					delete(a.subscribed, topic)
				}
			}
			a.notifier.Notify(Notice{Kind: NoticeReconnected, Text: "Reconnected."})
			a.reload()
		}
	})
}

func (a *Aggregator) reload() {
	a.loadConversations(false)
	if a.activeID != uuid.Nil {
		a.loadTranscript()
	}
}

func (a *Aggregator) loadConversations(autoSelect bool) {
	a.spawn(a.ctx, func(ctx context.Context) func() {
		list, err := a.backend.ListConversations(ctx)
		return func() {
			if err != nil {
				a.log.Error("load conversations failed", zap.Error(err))
				list = []client.ConversationSummary{}
			}
			a.applyList(list)
			if err == nil {
				a.pruneSubscriptions()
			}
			if autoSelect {
				a.autoSelect()
			}
		}
	})
}

func (a *Aggregator) applyList(list []client.ConversationSummary) {
	a.loaded = true
	a.conversations = list
	for i := range a.conversations {
		c := &a.conversations[i]
		a.subscribe(events.ConversationTopic(c.ID))
		if c.ID == a.activeID {
			c.Unread = false
			c.UnreadCount = 0
		}
	}
	if s := a.sending; s != nil && s.conversationID != uuid.Nil {
		a.applyPreview(s)
	}
}

func (a *Aggregator) autoSelect() {
	if a.activeID != uuid.Nil || a.activeContact != nil {
		return
	}
	if len(a.conversations) > 0 {
		a.activate(a.conversations[0].ID)
		return
	}
	a.spawn(a.ctx, func(ctx context.Context) func() {
		contacts, err := a.backend.Contacts(ctx, a.contactsLimit)
		return func() {
			if err != nil {
				a.log.Error("load contacts failed", zap.Error(err))
				return
			}
			if len(contacts) == 0 || a.activeID != uuid.Nil || a.activeContact != nil {
				return
			}
			a.selectContact(contacts[0])
		}
	})
}

func (a *Aggregator) indexOf(conversationID uuid.UUID) int {
	for i, c := range a.conversations {
		if c.ID == conversationID {
			return i
		}
	}
	return -1
}

func (a *Aggregator) selectContact(contact client.Profile) {
	for _, c := range a.conversations {
		if c.Other.ID == contact.ID && c.AppointmentID == nil {
			a.activate(c.ID)
			return
		}
	}
	a.deactivate()
	a.activeContact = &contact
}

func (a *Aggregator) deactivate() {
	if a.cancelLoad != nil {
		a.cancelLoad()
		a.cancelLoad = nil
	}
	a.loadGen++
	a.activeID = uuid.Nil
	a.activeContact = nil
	a.tailOffset = 0
	a.transcript.reset()
}

func (a *Aggregator) activate(conversationID uuid.UUID) {
	if conversationID == uuid.Nil {
		return
	}
	if conversationID != a.activeID {
		a.deactivate()
		a.activeID = conversationID
		a.subscribe(events.ConversationTopic(conversationID))
		if s := a.sending; s != nil && s.conversationID == conversationID {
			a.transcript.addPending(s.pending)
		}
	}
	a.loadTranscript()
	a.markRead(conversationID)
}

// loadTranscript fetches the active conversation's newest page and merges it. Results
// for a conversation that is no longer active are discarded.
func (a *Aggregator) loadTranscript() {
	if a.cancelLoad != nil {
		a.cancelLoad()
	}
	a.loadGen++
	gen := a.loadGen
	conversationID := a.activeID
	hint := a.tailOffset
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancelLoad = cancel

	a.spawn(ctx, func(ctx context.Context) func() {
		msgs, start, err := a.latestPage(ctx, conversationID, hint)
		return func() {
			if gen != a.loadGen || conversationID != a.activeID {
				return
			}
			a.cancelLoad = nil
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.log.Error("load transcript failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
				}
				return
			}
			a.tailOffset = start
			added := a.transcript.merge(msgs)
			for _, m := range added {
				if m.SenderID != a.userID && m.ReadAt == nil {
					a.markRead(conversationID)
					break
				}
			}
		}
	})
}

// latestPage returns the newest messages of a conversation and the offset the next
// load should start from. The API lists oldest first. A first load jumps to the last
// page once the message count is known; later loads walk forward from hint so nothing
// that arrived in between is skipped.
func (a *Aggregator) latestPage(ctx context.Context, conversationID uuid.UUID, hint int) ([]client.Message, int, error) {
	page, err := a.backend.ListMessages(ctx, conversationID, a.pageSize, hint)
	if err != nil {
		return nil, 0, err
	}

	var total int
	switch {
	case len(page) == 0 && hint > 0:
		// Messages were deleted since the previous load.
		total, err = a.countMessages(ctx, conversationID, 0, hint)
	case hint == 0 && len(page) >= a.pageSize:
		total, err = a.countMessages(ctx, conversationID, len(page), -1)
	default:
		msgs := page
		for len(page) >= a.pageSize {
			page, err = a.backend.ListMessages(ctx, conversationID, a.pageSize, hint+len(msgs))
			if err != nil {
				return nil, 0, err
			}
			msgs = append(msgs, page...)
		}
		return msgs, max(hint+len(msgs)-a.pageSize, hint), nil
	}
	if err != nil {
		return nil, 0, err
	}

	start := max(total-a.pageSize, 0)
	if start == hint {
		return page, start, nil
	}
	page, err = a.backend.ListMessages(ctx, conversationID, a.pageSize, start)
	return page, start, err
}

// countMessages returns the number of live messages, known to be at least lo and, when
// hi is not negative, at most hi. It reads single-message pages, galloping forward
// until one is empty and then bisecting.
func (a *Aggregator) countMessages(ctx context.Context, conversationID uuid.UUID, lo, hi int) (int, error) {
	exists := func(offset int) (bool, error) {
		msgs, err := a.backend.ListMessages(ctx, conversationID, 1, offset)
		return len(msgs) > 0, err
	}
	for step := 1; hi < 0; step *= 2 {
		at := lo + step - 1
		ok, err := exists(at)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = at + 1
		} else {
			hi = at
		}
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, err := exists(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// markRead is fire-and-forget; failures are only logged.
func (a *Aggregator) markRead(conversationID uuid.UUID) {
	if i := a.indexOf(conversationID); i >= 0 {
		a.conversations[i].Unread = false
		a.conversations[i].UnreadCount = 0
	}
	a.spawn(a.ctx, func(ctx context.Context) func() {
		if _, err := a.backend.MarkRead(ctx, conversationID); err != nil {
			a.log.Warn("mark read failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		}
		return nil
	})
}

func (a *Aggregator) send(content string) error {
	if a.sending != nil {
		return chat_errors.ErrSendInFlight
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("%w: message is empty", chat_errors.ErrInvalidInput)
	}
	if a.activeID == uuid.Nil && a.activeContact == nil {
		return chat_errors.ErrConversationNotFound
	}

	out := &outgoing{
		pending:        Pending{TempID: uuid.NewString(), Content: content, CreatedAt: time.Now().UTC()},
		conversationID: a.activeID,
	}
	if a.activeContact != nil {
		c := *a.activeContact
		out.contact = &c
	}
	a.sending = out
	a.transcript.addPending(out.pending)
	if out.conversationID != uuid.Nil {
		a.applyPreview(out)
	}

	a.spawn(a.ctx, func(ctx context.Context) func() {
		conversationID := out.conversationID
		created := false
		if conversationID == uuid.Nil {
			conv, isNew, err := a.backend.FindOrCreate(ctx, out.contact.ID, nil)
			if err != nil {
				return func() { a.onCreateFailed(out, err) }
			}
			conversationID, created = conv.ID, isNew
		}
		msg, err := a.backend.SendMessage(ctx, conversationID, client.SendMessageRequest{
			Content:         out.pending.Content,
			ClientMessageID: out.pending.TempID,
		})
		return func() { a.onSent(out, conversationID, created, msg, err) }
	})
	return nil
}

// applyPreview shows the pending content as the conversation's preview and moves it to
// the top, remembering what it replaced.
func (a *Aggregator) applyPreview(out *outgoing) {
	i := a.indexOf(out.conversationID)
	if i < 0 {
		return
	}
	c := a.conversations[i]
	if out.preview == nil {
		out.preview = &previewBackup{
			conversationID: c.ID,
			lastMessage:    c.LastMessage,
			lastMessageAt:  c.LastMessageAt,
			index:          i,
		}
	}
	c.LastMessage = &client.LastMessage{
		SenderID:  a.userID,
		Kind:      "text",
		Content:   out.pending.Content,
		CreatedAt: out.pending.CreatedAt,
	}
	if out.pending.CreatedAt.After(c.LastMessageAt) {
		c.LastMessageAt = out.pending.CreatedAt
	}
	a.conversations = append(a.conversations[:i], a.conversations[i+1:]...)
	a.conversations = append([]client.ConversationSummary{c}, a.conversations...)
}

func (a *Aggregator) restorePreview(out *outgoing) {
	b := out.preview
	if b == nil {
		return
	}
	i := a.indexOf(b.conversationID)
	if i < 0 {
		return
	}
	c := a.conversations[i]
	c.LastMessage = b.lastMessage
	c.LastMessageAt = b.lastMessageAt
	a.conversations = append(a.conversations[:i], a.conversations[i+1:]...)
	at := b.index
	if at > len(a.conversations) {
		at = len(a.conversations)
	}
	a.conversations = append(a.conversations[:at], append([]client.ConversationSummary{c}, a.conversations[at:]...)...)
}

func (a *Aggregator) onCreateFailed(out *outgoing, err error) {
	a.sending = nil
	a.transcript.removePending(out.pending.TempID)
	a.log.Error("create conversation failed", zap.Error(err))
	a.notifier.Notify(Notice{
		Kind:    NoticeCreateFailed,
		Text:    "Could not start the conversation. Your message was not sent.",
		Content: out.pending.Content,
		Err:     err,
	})
}

func (a *Aggregator) onSent(out *outgoing, conversationID uuid.UUID, created bool, msg client.Message, err error) {
	a.sending = nil

	if out.contact != nil && a.activeContact != nil && a.activeContact.ID == out.contact.ID {
		// The deferred conversation now exists; it becomes the active one.
		a.activeContact = nil
		a.activeID = conversationID
		a.subscribe(events.ConversationTopic(conversationID))
		a.loadTranscript()
	}
	if created || out.contact != nil {
		a.loadConversations(false)
	}

	if err != nil {
		a.transcript.removePending(out.pending.TempID)
		a.restorePreview(out)
		a.log.Warn("send failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		a.notifier.Notify(Notice{
			Kind:    NoticeSendFailed,
			Text:    "Message not sent. Tap to retry.",
			Content: out.pending.Content,
			Err:     err,
		})
		return
	}

	if conversationID == a.activeID {
		a.transcript.removePending(out.pending.TempID)
		if !a.transcript.has(msg.ID) {
			a.transcript.merge([]client.Message{msg})
		}
	}
	if i := a.indexOf(conversationID); i >= 0 {
		a.conversations[i].LastMessage = &client.LastMessage{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Kind:      msg.Kind,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
		if msg.CreatedAt.After(a.conversations[i].LastMessageAt) {
			a.conversations[i].LastMessageAt = msg.CreatedAt
		}
	}
}

func (a *Aggregator) deleteMessage(messageID uuid.UUID) {
	a.spawn(a.ctx, func(ctx context.Context) func() {
		err := a.backend.DeleteMessage(ctx, messageID)
		return func() {
			if err != nil {
				a.log.Warn("delete failed", zap.String("message_id", messageID.String()), zap.Error(err))
				a.notifier.Notify(Notice{Kind: NoticeDeleteFailed, Text: "Message could not be deleted.", Err: err})
				return
			}
			if a.transcript.remove(messageID) {
				a.loadConversations(false)
			}
		}
	})
}

func (a *Aggregator) handleEvent(env events.Envelope) {
	switch env.EventType {
	case events.EventMessageNew:
		var p events.MessagePayload
		if err := env.Decode(&p); err != nil {
			a.log.Warn("malformed message.new", zap.Error(err))
			return
		}
		a.onMessageNew(p)
	case events.EventMessageDeleted:
		var p events.MessagePayload
		if err := env.Decode(&p); err != nil {
			a.log.Warn("malformed message.deleted", zap.Error(err))
			return
		}
		if p.ConversationID == a.activeID {
			a.transcript.remove(p.MessageID)
		}
		a.loadConversations(false)
	case events.EventMessagesRead:
		var p events.ReadPayload
		if err := env.Decode(&p); err != nil {
			a.log.Warn("malformed messages.read", zap.Error(err))
			return
		}
		if p.ConversationID == a.activeID && p.ReaderID != a.userID {
			a.loadTranscript()
		}
	case events.EventParticipantAdded:
		a.loadConversations(false)
	default:
		a.log.Debug("ignoring event", zap.String("event_type", string(env.EventType)))
	}
}

func (a *Aggregator) onMessageNew(p events.MessagePayload) {
	if p.ConversationID != a.activeID {
		a.loadConversations(false)
		return
	}
	if a.transcript.has(p.MessageID) {
		return
	}
	if s := a.sending; s != nil && p.SenderID == a.userID && p.ClientMessageID == s.pending.TempID {
		// Echo of our own in-flight send; the send response confirms it.
		return
	}
	a.loadTranscript()
	if p.SenderID != a.userID {
		a.loadConversations(false)
	}
}
