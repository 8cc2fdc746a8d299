// Command session runs one interactive chat session against the API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"carelink-chat/config"
	"carelink-chat/internal/services"
	"carelink-chat/pkg/aggregator"
	"carelink-chat/pkg/client"
	"carelink-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const help = `Commands:
  /list              show conversations
  /refresh           reload conversations from the server
  /open <n|id>       open conversation n from /list, or by id
  /contacts          show contacts
  /with <n>          start or open a conversation with contact n
  /delete <id>       delete one of your messages
  /quit              leave
Anything else is sent to the active conversation.
`

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	userFlag := flag.String("user", "", "User id of this session")
	token := flag.String("token", "", "Access token; minted from JWT_SECRET when empty")
	flag.Parse()

	cfg := config.LoadConfig()
	l := logger.New(cfg.AppEnv)
	defer func() { _ = l.Sync() }()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "a valid -user id is required")
		os.Exit(2)
	}
	if *token == "" {
		*token, err = services.NewAuthService(cfg.JWTSecret).IssueAccessToken(userID)
		if err != nil {
			l.Errorf("mint token: %v", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *baseURL, *token, userID, l.Logger, os.Stdin, os.Stdout); err != nil {
		l.Errorf("session ended: %v", err)
		os.Exit(1)
	}
}

type printer struct {
	out io.Writer
}

func (p printer) Notify(n aggregator.Notice) {
	fmt.Fprintf(p.out, "! %s\n", n.Text)
	if n.Content != "" {
		fmt.Fprintf(p.out, "  unsent: %s\n", n.Content)
	}
}

func run(ctx context.Context, baseURL, token string, userID uuid.UUID, zl *zap.Logger, in io.Reader, out io.Writer) error {
	api := client.New(baseURL, token, client.WithLogger(zl))
	defer api.Close()

	streams := &streamSet{}
	defer streams.closeAll()
	stream, err := api.Dial(ctx)
	if err != nil {
		return err
	}
	streams.add(stream)

	agg, err := aggregator.New(aggregator.Config{
		UserID:     userID,
		Backend:    api,
		Subscriber: stream,
		Notifier:   printer{out: out},
		Logger:     zl,
		Redial: func(ctx context.Context) (aggregator.Subscriber, error) {
			s, err := api.Dial(ctx)
			if err != nil {
				return nil, err
			}
			streams.add(s)
			return s, nil
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &renderer{out: out, self: userID, seen: map[uuid.UUID]bool{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return agg.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-agg.Changes():
				r.render(agg.Snapshot())
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		fmt.Fprint(out, help)
		return readCommands(gctx, in, out, api, agg)
	})
	return g.Wait()
}

// streamSet closes every stream dialed during the session.
type streamSet struct {
	mu      sync.Mutex
	streams []*client.Stream
}

func (s *streamSet) add(st *client.Stream) {
	s.mu.Lock()
	s.streams = append(s.streams, st)
	s.mu.Unlock()
}

func (s *streamSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streams {
		_ = st.Close()
	}
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, api *client.Client, agg *aggregator.Aggregator) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var contacts []client.Profile
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line = <-lines:
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/quit":
			return nil
		case "/list":
			for i, c := range agg.Snapshot().Conversations {
				mark := " "
				if c.Unread {
					mark = "*"
				}
				preview := ""
				if c.LastMessage != nil {
					preview = c.LastMessage.Content
				}
				fmt.Fprintf(out, "%s %d. %s  %s\n", mark, i+1, c.Other.DisplayName, preview)
			}
		case "/refresh":
			agg.Refresh()
		case "/open":
			if id, ok := pick(arg, agg.Snapshot().Conversations); ok {
				agg.Select(id)
			} else {
				fmt.Fprintln(out, "unknown conversation")
			}
		case "/contacts":
			var err error
			contacts, err = api.Contacts(ctx, 20)
			if err != nil {
				fmt.Fprintf(out, "! contacts unavailable: %v\n", err)
				continue
			}
			for i, c := range contacts {
				fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, c.DisplayName, c.Kind)
			}
		case "/with":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 || n > len(contacts) {
				fmt.Fprintln(out, "run /contacts and pick a number")
				continue
			}
			agg.SelectContact(contacts[n-1])
		case "/delete":
			id, err := uuid.Parse(arg)
			if err != nil {
				fmt.Fprintln(out, "usage: /delete <message-id>")
				continue
			}
			agg.Delete(id)
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Fprint(out, help)
				continue
			}
			if err := agg.Send(ctx, line); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

func pick(arg string, list []client.ConversationSummary) (uuid.UUID, bool) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(list) {
			return list[n-1].ID, true
		}
		return uuid.Nil, false
	}
	id, err := uuid.Parse(arg)
	return id, err == nil
}

// renderer prints transcript lines once, as they are confirmed.
type renderer struct {
	out    io.Writer
	self   uuid.UUID
	active uuid.UUID
	seen   map[uuid.UUID]bool
}

func (r *renderer) render(v aggregator.View) {
	if v.ActiveID != r.active {
		r.active = v.ActiveID
		r.seen = map[uuid.UUID]bool{}
		switch {
		case v.ActiveID != uuid.Nil:
			fmt.Fprintf(r.out, "--- conversation %s ---\n", v.ActiveID)
		case v.ActiveContact != nil:
			fmt.Fprintf(r.out, "--- new conversation with %s (sent on first message) ---\n", v.ActiveContact.DisplayName)
		}
	}
	for _, e := range v.Transcript {
		c, ok := e.(aggregator.Confirmed)
		if !ok || r.seen[c.Message.ID] {
			continue
		}
		r.seen[c.Message.ID] = true
		who := "them"
		if c.Message.SenderID == r.self {
			who = "me"
		}
		if c.Message.Kind == "system" {
			who = "--"
		}
		fmt.Fprintf(r.out, "[%s] %s: %s\n", c.Message.CreatedAt.Local().Format("15:04"), who, c.Message.Content)
	}
}
