package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"carelink-chat/config"
	"carelink-chat/internal/handler"
	"carelink-chat/internal/middleware"
	"carelink-chat/internal/outbox"
	"carelink-chat/internal/profile"
	"carelink-chat/internal/proxy"
	"carelink-chat/internal/redis"
	"carelink-chat/internal/repository"
	"carelink-chat/internal/repository/memstore"
	"carelink-chat/internal/server"
	"carelink-chat/internal/services"
	"carelink-chat/internal/storage"
	"carelink-chat/internal/websocket"
	"carelink-chat/pkg/database"
	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const memoryDriver = "memory"

type stores struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	outbox        repository.OutboxRepository
	directory     profile.Directory
	health        map[string]server.HealthCheck
	close         func()
}

func main() {
	cfg := config.LoadConfig()
	l := logger.New(cfg.AppEnv)
	logger.SetGlobalLogger(l)
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	st, err := openStores(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer st.close()

	hub := websocket.NewHub()

	var (
		publisher    events.Publisher
		subscriber   events.Subscriber
		profileCache profile.Cache
		participants proxy.ParticipantCache
		msgLimiter   middleware.MessageLimiter
		connLimiter  websocket.ConnectLimiter
	)
	if cfg.StoreDriver == memoryDriver {
		publisher = websocket.NewLocalPublisher(hub)
	} else {
		rdb, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		cache := redis.NewCacheStore(rdb, redis.CacheConfig{
			ProfileTTL:      cfg.ProfileCacheTTL,
			ConversationTTL: redis.DefaultCacheConfig().ConversationTTL,
		})
		limits := redis.DefaultRateLimitConfig()
		limits.MessageLimit = cfg.MessageRateLimit
		limits.MessageWindow = cfg.MessageRateWindow
		limiter := redis.NewRateLimiter(rdb, limits)

		publisher = redis.NewPublisher(rdb)
		subscriber = redis.NewSubscriber(rdb)
		profileCache = cache
		participants = cache
		msgLimiter = limiter
		connLimiter = limiter
		st.health["redis"] = cache.Ping
	}

	resolver := profile.NewResolver(st.directory, profileCache, l.Named("profile"))
	access := proxy.NewAccessControl(st.conversations, participants, l.Named("access"))
	authService := services.NewAuthService(cfg.JWTSecret)
	conversationService := services.NewConversationService(st.conversations, st.messages, resolver, l.Named("conversations"))
	messageService := services.NewMessageService(st.messages, st.conversations, st.outbox, access, l.Named("messages"))

	handlers := &server.Handlers{
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		WebSocket:    websocket.NewHandler(authService, hub, websocket.NewChannelAuthorizer(access), connLimiter, l.Named("ws")),
	}
	if cfg.S3Enabled() {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			return err
		}
		st.health["s3"] = s3Client.Ping
		attachments := services.NewAttachmentService(s3Client)
		messageService.WithAttachmentVerifier(attachments)
		handlers.Attachment = handler.NewAttachmentHandler(attachments)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, server.RouteOptions{
		Auth:           authService,
		MessageLimiter: msgLimiter,
		Health:         st.health,
	})

	processor := outbox.ProcessorFromConfig(cfg, st.outbox, publisher, l.Named("outbox"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return outbox.NewRunner(processor).WithRetention(cfg.OutboxRetention).Run(gctx) })
	if subscriber != nil {
		bridge := websocket.NewRedisBridge(subscriber, hub, l.Named("bridge"))
		g.Go(func() error { return bridge.Run(gctx) })
	}
	g.Go(func() error { return srv.Start(gctx) })
	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, l *logger.Logger) (*stores, error) {
	if cfg.StoreDriver == memoryDriver {
		l.Warnf("using in-memory store; data is lost on restart")
		db := memstore.New()
		return &stores{
			conversations: db.Conversations(),
			messages:      db.Messages(),
			outbox:        db.Outbox(),
			directory:     seedDirectory(database.DefaultSeedConfig()),
			health:        map[string]server.HealthCheck{},
			close:         func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	applied, err := database.ApplyMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if len(applied) > 0 {
		l.Infof("applied migrations: %v", applied)
	}
	return &stores{
		conversations: repository.NewConversationRepository(pool),
		messages:      repository.NewMessageRepository(pool),
		outbox:        repository.NewOutboxRepository(pool),
		directory:     profile.NewPostgresDirectory(pool),
		health: map[string]server.HealthCheck{
			"postgres": func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
		},
		close: pool.Close,
	}, nil
}

func seedDirectory(seed *database.SeedConfig) *profile.StaticDirectory {
	var profiles []profile.Profile
	add := func(people []database.SeedPerson, kind profile.Kind) {
		for _, p := range people {
			name := p.FirstName
			if p.LastName != "" {
				name += " " + p.LastName
			}
			profiles = append(profiles, profile.Profile{ID: p.ID, DisplayName: name, AvatarURL: p.AvatarURL, Kind: kind})
		}
	}
	add(seed.Patients, profile.KindPatient)
	add(seed.Mentors, profile.KindMentor)
	add(seed.Accounts, profile.KindAccount)
	return profile.NewStaticDirectory(profiles...)
}
