package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/scribeai/scribe/internal/chat"
	"github.com/scribeai/scribe/internal/config"
	"github.com/scribeai/scribe/internal/conversation"
	"github.com/scribeai/scribe/internal/conversation/flow"
	"github.com/scribeai/scribe/internal/db"
	dbsqlc "github.com/scribeai/scribe/internal/db/sqlc"
	"github.com/scribeai/scribe/internal/extract"
	"github.com/scribeai/scribe/internal/handlers"
	"github.com/scribeai/scribe/internal/logger"
	"github.com/scribeai/scribe/internal/media"
	"github.com/scribeai/scribe/internal/message"
	"github.com/scribeai/scribe/internal/server"
	"github.com/scribeai/scribe/internal/storage"
	"github.com/scribeai/scribe/internal/storage/providers/localfs"
)

func runServe() {
	fx.New(
		fx.Provide(
			loadConfig,
			provideLogger,
			provideDBConn,
			provideDBQueries,
			provideStorageProvider,
			provideMediaService,
			provideMediaJanitor,
			extract.NewDefaultRegistry,
			provideGenerator,
			provideResponder,
			provideConversationService,
			provideMessageService,
			providePipeline,
			provideServerHandler(provideChatHandler),
			provideServerHandler(provideConversationHandler),
			provideServerHandler(provideFileHandler),
			provideServerHandler(providePingHandler),
			provideServerHandler(provideStorageHandler),
			provideServer,
		),
		fx.Invoke(
			startMediaJanitor,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries { return dbsqlc.New(conn) }

func provideStorageProvider(cfg config.Config) (storage.Provider, error) {
	provider, err := localfs.New(cfg.Storage.Root, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func provideMediaService(log *slog.Logger, queries *dbsqlc.Queries, provider storage.Provider) *media.Service {
	return media.NewService(log, queries, provider)
}

func provideMediaJanitor(log *slog.Logger, cfg config.Config, service *media.Service) *media.Janitor {
	return media.NewJanitor(log, service, cfg.Media.JanitorSchedule, cfg.Media.OrphanTTLDuration())
}

func provideGenerator(log *slog.Logger, cfg config.Config) (chat.Generator, error) {
	gen, err := chat.NewGenerator(context.Background(), log, cfg.Generation)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func provideResponder(log *slog.Logger, gen chat.Generator) *chat.Responder {
	return chat.NewResponder(log, gen)
}

func provideConversationService(log *slog.Logger, queries *dbsqlc.Queries) *conversation.DBService {
	return conversation.NewService(log, queries)
}

func provideMessageService(log *slog.Logger, queries *dbsqlc.Queries) *message.DBService {
	return message.NewService(log, queries)
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	conversations *conversation.DBService,
	registry *extract.Registry,
	files *media.Service,
	responder *chat.Responder,
	messages *message.DBService,
) *flow.Pipeline {
	return flow.NewPipeline(
		log,
		conversations,
		flow.NewIngestor(log, registry, files),
		responder,
		flow.NewRecorder(log, messages),
		files,
		flow.Options{CleanupOnFailure: cfg.Chat.CleanupOnFailure},
	)
}

func provideChatHandler(log *slog.Logger, pipeline *flow.Pipeline, cfg config.Config) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, pipeline, cfg)
}

func provideConversationHandler(log *slog.Logger, conversations *conversation.DBService, messages *message.DBService) *handlers.ConversationHandler {
	return handlers.NewConversationHandler(log, conversations, messages)
}

func provideFileHandler(log *slog.Logger, files *media.Service) *handlers.FileHandler {
	return handlers.NewFileHandler(log, files)
}

func providePingHandler(log *slog.Logger, conn *pgxpool.Pool) *handlers.PingHandler {
	return handlers.NewPingHandler(log, conn)
}

func provideStorageHandler(cfg config.Config) (*handlers.StorageHandler, error) {
	root, err := filepath.Abs(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return handlers.NewStorageHandler(root), nil
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startMediaJanitor(lc fx.Lifecycle, janitor *media.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return janitor.Start()
		},
		OnStop: func(ctx context.Context) error {
			return janitor.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is required")
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
