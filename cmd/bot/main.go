package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/fadeni/school-diary-bot/internal/auth"
	"github.com/fadeni/school-diary-bot/internal/cipher"
	"github.com/fadeni/school-diary-bot/internal/config"
	"github.com/fadeni/school-diary-bot/internal/dal"
	redisrepo "github.com/fadeni/school-diary-bot/internal/dal/redis"
	sqlrepo "github.com/fadeni/school-diary-bot/internal/dal/sql"
	"github.com/fadeni/school-diary-bot/internal/diary"
	"github.com/fadeni/school-diary-bot/internal/nav"
	"github.com/fadeni/school-diary-bot/internal/router"
	"github.com/fadeni/school-diary-bot/internal/session"
	"github.com/fadeni/school-diary-bot/internal/telegram"
	"github.com/fadeni/school-diary-bot/internal/web"
)

var (
	// Version is set via -ldflags at build time
	Version = "dev" //nolint:gochecknoglobals // must be global to be replaced at build time
	// BuildTime is set via -ldflags at build time
	BuildTime = "unknown" //nolint:gochecknoglobals // must be global to be replaced at build time
)

const (
	exitCodeOK int = iota
	exitCodeConfigParse
	exitCodeStoreConnect
	exitCodeCipherCreate
	exitCodeBotCreate
	exitCodeRun
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	go func() {
		<-sigs
		cancel()
	}()
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// .env is optional and only present in dev setups
	_ = godotenv.Load()

	conf, err := config.GetBot()
	if err != nil {
		slog.ErrorContext(ctx, "failed to get config", "error", err) //nolint:sloglint // app logger is not configured yet
		return exitCodeConfigParse
	}

	log := mustLogger(conf.Dev)

	log.InfoContext(ctx, "starting bot",
		"version", Version,
		"build_time", BuildTime,
		"config", loggableConfig(conf),
	)
	defer log.InfoContext(ctx, "bot is stopped")

	repo, closeRepo, err := credentialRepository(ctx, conf, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to create credential store", "error", err)
		return exitCodeStoreConnect
	}
	defer closeRepo()

	key, err := conf.DecodeEncryptionKey()
	if err != nil {
		log.ErrorContext(ctx, "failed to decode encryption key", "error", err)
		return exitCodeCipherCreate
	}
	tokenCipher, err := cipher.NewAESGCM(key)
	if err != nil {
		log.ErrorContext(ctx, "failed to create token cipher", "error", err)
		return exitCodeCipherCreate
	}

	diarySvc := diary.NewHTTPService(conf.Diary.BaseURL, conf.Diary.RateLimit, log)
	store := session.NewStore(repo, tokenCipher, diarySvc, log)
	sessions := session.NewManager()

	authFlow := auth.New(store, diarySvc, log)
	navController := nav.New(store, log)
	eventRouter := router.New(authFlow, navController, store, log)

	bot, err := telegram.NewBot(conf.TelegramToken, telegram.Dependencies{
		Sessions: sessions,
		Auth:     authFlow,
		Nav:      navController,
		Router:   eventRouter,
		Logger:   log,
	}, telegram.Recover(log), telegram.LogErrors(log), telegram.AllowedChats(conf.AllowedChatIDs))
	if err != nil {
		log.ErrorContext(ctx, "failed to create bot", "error", err)
		return exitCodeBotCreate
	}

	group, gCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.InfoContext(gCtx, "starting telegram bot")
		bot.Start(gCtx)
		return nil
	})

	group.Go(func() error {
		sessions.StartEviction(gCtx, conf.Session.EvictInterval, conf.Session.TTL, log)
		return nil
	})

	group.Go(func() error {
		return runWebServer(gCtx, conf.Web, sessions, log)
	})

	if err := group.Wait(); err != nil {
		log.ErrorContext(ctx, "bot stopped with error", "error", err)
		return exitCodeRun
	}

	return exitCodeOK
}

func credentialRepository(ctx context.Context, conf *config.Bot, log *slog.Logger) (dal.CredentialRepository, func(), error) {
	switch conf.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: conf.Store.RedisAddr})
		return redisrepo.NewRepository(client, log), func() { _ = client.Close() }, nil
	default:
		db, err := sql.Open("sqlite", conf.Store.DBPath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := sqlrepo.NewRepository(ctx, db, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
}

func runWebServer(ctx context.Context, conf config.Web, sessions *session.Manager, log *slog.Logger) error {
	server := &http.Server{
		Addr:              conf.Addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: web.NewRouter(ctx, conf, web.Dependencies{
			Sessions: sessions,
			Logger:   log,
		}),
	}

	go func() {
		<-ctx.Done()
		cCtx, cCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cCancel()

		if sErr := server.Shutdown(cCtx); sErr != nil {
			log.ErrorContext(cCtx, "failed to shutdown web server", "error", sErr)
		}
	}()

	log.InfoContext(ctx, "starting web server", "addr", conf.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.InfoContext(ctx, "web server is stopped")
	return nil
}

func mustLogger(dev bool) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	if dev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

func loggableConfig(conf *config.Bot) map[string]any {
	return map[string]any{
		"dev":              conf.Dev,
		"allowed-chat-ids": conf.AllowedChatIDs,
		"store-backend":    conf.Store.Backend,
		"diary-base-url":   conf.Diary.BaseURL,
		"web-addr":         conf.Web.Addr,
		"session-ttl":      conf.Session.TTL.String(),
	}
}
