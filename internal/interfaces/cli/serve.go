package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project_supportbot/internal/infrastructure"
	httpapi "project_supportbot/internal/interfaces/http"
	"project_supportbot/internal/observability"
	"project_supportbot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second

	// inbound Telegram messages per chat
	telegramRate  = 1.0
	telegramBurst = 3
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when a token is configured, the Telegram bot",
		RunE:  runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := observability.Component("server")

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	auth, err := usecases.NewAuthUsecase(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)
	if err != nil {
		return err
	}
	if !auth.Enabled() {
		log.Warn("admin login disabled, set SUPPORTBOT_ADMIN_USERNAME and SUPPORTBOT_ADMIN_PASSWORD to enable it")
	}

	deps := httpapi.RouterDeps{
		Session:    a.session,
		Dashboard:  a.dashboard,
		Auth:       auth,
		Middleware: httpapi.NewMiddleware(cfg.JWTSecret),
		TopK:       cfg.TopK,
		PublicURL:  cfg.PublicURL,
		RateLimit:  rate.Limit(cfg.RateLimit),
		RateBurst:  cfg.RateBurst,
	}

	botDone := make(chan struct{})
	if cfg.TelegramToken == "" {
		close(botDone)
		log.Info("telegram disabled (no token)")
	} else {
		bot, err := infrastructure.NewTelegramBot(cfg.TelegramToken, a.session, infrastructure.NewMessageRateLimiter(telegramRate, telegramBurst))
		if err != nil {
			close(botDone)
			log.Warn("telegram disabled", "error", err)
		} else {
			deps.Telegram = bot
			go func() {
				defer close(botDone)
				if err := bot.Run(ctx); err != nil {
					log.Error("telegram bot stopped", "error", err)
				}
			}()
		}
	}

	if observability.ParseLevel(cfg.LogLevel) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	httpapi.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		stop()
		<-botDone
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-botDone
	return nil
}
