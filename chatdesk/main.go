package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdesk/chatdesk/config"
	"chatdesk/chatdesk/controllers"
	"chatdesk/chatdesk/middlewares"
	"chatdesk/chatdesk/routes"
	"chatdesk/chatdesk/services/llm"
	"chatdesk/chatdesk/services/sessions"
	"chatdesk/chatdesk/sources"
	"chatdesk/chatdesk/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := llm.NewClient(cfg)
	if err != nil {
		logging.ErrorLogger.Error("completion client error", zap.Error(err))
		os.Exit(1)
	}
	persistence, closePersistence, err := sources.New(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("persistence error", zap.String("backend", cfg.PersistenceBackend), zap.Error(err))
		os.Exit(1)
	}
	defer closePersistence()

	store := sessions.New(client, persistence,
		sessions.WithDefaultModel(cfg.DefaultModel),
		sessions.WithLoggers(logging.AppLogger, logging.ErrorLogger),
	)
	st := store.Initialize(ctx)
	logging.AppLogger.Info("chat store ready",
		zap.Int("sessions", len(st.Sessions)),
		zap.String("active_session_id", st.ActiveSessionID),
		zap.String("provider", cfg.LLMProvider),
	)

	backends := map[string]controllers.Pinger{}
	if p, ok := persistence.(controllers.Pinger); ok {
		backends[cfg.PersistenceBackend] = p
	}
	healthCtrl := controllers.NewHealthController(backends)
	relayCtrl := controllers.NewRelayController(client, cfg.APIKey(), cfg.DefaultModel)
	chatCtrl := controllers.NewChatController(store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogging)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.CORS(cfg.CORSOrigins))

	// The WebSocket feed under /chat is long-lived, so only the short routes get a timeout.
	short := r.With(middleware.Timeout(60 * time.Second))
	short.Mount("/health", routes.HealthRoutes(healthCtrl))
	short.Mount("/api", routes.RelayRoutes(relayCtrl))
	r.Mount("/chat", routes.ChatRoutes(chatCtrl, cfg))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
