// cmd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"nihongo_memo/internal/config"
	"nihongo_memo/internal/handlers"
	"nihongo_memo/internal/middleware"
	"nihongo_memo/internal/repository"
	"nihongo_memo/internal/service"
	"nihongo_memo/internal/session"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	//　設定ファイル読み込み用の一時的なロガー設定
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(tempLogger)
	log.Println("Log Config Loading...")

	// Configを読み込み
	if err := config.LoadConfig("../configs"); err != nil { // "configs" ディレクトリを指定
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// === 設定に基づいて slog ロガーを初期化 ===
	appEnv := os.Getenv("APP_ENV")
	logger, logCloser := config.NewLogger(config.Cfg.Log, appEnv)
	log.Println("Log Config Loaded...")
	slog.SetDefault(logger)

	slog.Info("Application starting...", slog.String("version", config.AppVersion), slog.String("APP_ENV", appEnv))

	// 1. ローカルキャッシュ (SQLite)
	localDB, err := repository.NewLocalDB(config.Cfg.Storage.Path, logger)
	if err != nil {
		slog.Error("Error initializing local cache", slog.Any("error", err))
		os.Exit(1)
	}
	localSQL, err := localDB.DB()
	if err != nil {
		slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		os.Exit(1)
	}

	// 2. 認証情報ストアとリモート接続
	creds, err := config.NewCredentialStore(config.Cfg.Storage.SettingsFile, config.CredentialDefaults{
		APIKey:    config.Cfg.AI.APIKey,
		ModelName: config.Cfg.AI.ModelName,
		Remote:    config.Cfg.Remote,
	}, logger)
	if err != nil {
		slog.Error("Error loading settings", slog.Any("error", err))
		os.Exit(1)
	}
	clients := repository.NewClientFactory(creds.RemoteConfig(), logger)
	creds.OnChange(clients.Reconfigure)
	creds.Watch()

	sessions := session.NewJWTProvider(func() string { return clients.Config().Key }, logger)
	if token := config.Cfg.Session.Token; token != "" {
		if _, err := sessions.SetToken(token); err != nil {
			slog.Warn("Configured session token rejected, starting signed out", slog.Any("error", err))
		}
	}

	// 3. Dependency Injection
	lib := service.NewLibrary(repository.NewGormSnapshotRepository(localDB), clients, sessions, logger)
	lib.Start(middleware.WithLogger(context.Background(), logger))

	settingsHandler := handlers.NewSettingsHandler(creds, sessions, lib, logger)

	// 4. Setup Router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))

	// CORS 設定と適用 (設定ファイルから読み込んだ値を使用)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   config.Cfg.CORS.AllowedOrigins,
		AllowedMethods:   config.Cfg.CORS.AllowedMethods,
		AllowedHeaders:   config.Cfg.CORS.AllowedHeaders,
		ExposedHeaders:   config.Cfg.CORS.ExposedHeaders,
		AllowCredentials: config.Cfg.CORS.AllowCredentials,
		MaxAge:           config.Cfg.CORS.MaxAge,
		Debug:            false,
	})
	r.Use(corsHandler.Handler)

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionTokenMiddleware(sessions))
		handlers.APIRoutes(lib, settingsHandler, logger)(r)
	})

	// Health Check (ローカルキャッシュのみ。リモートが落ちていても動作する)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := localSQL.PingContext(ctx); err != nil {
			slog.ErrorContext(ctx, "Health check failed: could not ping local cache", slog.Any("error", err))
			http.Error(w, "Health check failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 5. Start Server
	server := &http.Server{
		Addr:         config.Cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", slog.String("port", config.Cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", slog.String("port", config.Cfg.Server.Port), slog.Any("error", err))
			os.Exit(1) // Listen失敗は致命的
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// 送信中のリモート書き込みを待ってから接続を閉じる
	lib.Close()
	lib.Wait()
	if err := clients.Close(); err != nil {
		slog.Error("Error closing remote connection", slog.Any("error", err))
	}
	if err := localSQL.Close(); err != nil {
		slog.Error("Error closing local cache", slog.Any("error", err))
	} else {
		slog.Info("Local cache closed.")
	}
	if logCloser != nil {
		logCloser.Close()
	}

	log.Println("Server exiting")
}
