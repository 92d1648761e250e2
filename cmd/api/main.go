package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"churn-prediction-api/classifier"
	"churn-prediction-api/config"
	"churn-prediction-api/handlers"
	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/observability"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	createAdmin := flag.Bool("create-admin", false, "create an admin account and exit")
	adminUser := flag.String("admin-username", "admin", "username for -create-admin")
	adminEmail := flag.String("admin-email", "", "email for -create-admin")
	adminPassword := flag.String("admin-password", "", "password for -create-admin (or CHURN_ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
	}
	predictionStore := store.New(db)
	if err := predictionStore.Migrate(); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	authService := services.NewAuthService(cfg.JWT)

	if *createAdmin {
		password := *adminPassword
		if password == "" {
			password = os.Getenv("CHURN_ADMIN_PASSWORD")
		}
		if err := ensureAdmin(db, authService, *adminUser, *adminEmail, password); err != nil {
			log.Fatal("create admin failed", "error", err)
		}
		log.Info("admin account ready", "username", *adminUser)
		return
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing := observability.InitTracing(ctx, log, "churn-api", cfg.Tracing, cfg.Server.Env)

	cache, err := services.NewCacheService(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, running without cache and live feed", "error", err)
	}

	model := classifier.NewProvider(classifier.FromConfig(cfg.Model))
	if _, err := model.Classifier(ctx); err != nil {
		// the failure is cached; prediction routes answer 500 until restart
		log.Error("classifier failed to load", "kind", cfg.Model.Kind, "path", cfg.Model.Path, "error", err)
	} else {
		log.Info("classifier loaded", "kind", cfg.Model.Kind, "path", cfg.Model.Path)
	}

	text := services.NewChatTextService(cfg.LLM, log)
	if !text.Configured() {
		log.Warn("llm api key not set, explanations and summaries use placeholders")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:      cfg,
		DB:          db,
		Store:       predictionStore,
		Predictions: services.NewPredictionService(model, predictionStore, text, cache, log),
		Text:        text,
		Auth:        authService,
		Cache:       cache,
		Model:       model,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing shutdown failed", "error", err)
	}
	_ = cache.Close()
	log.Info("server stopped")
}

// ensureAdmin creates the admin account, or promotes and re-passwords an
// existing user with the same username.
func ensureAdmin(db *gorm.DB, auth *services.AuthService, username, email, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("admin username is required")
	}
	if len(password) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}
	if email == "" {
		email = username + "@localhost"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	var user models.User
	err = db.Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Username: username, Email: strings.ToLower(email), Password: hash, Role: models.RoleAdmin}
		return db.Create(&user).Error
	case err != nil:
		return err
	}
	return db.Model(&user).Updates(map[string]any{"role": models.RoleAdmin, "password_hash": hash}).Error
}
