package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"leaf_backend/internal/app/config"
	"leaf_backend/internal/app/di"
	"leaf_backend/internal/app/router"
	"leaf_backend/internal/feature/detection/adapters"
	"leaf_backend/internal/feature/detection/adapters/annotate"
	"leaf_backend/internal/feature/detection/adapters/devicecam"
	"leaf_backend/internal/feature/detection/adapters/filestore"
	"leaf_backend/internal/feature/detection/transport/handler"
	"leaf_backend/internal/feature/detection/transport/web"
	"leaf_backend/internal/feature/detection/usecase"
	platformdb "leaf_backend/internal/platform/db"
	"leaf_backend/internal/platform/events"
	platformhandler "leaf_backend/internal/platform/http/handler"
	jwtmw "leaf_backend/internal/platform/jwt"
	"leaf_backend/internal/platform/metrics"
	infraredis "leaf_backend/internal/platform/redis"
)

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx := context.Background()

	// モデル（プロセス内で1回だけ読み込む）
	cachedModel := usecase.NewCachedModel(di.NewModelLoader(ctx, cfg.ModelBackend))
	model, err := cachedModel.Get()
	if err != nil {
		log.Fatal("failed to load detection model: ", err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			log.Println("[ERROR] Failed to close model:", err)
		}
	}()

	// db
	db, err := platformdb.OpenDB(platformdb.LoadConfigFromEnv())
	if err != nil {
		log.Fatal(err)
	}

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(ctx, infraredis.LoadConfig()); err != nil {
		if errors.Is(err, infraredis.ErrNotConfigured) {
			log.Println("[WARN] REDIS_HOST is not set. Sessions are kept in memory and advice is not cached.")
		} else {
			log.Println("[WARN] Redis unavailable. Sessions are kept in memory and advice is not cached:", err)
		}
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	// Repository / adapters
	sessions := di.NewSessionRepository(rdb, cfg.SessionTTL)
	history := adapters.NewHistoryRepository(db)
	results, err := filestore.NewDirStore(cfg.ResultDir)
	if err != nil {
		log.Fatal(err)
	}
	hub := events.NewHub()
	m := metrics.New()

	deps := usecase.Deps{
		Sessions:      sessions,
		Model:         model,
		Annotator:     annotate.NewBoxAnnotator(),
		Results:       results,
		History:       history,
		Events:        hub,
		Recorder:      m,
		Profile:       cfg.Profile,
		MaxImageBytes: int(cfg.MaxImageBytes),
	}
	if cfg.CameraDevice != "" {
		deps.Camera = devicecam.NewDeviceCamera(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight)
	}

	advice, err := di.NewAdviceGenerator(ctx, cfg, rdb)
	if err != nil {
		log.Println("[WARN] Gemini unavailable. Treatment advice is disabled:", err)
		advice = nil
	}

	// Usecase
	detectionUC := usecase.NewDetectionUsecase(deps)
	adviceUC := usecase.NewAdviceUsecase(sessions, advice)

	// Handler
	detectionH := handler.NewDetectionHandler(detectionUC, adviceUC, cfg.MaxImageBytes)
	eventsH := handler.NewEventsHandler(detectionUC, hub, cfg.CORSOrigins)
	pageH := web.NewPageHandler(cfg.Profile, advice != nil)
	tmpl, err := web.Templates()
	if err != nil {
		log.Fatal(err)
	}

	// ヘルスチェック
	checks := map[string]platformhandler.Check{
		"model": func(context.Context) error {
			_, err := cachedModel.Get()
			return err
		},
		"db": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// SESSION_SECRETチェック（開発中の注意喚起）
	secret := cfg.SessionSecret
	if secret == "" {
		log.Println("[WARN] SESSION_SECRET is not set. Using an ephemeral secret; sessions will not survive a restart.")
		secret = uuid.NewString() + uuid.NewString()
	}
	gen := jwtmw.NewGenerator(secret, cfg.SessionTTL)

	// ルータ生成
	r := router.NewRouter(router.Deps{
		Detection:   detectionH,
		Events:      eventsH,
		Page:        pageH,
		Templates:   tmpl,
		Health:      platformhandler.NewHealth(checks),
		Metrics:     m.Handler(),
		Session:     jwtmw.SessionRequired(gen, jwtmw.CookieOptions{MaxAge: cfg.SessionTTL, Secure: cfg.CookieSecure}),
		CORSOrigins: cfg.CORSOrigins,
	})

	slog.Info("server starting",
		"port", cfg.Port,
		"profile", cfg.Profile.Name,
		"model", model.Name(),
		"classes", model.Labels().Len(),
		"advice", advice != nil,
	)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
