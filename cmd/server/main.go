package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/entitlement"
	"github.com/dmitrymomot/paygate/httpapi"
	"github.com/dmitrymomot/paygate/payment"
	"github.com/dmitrymomot/paygate/pkg/config"
	"github.com/dmitrymomot/paygate/pkg/httpserver"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/pg"
	"github.com/dmitrymomot/paygate/pkg/ratelimiter"
	"github.com/dmitrymomot/paygate/pkg/redis"
	"github.com/dmitrymomot/paygate/purchase"
	"github.com/dmitrymomot/paygate/session"
	"github.com/dmitrymomot/paygate/storage"
)

type appConfig struct {
	Env          string        `env:"APP_ENV" envDefault:"production"`       // Env switches development conveniences such as the filesystem mail sender.
	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL" envDefault:"15m"`       // SignedURLTTL bounds content item URL validity.
	DevEmailDir  string        `env:"DEV_EMAIL_DIR" envDefault:"tmp/emails"` // DevEmailDir is where the development sender writes emails.
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.New(logCfg, logger.WithAttr(slog.String("service", "paygate")))

	if err := run(context.Background(), appCfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var paddleCfg payment.PaddleConfig
	config.MustLoad(&paddleCfg)
	provider, err := payment.NewPaddleProvider(paddleCfg)
	if err != nil {
		return err
	}

	mailer, err := newMailer(appCfg, log)
	if err != nil {
		return err
	}

	var s3Cfg storage.S3Config
	config.MustLoad(&s3Cfg)
	files, err := storage.NewS3Provider(ctx, s3Cfg)
	if err != nil {
		return err
	}

	contentStore := content.NewPostgresStore(pool)
	resolver := content.NewResolver(contentStore, files, appCfg.SignedURLTTL, log)

	var sessionCfg session.Config
	config.MustLoad(&sessionCfg)
	sessions := session.NewManager(session.NewPostgresStore(pool), sessionCfg, log)

	var purchaseCfg purchase.Config
	config.MustLoad(&purchaseCfg)
	purchaseStore := purchase.NewPostgresStore(pool)
	purchases := purchase.NewService(purchaseStore, contentStore, sessions, provider, mailer, purchaseCfg, log)

	var entitlementCfg entitlement.Config
	config.MustLoad(&entitlementCfg)
	entitlements := entitlement.NewEngine(
		purchaseStore, entitlement.NewPostgresStore(pool), mailer, resolver, entitlementCfg, log)

	limitStore := ratelimiter.NewRedisStore(redisClient)
	deviceCodeLimiter, err := ratelimiter.NewBucket(limitStore, ratelimiter.Config{
		Capacity: 3, RefillRate: 3, RefillInterval: 5 * time.Minute,
	})
	if err != nil {
		return err
	}
	verifyLimiter, err := ratelimiter.NewBucket(limitStore, ratelimiter.Config{
		Capacity: 5, RefillRate: 5, RefillInterval: time.Minute,
	})
	if err != nil {
		return err
	}

	handler := httpapi.New(httpapi.Deps{
		Sessions:          sessions,
		Purchases:         purchases,
		Entitlements:      entitlements,
		Contents:          contentStore,
		Webhooks:          provider,
		DeviceCodeLimiter: deviceCodeLimiter,
		VerifyLimiter:     verifyLimiter,
		Healthcheck: httpserver.HealthCheckHandler(log,
			pg.Healthcheck(pool), redis.Healthcheck(redisClient)),
		Log: log,
	})

	var serverCfg httpserver.Config
	config.MustLoad(&serverCfg)
	return httpserver.New(serverCfg, log).Run(ctx, handler)
}

// newMailer picks the outbound email transport. Development writes emails
// to disk instead of requiring a Postmark account.
func newMailer(appCfg appConfig, log *slog.Logger) (email.Sender, error) {
	if appCfg.Env == "development" {
		log.Info("using filesystem email sender", "dir", appCfg.DevEmailDir)
		return email.NewDevSender(appCfg.DevEmailDir), nil
	}
	var emailCfg email.Config
	config.MustLoad(&emailCfg)
	return email.NewPostmarkSender(emailCfg)
}
