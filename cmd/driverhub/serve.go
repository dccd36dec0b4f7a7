package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driverhub/internal/application"
	"driverhub/internal/db"
	"driverhub/internal/identity"
	"driverhub/internal/migration"
	"driverhub/internal/notify"
	"driverhub/internal/realtime"
	"driverhub/internal/seed"
	"driverhub/internal/server"
	"driverhub/internal/storage"
	"driverhub/internal/store"
	"driverhub/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	cognitoClient := cognitoidentityprovider.NewFromConfig(awsConfig)
	s3Client := s3.NewFromConfig(awsConfig)
	snsClient := sns.NewFromConfig(awsConfig)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	appsRepo := store.NewApplicationRepository(pool)
	activityRepo := store.NewActivityLogRepository(pool)
	messageRepo := store.NewMessageRepository(pool)
	configRepo := store.NewConfigRepository(pool)

	portalConfig, err := configRepo.PortalConfig(ctx, store.DefaultConfigKey)
	if err != nil {
		if !errors.Is(err, types.ErrConfigNotFound) {
			return err
		}
		logger.Warn("portal config not seeded, serving built-in defaults")
		portalConfig = seed.DefaultPortalConfig()
	}

	idents := identity.NewCognitoProvider(cognitoClient, config.CognitoClientID, logger)
	blobs := storage.NewS3Store(s3Client, config.StorageBucket, config.StorageBaseURL)
	push := notify.NewSNSPublisher(snsClient, config.PushTopicARN, logger)

	engine := migration.NewEngine()
	hub := realtime.NewHub()

	apps := application.NewService(appsRepo, activityRepo, idents, blobs, engine, hub, push, logger)

	autosaver := application.NewAutosaver(
		time.Duration(config.AutosaveDelayMS)*time.Millisecond,
		apps.SaveDraft,
		logger,
	)
	defer autosaver.Close()

	var scheduler *cron.Cron
	if config.ReconcileEnabled {
		reconciler := migration.NewReconciler(engine, appsRepo, logger)

		scheduler = cron.New()
		_, err = scheduler.AddFunc(config.ReconcileCron, func() {
			report, err := reconciler.Run(context.Background())
			if err != nil {
				logger.WithError(err).Error("scheduled reconciliation failed")
				return
			}
			logger.WithFields(logrus.Fields{
				"checked": report.Checked,
				"updated": report.Updated,
				"skipped": report.Skipped,
				"failed":  report.Failed,
			}).Info("scheduled reconciliation complete")
		})
		if err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	jwkCache, err := jwk.NewCache(context.Background(), httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initilaize jwk cache: %w", err)
	}

	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", config.CognitoIssuerURL)

	err = jwkCache.Register(context.Background(), jwksURL)
	if err != nil {
		return fmt.Errorf("failed to register cognito jwk with cache: %w", err)
	}

	srv, err := server.New(
		config,
		logger,
		portalConfig,
		apps,
		autosaver,
		messageRepo,
		activityRepo,
		idents,
		hub,
		jwkCache,
		jwksURL,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
