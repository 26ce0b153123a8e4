package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"feedback-media-worker/config"
	"feedback-media-worker/constant"
	jobHandler "feedback-media-worker/handler"
	"feedback-media-worker/pkg/rabbitmq"
	"feedback-media-worker/repository"
	"feedback-media-worker/service"
	"feedback-media-worker/transcriber"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo := repository.NewRepo(cfg.DB)
	pipeline := service.NewPipeline(repo, transcriber.NewOpenAITranscriber(cfg), cfg.Pipeline)

	serviceDeps := jobHandler.ServiceDependencies{
		Pipeline: pipeline,
	}

	// Queue-published triggers are optional; cron can drive the HTTP
	// surface instead.
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("queue unavailable, continuing without trigger consumer")
	} else {
		triggerConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.ProcessTriggerHandler)
		go func() {
			err := triggerConsumer.Consume(ctx, serviceDeps)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Trigger consumer error")
			}
		}()
	}

	r := gin.Default()
	addHealth(r)

	internal := r.Group("/internal/media")
	internal.POST("/audio/process", jobHandler.ProcessMedia(pipeline, constant.MediaTypeAudio))
	internal.POST("/video/process", jobHandler.ProcessMedia(pipeline, constant.MediaTypeVideo))

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	// The signal context is already canceled here; drain in-flight
	// requests on a fresh deadline instead.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
