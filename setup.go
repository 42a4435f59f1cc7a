package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/config"
	"github.com/Yulian302/lfusys-services-uploads/health"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/tracing"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Engine     *gin.Engine
	HTTPServer *http.Server

	DynamoDB *dynamodb.Client
	S3       *s3.Client
	Sqs      *sqs.Client
	Redis    *redis.Client

	Config    config.Config
	AwsConfig aws.Config

	Services       *Services
	TracerProvider *trace.TracerProvider
	Logger         logging.Logger

	serving atomic.Bool
}

func SetupApp() (*App, error) {
	cfg := config.LoadConfig()

	appLogger := logging.NewSlogLogger(logging.CreateAppLogger(cfg.Env))

	app := &App{
		Config: cfg,
		Logger: appLogger,
	}

	// The "memory" backend runs entirely in-process, no AWS clients.
	if cfg.StorageConfig.Backend != "memory" {
		if err := cfg.AWSConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}

		awsCfg, err := initAWS(*cfg.AWSConfig)
		if err != nil {
			return nil, err
		}

		app.AwsConfig = awsCfg
		app.DynamoDB = dynamodb.NewFromConfig(awsCfg)
		app.Sqs = sqs.NewFromConfig(awsCfg)

		if cfg.StorageConfig.Backend == "s3" {
			if cfg.StorageConfig.S3Bucket == "" {
				return nil, errors.New("S3_BUCKET is required for the s3 backend")
			}
			app.S3 = s3.NewFromConfig(awsCfg)
		}
	}

	if cfg.RedisConfig.Enabled {
		app.Redis = initRedis(*cfg.RedisConfig)
	}

	if cfg.Tracing {
		tp, err := tracing.InitTracer(context.Background(), "uploads", cfg.TracingAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		app.TracerProvider = tp
	}

	app.Services = BuildServices(app)

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	if a.Config.Tracing {
		engine.Use(otelgin.Middleware("uploads"))
	}

	a.Services.UploadHandler.RegisterRoutes(engine)

	engine.GET("/healthz", func(c *gin.Context) {
		if a.serving.Load() {
			c.JSON(http.StatusOK, gin.H{"status": "serving"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not serving"})
	})

	a.Engine = engine
	a.HTTPServer = &http.Server{
		Addr:         a.Config.ServiceConfig.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	a.startReadinessTicker(ctx)

	a.Logger.Info("http server starting", "addr", a.Config.ServiceConfig.HTTPAddr)

	if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) startReadinessTicker(ctx context.Context) {
	checks := []health.ReadinessCheck{
		a.Services.Stores.sessions,
		a.Services.Stores.files,
	}

	// start pessimistic
	a.serving.Store(false)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		probe := func() {
			for _, c := range checks {
				cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
				err := c.IsReady(cctx)
				cancel()

				if err != nil {
					a.Logger.Warn("readiness check failed", "check", c.Name(), "error", err)
					a.serving.Store(false)
					return
				}
			}
			a.serving.Store(true)
		}

		probe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

func initAWS(cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: "",
		DB:       0,
	})
}

func (a *App) Shutdown(ctx context.Context) error {
	log.Println("starting graceful shutdown")

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			log.Printf("http server shutdown error: %v", err)
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	if a.TracerProvider != nil {
		if err := a.TracerProvider.Shutdown(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}

	log.Println("graceful shutdown complete")
	return nil
}
