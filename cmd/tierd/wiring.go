package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"tierd/internal/backend"
	"tierd/internal/common/fsutil"
	"tierd/internal/config"
	"tierd/internal/httpapi"
	"tierd/internal/logging"
	"tierd/internal/resource"
	"tierd/internal/router"
	"tierd/internal/service"
	"tierd/internal/session"
)

func buildLogger(lc config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:      lc.Level,
		Format:     lc.Format,
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	})
}

func buildMonitor(rc config.ResourceConfig) resource.Monitor {
	switch rc.Monitor {
	case "nvidia":
		return &resource.NvidiaSMI{Binary: rc.NvidiaSMI, Timeout: config.Seconds(rc.TimeoutSec)}
	case "static":
		return resource.Static{Label: rc.StaticLabel, TotalMB: rc.StaticTotalMB, UsedMB: rc.StaticUsedMB}
	default:
		return resource.None{}
	}
}

func buildStore(sc config.SessionConfig) (session.Store, error) {
	if sc.Store != "sqlite" {
		return session.NewMemoryStore(), nil
	}
	path, err := fsutil.ExpandHome(sc.Path)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureParentDir(path); err != nil {
		return nil, err
	}
	st, err := session.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return st, nil
}

func serviceConfig(cfg config.Config, log zerolog.Logger) service.Config {
	sc := cfg.Session
	return service.Config{
		Profiles:               cfg.Profiles(),
		WarningThreshold:       cfg.Resource.WarningThreshold,
		DeviceIndex:            cfg.Resource.DeviceIndex,
		SystemPrompt:           cfg.Backend.SystemPrompt,
		Classifier:             cfg.Router.Classifier,
		IdleInterval:           config.Seconds(cfg.Router.IdleIntervalSec),
		UnloadTimeout:          config.Seconds(cfg.Backend.UnloadTimeoutSec),
		SessionCleanupInterval: config.Seconds(sc.CleanupIntervalSec),
		Session: session.Config{
			MaxTurns:        sc.MaxTurns,
			MaxTags:         sc.MaxTags,
			Timeout:         config.Seconds(sc.TimeoutSec),
			MaxContextWords: sc.MaxContextWords,
			ContextTurns:    sc.ContextTurns,
			AnswerPreview:   sc.AnswerPreview,
		},
		Confidence: cfg.Confidence,
		Logger:     log,
	}
}

// buildService assembles the service and its collaborators. The returned
// cleanup closes what the service does not own.
func buildService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*service.Service, func(), error) {
	scfg := serviceConfig(cfg, log)
	bc := cfg.Backend
	b, err := backend.New(bc.Kind, bc.BaseURL, bc.APIKey, config.Seconds(bc.ConnectTimeoutSec),
		backend.Options{Temperature: bc.Temperature, TopP: bc.TopP, MaxTokens: bc.MaxTokens}, log)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	deps := service.Deps{Backend: b, Monitor: buildMonitor(cfg.Resource)}
	if rc := cfg.Redis; rc.Enabled {
		pub, err := router.NewRedisPublisher(ctx, router.RedisConfig{
			Addr:      rc.Addr,
			Password:  rc.Password,
			DB:        rc.DB,
			Stream:    rc.Stream,
			MaxLen:    rc.MaxLen,
			QueueSize: rc.QueueSize,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		deps.Publisher = pub
		cleanup = func() {
			if err := pub.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}
		log.Info().Str("addr", rc.Addr).Str("stream", rc.Stream).Msg("publishing router events to redis")
	}

	store, err := buildStore(cfg.Session)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Store = store

	svc, err := service.New(scfg, deps)
	if err != nil {
		_ = store.Close()
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func configureHTTP(sc config.ServerConfig, lc config.LoggingConfig, log zerolog.Logger) {
	httpapi.SetLogger(log)
	if os.Getenv("TIERD_HTTP_LOG_LEVEL") == "" {
		httpapi.SetDefaultLogLevel(lc.HTTPLevel)
	}
	httpapi.SetMaxBodyBytes(sc.MaxBodyBytes)
	httpapi.SetInferTimeout(config.Seconds(sc.InferTimeoutSec))
	httpapi.SetRateLimit(sc.RateLimitRPS, sc.RateLimitBurst)
	httpapi.SetCORSOptions(sc.CORS.Enabled, sc.CORS.Origins, sc.CORS.Methods, sc.CORS.Headers)
	httpapi.SetSwaggerEnabled(sc.Swagger)
}
