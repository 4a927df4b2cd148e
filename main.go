package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"traffic-analyzer/internal/alerts"
	"traffic-analyzer/internal/analysis"
	"traffic-analyzer/internal/arduino"
	"traffic-analyzer/internal/camera"
	"traffic-analyzer/internal/config"
	"traffic-analyzer/internal/db"
	"traffic-analyzer/internal/gemini"
	httpapi "traffic-analyzer/internal/http"
	"traffic-analyzer/internal/repository"
	"traffic-analyzer/internal/sensor"
	"traffic-analyzer/internal/service"
	trafficsignal "traffic-analyzer/internal/signal"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Lane telemetry storage is optional: without a DSN the dashboard
	// simply has no history panel.
	var laneRepo *repository.LaneRepository
	if cfg.Database.DSN != "" {
		conn, err := db.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		laneRepo = repository.NewLaneRepository(conn)
	} else {
		log.Warn().Msg("no database configured, lane history disabled")
	}

	store := analysis.NewStore(cfg.Gemini.CallInterval, cfg.Gemini.DefaultBackoff)

	var classifier analysis.Classifier
	if cfg.Gemini.Mock || cfg.Gemini.APIKey == "" {
		if !cfg.Gemini.Mock {
			log.Warn().Msg("no gemini api key, falling back to mock analysis")
		}
		classifier = gemini.NewMockClassifier(time.Now().UnixNano())
	} else {
		classifier = gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, log)
	}

	worker := analysis.NewWorker(store, classifier, log)
	scheduler := analysis.NewScheduler(store, worker, log)
	controller := trafficsignal.NewController()

	var speaker alerts.Speaker
	if cfg.TTS.APIKey != "" {
		speaker = alerts.NewTTSClient(cfg.TTS.APIKey, cfg.TTS.VoiceID, cfg.TTS.ModelID, nil, log)
	}
	dispatcher := alerts.NewDispatcher(speaker, log)

	hardware := arduino.NewController(log)
	if cfg.Serial.Port != "" {
		if err := hardware.Connect(cfg.Serial.Port, cfg.Serial.Baud); err != nil {
			log.Warn().Err(err).Str("port", cfg.Serial.Port).Msg("serial connect failed, continuing without hardware")
		}
	}
	defer hardware.Close()

	trafficService := service.NewTrafficService(store, scheduler, controller, dispatcher, hardware, laneRepo, log)

	// Lane loop sensor feeds passage telemetry into storage.
	laneSensor := sensor.NewReader(func(ctx context.Context, lane string) {
		if err := trafficService.RecordLanePassage(ctx, lane); err != nil {
			log.Warn().Err(err).Str("lane", lane).Msg("lane passage not recorded")
		}
	}, time.Now().UnixNano(), log)
	laneSensor.Start(ctx)

	// Frame path: every captured frame runs the admission gate.
	if cfg.Camera.Mock {
		source := camera.NewMockSource(cfg.Camera.FPS)
		source.Start(ctx)
		go func() {
			for frame := range source.Frames() {
				trafficService.ProcessFrame(frame.Image, frame.CapturedAt)
			}
		}()
	}

	// Decision tick, decoupled from frame arrival.
	go func() {
		ticker := time.NewTicker(cfg.Signal.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				trafficService.Tick(now)
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	handler := httpapi.NewHandler(trafficService, hardware, cfg, log)
	handler.Register(router, httpapi.JWTAuthMiddleware(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
