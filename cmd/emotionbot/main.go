package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"go-emotion-bot/config"
	primaryHTTP "go-emotion-bot/internal/adapters/primary/http"
	"go-emotion-bot/internal/adapters/secondary/artifacts"
	"go-emotion-bot/internal/adapters/secondary/faceapi"
	"go-emotion-bot/internal/adapters/secondary/rod"
	"go-emotion-bot/internal/adapters/secondary/uia"
	"go-emotion-bot/internal/adapters/secondary/wshub"
	"go-emotion-bot/internal/core/ports"
	"go-emotion-bot/internal/core/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize Adapters
	var backends ports.BackendFactory
	switch cfg.Bot.Variant {
	case "desktop":
		backends = uia.Factory(cfg.Bot.AgentURL, cfg.Bot.ClientPath, log)
	default:
		backends = rod.Factory(cfg.Bot.BrowserBin, cfg.Bot.Headless, log)
	}

	analyzer := faceapi.NewSerial(faceapi.New(cfg.Inference.URL))
	hub := wshub.NewHub(log)

	var frames ports.FrameStore
	if cfg.Artifacts.Enabled {
		store, err := artifacts.NewStore(cfg.Artifacts.Dir)
		if err != nil {
			log.Fatalf("Failed to create artifacts store: %v", err)
		}
		frames = store
	}

	// Initialize Service (Core)
	botService := services.NewBotService(backends, analyzer, hub, frames, log, services.Options{
		DefaultBotName:  cfg.Bot.DefaultBotName,
		DefaultInterval: cfg.CaptureInterval(),
		DataDirRoot:     cfg.Bot.DataDir,
	})

	// Initialize Driving Adapter (HTTP)
	httpHandler := primaryHTTP.NewHandler(botService, hub)

	// Setup Router (Go 1.22+ ServeMux)
	mux := http.NewServeMux()
	httpHandler.RegisterRoutes(mux)

	log.WithFields(logrus.Fields{
		"addr":    cfg.Server.Addr,
		"variant": cfg.Bot.Variant,
	}).Info("Starting server")
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
