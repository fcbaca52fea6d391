package main

import (
	"context"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/api"
	"github.com/inhaletech/inhalyzer/internal/backend"
	"github.com/inhaletech/inhalyzer/internal/channel"
	"github.com/inhaletech/inhalyzer/internal/config"
	"github.com/inhaletech/inhalyzer/internal/database"
	"github.com/inhaletech/inhalyzer/internal/session"
	"github.com/inhaletech/inhalyzer/internal/storage"
	"github.com/inhaletech/inhalyzer/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	runRepo := database.NewRunRepository(db)

	prober, err := validate.NewFFprobeProber()
	if err != nil {
		log.Fatal("failed to initialize video prober", zap.Error(err))
	}

	machine := session.NewMachine(log)
	adapter := channel.NewAdapter(channel.Config{
		BaseURL: cfg.BackendWSURL,
		Logger:  log,
	})
	client := backend.NewClient(cfg.BackendURL, log)
	runner := session.NewRunner(machine, client, adapter, localStorage, cfg.LLMModels, log)

	// Archive every completed run so results survive the session.
	machine.Subscribe(func(snap session.Snapshot) {
		if snap.State != session.StateCompleted || snap.Result == nil {
			return
		}
		deviceID := snap.Result.DeviceType
		if deviceID == "" && snap.Device != nil {
			deviceID = snap.Device.ID
		}
		if _, err := runRepo.InsertRun(context.Background(), deviceID, snap.Result); err != nil {
			log.Warn("failed to archive completed run", zap.Error(err))
		}
	})

	app := &api.App{
		Machine:       machine,
		Runner:        runner,
		Validator:     validate.NewValidator(prober, log),
		Storage:       localStorage,
		RunRepo:       runRepo,
		MaxUploadSize: cfg.MaxUploadSize,
		Hub:           api.NewSnapshotHub(machine),
		Log:           log,
	}

	router := api.NewRouter(app)

	log.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("upload_dir", cfg.UploadDir),
		zap.String("db_path", cfg.DBPath),
		zap.String("backend_url", cfg.BackendURL),
		zap.Int64("max_upload_size", cfg.MaxUploadSize))

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
