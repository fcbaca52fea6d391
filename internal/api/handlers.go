package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/backend"
	"github.com/inhaletech/inhalyzer/internal/database"
	"github.com/inhaletech/inhalyzer/internal/export"
	"github.com/inhaletech/inhalyzer/internal/models"
	"github.com/inhaletech/inhalyzer/internal/session"
	"github.com/inhaletech/inhalyzer/internal/storage"
	"github.com/inhaletech/inhalyzer/internal/validate"
)

// App bundles the dependencies the presentation handlers forward user
// intents into. Handlers never mutate session state directly; everything
// goes through the machine and the runner.
type App struct {
	Machine       *session.Machine
	Runner        *session.Runner
	Validator     *validate.Validator
	Storage       storage.Storage
	RunRepo       *database.RunRepository
	MaxUploadSize int64
	Hub           *SnapshotHub
	Log           *zap.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, models.Devices())
}

func (app *App) SessionHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.Machine.Snapshot())
}

func (app *App) SelectDeviceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := app.Machine.SelectDevice(req.DeviceID); err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownDevice):
			app.writeError(w, http.StatusBadRequest, "unknown device id: "+req.DeviceID)
		case errors.Is(err, session.ErrNotAllowed):
			app.writeError(w, http.StatusConflict, "device cannot be changed in the current state")
		default:
			app.writeError(w, http.StatusInternalServerError, "failed to select device")
		}
		return
	}

	app.writeJSON(w, http.StatusOK, app.Machine.Snapshot())
}

func (app *App) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "failed to read video from request")
		return
	}
	defer file.Close()

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)

	// The prober needs the file on disk, so store first and roll back on a
	// failed validation. A rejected pick leaves the session untouched.
	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to save video")
		return
	}

	metadata, err := app.Validator.Validate(r.Context(), validate.Candidate{
		Path:        app.Storage.GetFilePath(filename),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		app.Storage.DeleteFile(filename)
		app.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	previous := app.Machine.UploadedVideo()

	video := models.NewVideo(filename, contentType, header.Size, metadata)
	if err := app.Machine.AttachVideo(video); err != nil {
		app.Storage.DeleteFile(filename)
		app.writeError(w, http.StatusConflict, "a video cannot be attached in the current state")
		return
	}

	if previous != nil && previous.Filename != filename {
		if err := app.Storage.DeleteFile(previous.Filename); err != nil {
			app.Log.Warn("failed to remove replaced video", zap.String("file", previous.Filename), zap.Error(err))
		}
	}

	app.writeJSON(w, http.StatusOK, app.Machine.Snapshot())
}

func (app *App) StartAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Runner.Start(r.Context()); err != nil {
		var transport *backend.TransportError
		switch {
		case errors.Is(err, session.ErrPrecondition):
			app.writeError(w, http.StatusBadRequest, "please select a device and upload a video first")
		case errors.Is(err, session.ErrNotAllowed):
			app.writeError(w, http.StatusConflict, "analysis cannot be started in the current state")
		case errors.As(err, &transport):
			app.writeError(w, http.StatusBadGateway, "analysis backend rejected the request")
		default:
			app.Log.Error("failed to start analysis", zap.Error(err))
			app.writeError(w, http.StatusBadGateway, "failed to start analysis")
		}
		return
	}

	app.writeJSON(w, http.StatusOK, app.Machine.Snapshot())
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	app.Runner.Reset()
	app.writeJSON(w, http.StatusOK, app.Machine.Snapshot())
}

func (app *App) ExportHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		app.writeError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}

	snap := app.Machine.Snapshot()
	if snap.Result == nil {
		app.writeError(w, http.StatusNotFound, "no analysis result to save")
		return
	}

	deviceID := snap.Result.DeviceType
	if deviceID == "" && snap.Device != nil {
		deviceID = snap.Device.ID
	}
	filename := export.Filename(deviceID, format, time.Now())

	var data []byte
	var contentType string
	switch format {
	case "csv":
		data = export.CSV(snap.Result, time.Now())
		contentType = "text/csv; charset=utf-8"
	case "json":
		var err error
		data, err = export.JSON(snap.Result)
		if err != nil {
			app.Log.Error("export failed", zap.Error(err))
			app.writeError(w, http.StatusInternalServerError, "failed to export result")
			return
		}
		contentType = "application/json; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	runs, err := app.RunRepo.ListRuns(r.Context(), 50)
	if err != nil {
		app.Log.Error("failed to list archived runs", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	type runSummary struct {
		ID          string    `json:"id"`
		DeviceID    string    `json:"deviceId"`
		FileName    string    `json:"fileName"`
		TotalSteps  int       `json:"totalSteps"`
		PassedSteps int       `json:"passedSteps"`
		FailedSteps int       `json:"failedSteps"`
		Score       float64   `json:"score"`
		CompletedAt time.Time `json:"completedAt"`
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary{
			ID:          run.ID,
			DeviceID:    run.DeviceID,
			FileName:    run.FileName,
			TotalSteps:  run.TotalSteps,
			PassedSteps: run.PassedSteps,
			FailedSteps: run.FailedSteps,
			Score:       run.Score,
			CompletedAt: run.CompletedAt,
		})
	}

	app.writeJSON(w, http.StatusOK, summaries)
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Log.Warn("failed to write response", zap.Error(err))
	}
}

func (app *App) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, map[string]string{"error": message})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, validate.ErrUnsupportedType):
		return "please select a video file (supported: MP4, MOV, AVI, MKV)"
	case errors.Is(err, validate.ErrTooLarge):
		return "the file is too large (max 500MB)"
	case errors.Is(err, validate.ErrUnreadable):
		return "the video file could not be read"
	default:
		return "the video file was rejected"
	}
}

func detectContentType(headerType, filename string) string {
	if headerType != "" && headerType != "application/octet-stream" {
		return headerType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return headerType
	}
}
