package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/backend"
	"github.com/inhaletech/inhalyzer/internal/channel"
	"github.com/inhaletech/inhalyzer/internal/export"
	"github.com/inhaletech/inhalyzer/internal/models"
	"github.com/inhaletech/inhalyzer/internal/storage"
)

// Runner coordinates one analysis run: it ships the stored video to the
// backend, starts the run, and feeds realtime channel events into the
// state machine. The machine stays the single owner of session state.
type Runner struct {
	machine   *Machine
	backend   *backend.Client
	adapter   *channel.Adapter
	store     storage.Storage
	llmModels []string
	log       *zap.Logger
}

func NewRunner(machine *Machine, client *backend.Client, adapter *channel.Adapter, store storage.Storage, llmModels []string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		machine:   machine,
		backend:   client,
		adapter:   adapter,
		store:     store,
		llmModels: llmModels,
		log:       log.Named("runner"),
	}
}

// Start uploads the attached video, starts the backend run and connects
// the realtime channel. Transport errors before the run starts are
// returned to the caller and cause no state transition.
func (r *Runner) Start(ctx context.Context) error {
	snap := r.machine.Snapshot()
	video := r.machine.UploadedVideo()
	if snap.State != StateFileUploaded || snap.Device == nil || video == nil {
		return ErrPrecondition
	}

	file, err := r.store.OpenFile(video.Filename)
	if err != nil {
		return fmt.Errorf("failed to open stored video: %w", err)
	}
	defer file.Close()

	upload, err := r.backend.UploadVideo(ctx, file, video.Metadata.FileName, snap.Device.Family)
	if err != nil {
		return err
	}

	start, err := r.backend.StartAnalysis(ctx, upload.VideoID, r.llmModels)
	if err != nil {
		return err
	}

	if err := r.machine.StartRun(start.AnalysisID); err != nil {
		return err
	}
	r.machine.AppendLog("Analysis started", models.LogInfo)
	r.machine.ApplyProgress(0, "", export.EstimateAnalysisTime(video.Metadata.Duration))

	// The channel must outlive the HTTP request that triggered the start.
	r.attachChannel(context.Background(), start.AnalysisID)
	return nil
}

// Reset detaches the realtime channel, clears the session and removes the
// stored upload. It does not cancel the remote run; late events for an
// abandoned run are cut off by the channel disconnect.
func (r *Runner) Reset() {
	r.adapter.Disconnect()
	video := r.machine.UploadedVideo()
	r.machine.Reset()
	if video != nil {
		if err := r.store.DeleteFile(video.Filename); err != nil {
			r.log.Warn("failed to remove stored video", zap.String("file", video.Filename), zap.Error(err))
		}
	}
}

func (r *Runner) attachChannel(ctx context.Context, analysisID string) {
	r.adapter.On(channel.EventProgress, func(e channel.Event) {
		var p channel.ProgressPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			r.log.Warn("dropping malformed progress event", zap.Error(err))
			return
		}
		r.machine.ApplyProgress(p.Progress, p.CurrentStage, p.EstimatedTime)
	})

	r.adapter.On(channel.EventStage, func(e channel.Event) {
		var p channel.StagePayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			r.log.Warn("dropping malformed stage event", zap.Error(err))
			return
		}
		r.machine.SetStage(p.Stage)
	})

	r.adapter.On(channel.EventLog, func(e channel.Event) {
		var p channel.LogPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			r.log.Warn("dropping malformed log event", zap.Error(err))
			return
		}
		r.machine.AppendLog(p.Message, logLevel(p.Level))
	})

	r.adapter.On(channel.EventCompleted, func(e channel.Event) {
		var result models.AnalysisResult
		if err := json.Unmarshal(e.Data, &result); err != nil {
			r.log.Warn("dropping malformed completed event", zap.Error(err))
			return
		}
		if err := r.machine.Complete(&result); err != nil {
			r.log.Warn("ignoring duplicate completion", zap.Error(err))
			return
		}
		r.adapter.Disconnect()
	})

	r.adapter.On(channel.EventError, func(e channel.Event) {
		var p channel.ErrorPayload
		if err := json.Unmarshal(e.Data, &p); err != nil || p.Message == "" {
			p.Message = "analysis failed"
		}
		r.machine.Fail(p.Message)
		r.adapter.Disconnect()
	})

	if err := r.adapter.Connect(ctx, analysisID); err != nil {
		r.log.Error("failed to connect analysis channel", zap.String("analysis_id", analysisID), zap.Error(err))
		r.machine.Fail("failed to open analysis channel")
	}
}

func logLevel(level string) models.LogLevel {
	switch models.LogLevel(level) {
	case models.LogSuccess, models.LogProgress, models.LogPending, models.LogError, models.LogInfo:
		return models.LogLevel(level)
	default:
		return models.LogInfo
	}
}
