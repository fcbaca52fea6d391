package validate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/models"
)

// MaxFileSize is the upload ceiling: 500 MiB.
const MaxFileSize int64 = 500 * 1024 * 1024

var (
	ErrUnsupportedType = errors.New("validate: unsupported video type (supported: MP4, MOV, AVI, MKV)")
	ErrTooLarge        = errors.New("validate: file exceeds the 500MB limit")
	ErrUnreadable      = errors.New("validate: video file could not be read")
)

var allowedTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/x-matroska": true,
}

// ProbeInfo is what the metadata prober extracts by decoding the file.
type ProbeInfo struct {
	Duration float64
	Width    int
	Height   int
}

// Prober extracts duration and dimensions from a video file. Probing
// requires decoding, so it is asynchronous and may fail on corrupt input.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeInfo, error)
}

// Candidate describes a file offered for validation.
type Candidate struct {
	Path        string // location on disk for the prober
	FileName    string // original name as picked by the user
	ContentType string
	Size        int64
}

// Validator decides upload admissibility and extracts metadata.
type Validator struct {
	prober  Prober
	maxSize int64
	log     *zap.Logger
}

func NewValidator(prober Prober, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		prober:  prober,
		maxSize: MaxFileSize,
		log:     log.Named("validate"),
	}
}

// Validate checks the candidate against the admission rules, in order,
// short-circuiting: content type, then size, then metadata probing.
func (v *Validator) Validate(ctx context.Context, c Candidate) (models.VideoMetadata, error) {
	if !allowedTypes[c.ContentType] {
		return models.VideoMetadata{}, fmt.Errorf("%w: %s", ErrUnsupportedType, c.ContentType)
	}

	if c.Size > v.maxSize {
		return models.VideoMetadata{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, c.Size)
	}

	info, err := v.prober.Probe(ctx, c.Path)
	if err != nil {
		v.log.Warn("metadata probe failed", zap.String("file", c.FileName), zap.Error(err))
		return models.VideoMetadata{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	return models.VideoMetadata{
		FileName:   c.FileName,
		Duration:   info.Duration,
		Size:       c.Size,
		Resolution: fmt.Sprintf("%dx%d", info.Width, info.Height),
		Type:       c.ContentType,
		Width:      info.Width,
		Height:     info.Height,
	}, nil
}
