package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is an accepted upload held for the duration of a session.
type Video struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	Metadata    VideoMetadata
	UploadTime  time.Time
}

func NewVideo(filename, contentType string, size int64, metadata VideoMetadata) *Video {
	return &Video{
		ID:          uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Metadata:    metadata,
		UploadTime:  time.Now(),
	}
}
