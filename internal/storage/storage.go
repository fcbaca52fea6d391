package storage

import "io"

// FileInfo describes an accepted upload being written to storage.
type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage holds accepted video uploads for the duration of a session.
type Storage interface {
	SaveFile(file io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	GetFilePath(path string) string
	DeleteFile(path string) error
}
