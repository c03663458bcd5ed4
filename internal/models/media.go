package models

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptyMediaPath is returned for an upload handle without a source path.
var ErrEmptyMediaPath = errors.New("media path is empty")

// MediaHandle names a local file to be uploaded under a display filename.
type MediaHandle struct {
	Path     string
	FileName string
}

// NewMediaHandle builds an upload handle. The display name falls back to the
// base name of path.
func NewMediaHandle(path, fileName string) (MediaHandle, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return MediaHandle{}, ErrEmptyMediaPath
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = filepath.Base(path)
	}
	return MediaHandle{Path: path, FileName: fileName}, nil
}

// MediaRef identifies a provider hosted media object inside a service.
type MediaRef struct {
	ServiceID string
	MediaID   string
}
