package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileDevice is a capture source backed by a still image on disk. Terminal
// hosts have no camera hardware; a photo taken elsewhere stands in for a
// live capture and flows through the same scoped-session contract.
type FileDevice struct {
	Path string
}

// fileTrack owns the open file handle for one acquisition.
type fileTrack struct {
	f *os.File
}

func (t *fileTrack) Stop() { t.f.Close() }

// Acquire opens the backing file as the session's single track.
func (d *FileDevice) Acquire() ([]Track, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo %s: %w", d.Path, err)
	}
	return []Track{&fileTrack{f: f}}, nil
}

// FileCapturer encodes the session's file track as a frame.
type FileCapturer struct{}

// Capture reads the file track and returns it base64-encoded.
func (FileCapturer) Capture(tracks []Track) (*Frame, error) {
	for _, t := range tracks {
		ft, ok := t.(*fileTrack)
		if !ok {
			continue
		}
		data, err := io.ReadAll(ft.f)
		if err != nil {
			return nil, fmt.Errorf("failed to read photo: %w", err)
		}
		return &Frame{
			MediaType: mediaTypeForPath(ft.f.Name()),
			Data:      base64.StdEncoding.EncodeToString(data),
		}, nil
	}
	return nil, errors.New("media: no file track in session")
}

func mediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// DataURL renders the frame in data-URL form, the shape photos are stored
// in on an assessment record.
func (f *Frame) DataURL() string {
	return "data:" + f.MediaType + ";base64," + f.Data
}
