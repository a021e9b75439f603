package common

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/viewfabric/reactview/log"
	"github.com/viewfabric/reactview/storage"
)

// ImageFormat is a screenshot encoding.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
)

const jpegQuality = 90

// Screenshotter captures the rendered content of a web view.
type Screenshotter struct {
	logger    *log.Logger
	persister storage.FilePersister
}

// NewScreenshotter creates a screenshotter that writes captures through
// persister when a path is given.
func NewScreenshotter(logger *log.Logger, persister storage.FilePersister) *Screenshotter {
	return &Screenshotter{
		logger:    logger,
		persister: persister,
	}
}

// Screenshot captures the view's current frame. When path is non-empty the
// image is also persisted there, with the format inferred from the
// extension. PNG is the default.
func (s *Screenshotter) Screenshot(ctx context.Context, view *WebView, path string) ([]byte, error) {
	format := formatFromPath(path)
	s.logger.Debugf("Screenshotter:Screenshot", "format:%s path:%q", format, path)

	buf, err := view.client.Page.CaptureScreenshot(ctx, string(format), jpegQuality)
	if err != nil {
		return nil, errors.Wrap(err, "capturing view screenshot")
	}

	if path != "" {
		if err := s.persister.Persist(ctx, path, bytes.NewReader(buf)); err != nil {
			return nil, errors.Wrapf(err, "persisting screenshot to %q", path)
		}
	}
	return buf, nil
}

func formatFromPath(path string) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return ImageFormatJPEG
	default:
		return ImageFormatPNG
	}
}
