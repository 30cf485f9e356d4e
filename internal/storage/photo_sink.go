package storage

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	apperrors "go-idphoto-guide/internal/errors"
	"go-idphoto-guide/internal/logger"
)

const jpegQuality = 95

// PhotoSink persists finished photos and lists what was saved before.
type PhotoSink interface {
	Save(ctx context.Context, img image.Image, format string) (string, error)
	List(ctx context.Context) ([]PhotoInfo, error)
	Remove(ctx context.Context, name string) error
}

// PhotoInfo describes one stored photo
type PhotoInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// LibrarySink stores photos as files in a library directory with
// generated names.
type LibrarySink struct {
	dir string
}

// NewLibrarySink creates the library directory if needed
func NewLibrarySink(dir string) (*LibrarySink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo library: %w", err)
	}
	return &LibrarySink{dir: dir}, nil
}

// Save encodes the image as "png" or "jpeg" and returns the stored file name
func (s *LibrarySink) Save(ctx context.Context, img image.Image, format string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil {
		return "", apperrors.NewValidationError("image is required", nil)
	}

	var ext string
	switch format {
	case "jpeg", "jpg":
		ext = "jpg"
	case "png", "":
		ext = "png"
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unsupported format: %s", format), nil)
	}

	name := fmt.Sprintf("%s.%s", uuid.New().String(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewInternalError("failed to create photo file", err)
	}
	defer f.Close()

	switch ext {
	case "jpg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		os.Remove(path)
		return "", apperrors.NewInternalError("failed to encode photo", err)
	}

	logger.WithField("photo", name).Info("Photo saved to library")
	return name, nil
}

// List returns stored photos, newest last
func (s *LibrarySink) List(ctx context.Context) ([]PhotoInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read photo library", err)
	}

	photos := make([]PhotoInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".png", ".jpg":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		photos = append(photos, PhotoInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return photos, nil
}

// Remove deletes a stored photo by name
func (s *LibrarySink) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Reject path traversal in user-supplied names
	if name != filepath.Base(name) || name == "." || name == "" {
		return apperrors.NewValidationError("invalid photo name", nil)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewValidationError("photo not found", err)
		}
		return apperrors.NewInternalError("failed to remove photo", err)
	}
	return nil
}
