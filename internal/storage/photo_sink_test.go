package storage

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"
)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 255
	}
	img.SetNRGBA(3, 3, color.NRGBA{R: 255, A: 255})
	return img
}

func TestLibrarySinkSaveAndList(t *testing.T) {
	sink, err := NewLibrarySink(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	ctx := context.Background()

	name, err := sink.Save(ctx, testImage(), "png")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Ext(name) != ".png" {
		t.Errorf("expected .png extension, got %q", name)
	}

	jpgName, err := sink.Save(ctx, testImage(), "jpeg")
	if err != nil {
		t.Fatalf("jpeg save failed: %v", err)
	}
	if filepath.Ext(jpgName) != ".jpg" {
		t.Errorf("expected .jpg extension, got %q", jpgName)
	}

	photos, err := sink.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(photos) != 2 {
		t.Errorf("expected 2 photos, got %d", len(photos))
	}
	for _, p := range photos {
		if p.Size == 0 {
			t.Errorf("photo %s has zero size", p.Name)
		}
	}
}

func TestLibrarySinkDefaultFormat(t *testing.T) {
	sink, err := NewLibrarySink(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}

	name, err := sink.Save(context.Background(), testImage(), "")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("expected png default, got %q", name)
	}
}

func TestLibrarySinkUnsupportedFormat(t *testing.T) {
	sink, err := NewLibrarySink(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}

	if _, err := sink.Save(context.Background(), testImage(), "bmp"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := sink.Save(context.Background(), nil, "png"); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestLibrarySinkRemove(t *testing.T) {
	sink, err := NewLibrarySink(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	ctx := context.Background()

	name, err := sink.Save(ctx, testImage(), "png")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := sink.Remove(ctx, name); err != nil {
		t.Errorf("remove failed: %v", err)
	}
	photos, err := sink.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("expected empty library after remove, got %d photos", len(photos))
	}

	if err := sink.Remove(ctx, name); err == nil {
		t.Error("expected error removing missing photo")
	}
	if err := sink.Remove(ctx, "../escape.png"); err == nil {
		t.Error("expected error for path traversal name")
	}
}
