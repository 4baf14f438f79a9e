package emoji

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/emotion"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer img.Close()
	if !gocv.IMWrite(path, img) {
		t.Fatalf("failed to write %s", path)
	}
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "happy.png"))

	r := NewResolver(dir, nil)
	defer r.Close()

	path, err := r.Resolve(emotion.Happy)
	if err != nil {
		t.Fatalf("Resolve(Happy): %v", err)
	}
	if path != filepath.Join(dir, "happy.png") {
		t.Errorf("path = %s", path)
	}

	if _, err := r.Resolve(emotion.Sad); !errors.Is(err, ErrAssetMissing) {
		t.Errorf("Resolve(Sad) = %v, want ErrAssetMissing", err)
	}
	if _, err := r.Resolve(emotion.Label(42)); !errors.Is(err, ErrAssetMissing) {
		t.Errorf("Resolve(42) = %v, want ErrAssetMissing", err)
	}

	missing := r.Missing()
	if len(missing) != emotion.NumLabels-1 {
		t.Errorf("expected %d missing labels, got %v", emotion.NumLabels-1, missing)
	}
}

func TestResolveOverride(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "meh.png"))

	r := NewResolver(dir, map[emotion.Label]string{emotion.Neutral: "meh.png"})
	defer r.Close()

	path, err := r.Resolve(emotion.Neutral)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(path) != "meh.png" {
		t.Errorf("path = %s", path)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "happy.png"))
	if err := os.WriteFile(filepath.Join(dir, "sad.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(dir, nil)
	defer r.Close()

	img, err := r.Load(emotion.Happy)
	if err != nil {
		t.Fatalf("Load(Happy): %v", err)
	}
	if img.Rows() != 16 || img.Cols() != 16 {
		t.Errorf("size = %dx%d", img.Cols(), img.Rows())
	}

	again, err := r.Load(emotion.Happy)
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if again.Ptr() != img.Ptr() {
		t.Error("second Load should hit the cache")
	}

	if _, err := r.Load(emotion.Sad); !errors.Is(err, ErrAssetLoad) {
		t.Errorf("Load(Sad) = %v, want ErrAssetLoad", err)
	}
	if _, err := r.Load(emotion.Angry); !errors.Is(err, ErrAssetMissing) {
		t.Errorf("Load(Angry) = %v, want ErrAssetMissing", err)
	}
}
