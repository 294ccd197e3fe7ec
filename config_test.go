package lumen

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.AppWidth != 1280 || s.AppHeight != 720 {
		t.Errorf("app dims = %dx%d, want 1280x720", s.AppWidth, s.AppHeight)
	}
	if s.NumImageWorkers != 2 {
		t.Errorf("NumImageWorkers = %d, want 2", s.NumImageWorkers)
	}
	if s.BoundsMargin != defaultBoundsMargin {
		t.Errorf("BoundsMargin = %v, want %v", s.BoundsMargin, defaultBoundsMargin)
	}
}

func TestLoadSettingsFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	body := `
app_width = 640
app_height = 480
num_image_workers = 8

[texture_memory]
byte_threshold = 1048576
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}

	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile: %v", err)
	}
	if s.AppWidth != 640 || s.AppHeight != 480 {
		t.Errorf("app dims = %dx%d, want 640x480", s.AppWidth, s.AppHeight)
	}
	if s.NumImageWorkers != 8 {
		t.Errorf("NumImageWorkers = %d, want 8", s.NumImageWorkers)
	}
	if s.TextureMemory.ByteThreshold != 1048576 {
		t.Errorf("ByteThreshold = %d, want 1048576", s.TextureMemory.ByteThreshold)
	}
	// Fields absent from the file keep DefaultSettings' values.
	if s.FPSUpdateIntervalMS != 1000 {
		t.Errorf("FPSUpdateIntervalMS = %d, want default 1000", s.FPSUpdateIntervalMS)
	}
}

func TestLoadSettingsFileMissingFile(t *testing.T) {
	_, err := LoadSettingsFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSettingsApplyTo(t *testing.T) {
	s := DefaultSettings()
	s.AppWidth = 320
	s.AppHeight = 200
	scene := NewScene()
	s.ApplyTo(scene)

	if scene.Viewport.Width != 320 || scene.Viewport.Height != 200 {
		t.Errorf("scene.Viewport = %v, want 320x200", scene.Viewport)
	}
	if scene.BoundsMargin != s.BoundsMargin {
		t.Errorf("scene.BoundsMargin = %v, want %v", scene.BoundsMargin, s.BoundsMargin)
	}
}
