package lumen

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// TextureMemorySettings bounds the GPU-resident texture budget and how often
// the eviction sweep runs.
type TextureMemorySettings struct {
	ByteThreshold   int64 `toml:"byte_threshold"`
	CleanupInterval int64 `toml:"cleanup_interval_ms"`
}

// Settings enumerates every host-tunable option a Scene accepts, loadable
// from a TOML file via LoadSettingsFile or constructed in code via
// DefaultSettings.
type Settings struct {
	AppWidth                 int                   `toml:"app_width"`
	AppHeight                int                   `toml:"app_height"`
	DeviceLogicalPixelRatio  float64               `toml:"device_logical_pixel_ratio"`
	DevicePhysicalPixelRatio float64               `toml:"device_physical_pixel_ratio"`
	ClearColor               Color                 `toml:"-"`
	BoundsMargin             float64               `toml:"bounds_margin"`
	TextureMemory            TextureMemorySettings `toml:"texture_memory"`
	NumImageWorkers          int                   `toml:"num_image_workers"`
	FPSUpdateIntervalMS      int64                 `toml:"fps_update_interval_ms"`
	TargetFrameTimeMS        float64               `toml:"target_frame_time_ms"`
	EnableContextSpy         bool                  `toml:"enable_context_spy"`
	ForceWebGL2              bool                  `toml:"force_webgl2"`
}

// DefaultSettings returns the settings a Scene uses when none are supplied
// explicitly, matching the defaults spec §6 documents.
func DefaultSettings() Settings {
	return Settings{
		AppWidth:                 1280,
		AppHeight:                720,
		DeviceLogicalPixelRatio:  1,
		DevicePhysicalPixelRatio: 1,
		ClearColor:               Color{0, 0, 0, 1},
		BoundsMargin:             defaultBoundsMargin,
		TextureMemory: TextureMemorySettings{
			ByteThreshold:   256 * 1024 * 1024,
			CleanupInterval: 5000,
		},
		NumImageWorkers:     2,
		FPSUpdateIntervalMS: 1000,
		TargetFrameTimeMS:   1000.0 / 60.0,
	}
}

// LoadSettingsFile reads and decodes a TOML settings file, starting from
// DefaultSettings so an omitted field keeps its documented default rather
// than zeroing out.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("lumen: read settings file: %w", err)
	}
	s := DefaultSettings()
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("lumen: parse settings file: %w", err)
	}
	return s, nil
}

// ApplyTo pushes the settings that a Scene tracks directly (the rest — image
// worker count, texture budget — belong to the texture manager once wired to
// one) onto an existing Scene.
func (s Settings) ApplyTo(scene *Scene) {
	scene.Viewport = Rect{Width: float64(s.AppWidth), Height: float64(s.AppHeight)}
	scene.BoundsMargin = s.BoundsMargin
	scene.ClearColor = s.ClearColor
}
