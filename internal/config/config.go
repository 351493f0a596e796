package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ManifestPath string `yaml:"manifest"`
	OutputDir    string `yaml:"output_dir"`
	Workers      int    `yaml:"workers"`

	// LoadConcurrency bounds how many resource metadata loads run at once.
	LoadConcurrency int `yaml:"load_concurrency"`

	// StrictTiming turns a negative computed start time into an error
	// instead of clamping it to zero.
	StrictTiming bool `yaml:"strict_timing"`

	Render RenderConfig `yaml:"render"`
	Decode DecodeConfig `yaml:"decode"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	Verbose      bool   `yaml:"verbose"`
	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

type RenderConfig struct {
	// Width and Height override the manifest render size when non-zero.
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FPS        int     `yaml:"fps"`
	PixelScale float64 `yaml:"pixel_scale"`
	DPI        int     `yaml:"dpi"`
}

type DecodeConfig struct {
	SeekWindow     time.Duration `yaml:"seek_window"`
	FrameTolerance time.Duration `yaml:"frame_tolerance"`
	MaxFramePulls  int           `yaml:"max_frame_pulls"`
}

type FFmpegConfig struct {
	BinaryPath   string `yaml:"binary_path"`
	ProbePath    string `yaml:"probe_path"`
	VideoEncoder string `yaml:"video_encoder"`
	Quality      int    `yaml:"quality"`
}

// Load reads configuration from path, or from the first config file found in
// the default locations. Missing files yield the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func Default() *Config {
	return &Config{
		OutputDir:       "output",
		Workers:         0,
		LoadConcurrency: 1,
		Render: RenderConfig{
			FPS:        30,
			PixelScale: 1,
			DPI:        150,
		},
		Decode: DecodeConfig{
			SeekWindow:     time.Second,
			FrameTolerance: time.Second / 60,
			MaxFramePulls:  600,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
		},
	}
}

// normalize restores defaults for values a config file zeroed out.
func (c *Config) normalize() {
	def := Default()
	if c.LoadConcurrency <= 0 {
		c.LoadConcurrency = def.LoadConcurrency
	}
	if c.Render.FPS <= 0 {
		c.Render.FPS = def.Render.FPS
	}
	if c.Render.PixelScale <= 0 {
		c.Render.PixelScale = def.Render.PixelScale
	}
	if c.Render.DPI <= 0 {
		c.Render.DPI = def.Render.DPI
	}
	if c.Decode.SeekWindow <= 0 {
		c.Decode.SeekWindow = def.Decode.SeekWindow
	}
	if c.Decode.FrameTolerance <= 0 {
		c.Decode.FrameTolerance = def.Decode.FrameTolerance
	}
	if c.Decode.MaxFramePulls <= 0 {
		c.Decode.MaxFramePulls = def.Decode.MaxFramePulls
	}
	if c.FFmpeg.BinaryPath == "" {
		c.FFmpeg.BinaryPath = def.FFmpeg.BinaryPath
	}
	if c.FFmpeg.ProbePath == "" {
		c.FFmpeg.ProbePath = def.FFmpeg.ProbePath
	}
}

func findConfigFile() string {
	candidates := []string{
		"./scenereel.yaml",
		"./scenereel.yml",
		filepath.Join(os.Getenv("HOME"), ".scenereel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
