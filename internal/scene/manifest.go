// Package scene reads footage manifests and turns their scenes into
// timelines.
package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/scenereel/internal/media"
)

// Manifest is the stored footage metadata for a set of scenes.
type Manifest struct {
	Version string     `yaml:"version"`
	Render  media.Size `yaml:"render"`
	Scenes  []Scene    `yaml:"scenes"`

	// Dir is the directory relative footage paths resolve against.
	Dir string `yaml:"-"`
}

type Scene struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name,omitempty"`
	Render  *media.Size `yaml:"render,omitempty"`
	Footage []Footage   `yaml:"footage"`
}

// Footage is one entry of a scene, in timeline order within its channel.
type Footage struct {
	// Kind is image, pdf, video, audio or gallery.
	Kind    string `yaml:"kind"`
	Channel string `yaml:"channel,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Page    int    `yaml:"page,omitempty"`
	AssetID string `yaml:"asset_id,omitempty"`

	StartMs          int64 `yaml:"start_ms,omitempty"`
	DurationMs       int64 `yaml:"duration_ms,omitempty"`
	ScaledDurationMs int64 `yaml:"scaled_duration_ms,omitempty"`

	ContentMode     string          `yaml:"content_mode,omitempty"`
	Transition      *TransitionSpec `yaml:"transition,omitempty"`
	AudioTransition *TransitionSpec `yaml:"audio_transition,omitempty"`
}

type TransitionSpec struct {
	Kind       string `yaml:"kind"`
	DurationMs int64  `yaml:"duration_ms"`
}

// Scene returns the scene with the given id.
func (m *Manifest) Scene(id string) (*Scene, bool) {
	for i := range m.Scenes {
		if m.Scenes[i].ID == id {
			return &m.Scenes[i], true
		}
	}
	return nil, false
}

// RenderSize is the scene's own size, or the manifest's.
func (m *Manifest) RenderSize(sc *Scene) media.Size {
	if sc.Render != nil && !sc.Render.IsZero() {
		return *sc.Render
	}
	return m.Render
}

func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)

	seen := make(map[string]bool)
	for i, sc := range m.Scenes {
		if sc.ID == "" {
			m.Scenes[i].ID = fmt.Sprintf("scene-%d", i+1)
		}
		if seen[m.Scenes[i].ID] {
			return nil, fmt.Errorf("manifest %s: duplicate scene id %q", path, m.Scenes[i].ID)
		}
		seen[m.Scenes[i].ID] = true
	}
	return &m, nil
}

func Write(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
