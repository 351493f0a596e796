// Package engine drives a manifest through the whole pipeline: build
// timelines, prepare resources, compile and export.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenereel/internal/composition"
	"github.com/ivlev/scenereel/internal/config"
	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/renderer"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/scene"
	"github.com/ivlev/scenereel/internal/system"
	"github.com/ivlev/scenereel/internal/timeline"
	"github.com/ivlev/scenereel/internal/video"
)

var ErrSceneNotFound = errors.New("engine: scene not found")

// Deps are the external collaborators a project talks to.
type Deps struct {
	Encoder video.Encoder
	Prober  resource.Prober
	Frames  resource.FrameSource
	Library resource.Library
}

type Project struct {
	Config    *config.Config
	Manifest  *scene.Manifest
	Env       *resource.Env
	Generator *composition.Generator
	Encoder   video.Encoder
	Log       zerolog.Logger

	deps Deps
}

// NewProject loads the manifest named by cfg.
func NewProject(cfg *config.Config, deps Deps) (*Project, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("engine: no manifest")
	}
	m, err := scene.Read(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	if cfg.Render.Width > 0 && cfg.Render.Height > 0 {
		m.Render = media.Size{Width: cfg.Render.Width, Height: cfg.Render.Height}
	}

	env := resource.NewEnv(nil, cfg.LoadConcurrency)
	env.DPI = cfg.Render.DPI
	env.Decode = resource.DecodeOptions{
		SeekWindow:     cfg.Decode.SeekWindow,
		FrameTolerance: cfg.Decode.FrameTolerance,
		MaxFramePulls:  cfg.Decode.MaxFramePulls,
	}

	return &Project{
		Config:    cfg,
		Manifest:  m,
		Env:       env,
		Generator: composition.NewGenerator(cfg.Render.PixelScale, cfg.Render.FPS),
		Encoder:   deps.Encoder,
		Log:       logging.WithComponent("engine"),
		deps:      deps,
	}, nil
}

func (p *Project) Close() {
	p.Env.Close()
}

// Scenes returns the scene with the given id, or every scene when id is
// empty.
func (p *Project) Scenes(id string) ([]*scene.Scene, error) {
	if id != "" {
		sc, ok := p.Manifest.Scene(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
		}
		return []*scene.Scene{sc}, nil
	}
	out := make([]*scene.Scene, len(p.Manifest.Scenes))
	for i := range p.Manifest.Scenes {
		out[i] = &p.Manifest.Scenes[i]
	}
	return out, nil
}

func (p *Project) builder(decode bool) *scene.Builder {
	return &scene.Builder{
		Env:     p.Env,
		Prober:  p.deps.Prober,
		Frames:  p.deps.Frames,
		Library: p.deps.Library,
		BaseDir: p.Manifest.Dir,
		Decode:  decode,
		Strict:  p.Config.StrictTiming,
	}
}

// Timeline builds a scene's timeline and prepares every resource on it.
// Start times are reloaded once durations are known. Items that failed
// to load stay on the timeline; compilation skips them.
func (p *Project) Timeline(ctx context.Context, sc *scene.Scene, decode bool) (*timeline.Timeline, error) {
	tl, err := p.builder(decode).Build(sc, p.Manifest.RenderSize(sc))
	if err != nil {
		return nil, err
	}

	items := tl.Items()
	rs := make([]resource.Resource, len(items))
	for i, it := range items {
		rs[i] = it.Resource
	}
	if err := resource.PrepareAll(ctx, rs); err != nil {
		return nil, err
	}

	if err := tl.ReloadStartTimes(); err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}
	if err := tl.Validate(); err != nil {
		if p.Config.StrictTiming {
			return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
		}
		p.Log.Warn().Str("scene", sc.ID).Err(err).Msg("timeline has invalid items")
	}
	return tl, nil
}

func (p *Project) Compile(ctx context.Context, sc *scene.Scene) (*composition.Composition, error) {
	tl, err := p.Timeline(ctx, sc, false)
	if err != nil {
		return nil, err
	}
	return p.Generator.Build(tl)
}

// SceneResult is the outcome of exporting one scene.
type SceneResult struct {
	SceneID string
	Output  string
	Skipped []composition.Skip
	Took    time.Duration
}

// Export compiles and renders the selected scenes in parallel, one output
// file per scene.
func (p *Project) Export(ctx context.Context, sceneID string) ([]SceneResult, error) {
	if p.Encoder == nil {
		return nil, errors.New("engine: no encoder")
	}
	scenes, err := p.Scenes(sceneID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return nil, err
	}

	start := time.Now()
	workers := system.RecommendedWorkers(p.Config.Workers)
	p.Log.Info().
		Str("manifest", p.Config.ManifestPath).
		Int("scenes", len(scenes)).
		Int("workers", workers).
		Msg("export started")

	results := make([]SceneResult, len(scenes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, sc := range scenes {
		i, sc := i, sc
		g.Go(func() error {
			t0 := time.Now()
			comp, err := p.Compile(gctx, sc)
			if err != nil {
				return fmt.Errorf("compile scene %s: %w", sc.ID, err)
			}
			out := filepath.Join(p.Config.OutputDir, sc.ID+".mp4")
			if err := p.Encoder.Render(gctx, comp, out); err != nil {
				return fmt.Errorf("render scene %s: %w", sc.ID, err)
			}

			mu.Lock()
			results[i] = SceneResult{SceneID: sc.ID, Output: out, Skipped: comp.Skipped, Took: time.Since(t0)}
			mu.Unlock()
			p.Log.Info().Str("scene", sc.ID).Str("output", out).Int("skipped", len(comp.Skipped)).Msg("scene ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.Config.ShowStats {
		p.report(results, time.Since(start))
	}
	return results, nil
}

func (p *Project) report(results []SceneResult, total time.Duration) {
	ev := p.Log.Info().
		Str("build", p.Config.BuildVersion).
		Dur("total", total).
		Int("scenes", len(results))
	skipped := 0
	for _, r := range results {
		skipped += len(r.Skipped)
	}
	ev.Int("skipped_items", skipped).Msg("performance report")
}

// Snapshot renders one frame of a scene at t to a PNG. Video footage goes
// through frame-decoding resources.
func (p *Project) Snapshot(ctx context.Context, sceneID string, at time.Duration, out string) error {
	scenes, err := p.Scenes(sceneID)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return ErrSceneNotFound
	}
	sc := scenes[0]
	tl, err := p.Timeline(ctx, sc, true)
	if err != nil {
		return err
	}
	defer closeFrames(tl)

	r := renderer.New(tl, tl.RenderSize.Scale(p.Config.Render.PixelScale))
	if r.Size.IsZero() {
		return fmt.Errorf("scene %s: no render size", sc.ID)
	}
	if err := r.Snapshot(at, out); err != nil {
		return err
	}
	p.Log.Info().Str("scene", sc.ID).Dur("at", at).Str("output", out).Msg("snapshot written")
	return nil
}

func closeFrames(tl *timeline.Timeline) {
	for _, it := range tl.Items() {
		if fr, ok := it.Resource.(*resource.FrameResource); ok {
			fr.Close()
		}
	}
}
