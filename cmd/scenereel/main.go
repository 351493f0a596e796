package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/scenereel/internal/config"
	"github.com/ivlev/scenereel/internal/engine"
	"github.com/ivlev/scenereel/internal/gallery"
	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/probe"
	"github.com/ivlev/scenereel/internal/resource"
	"github.com/ivlev/scenereel/internal/system"
	"github.com/ivlev/scenereel/internal/video"
)

var buildVersion = "dev"

func main() {
	configPtr := flag.String("config", "", "Config file (default: ./scenereel.yaml or ~/.scenereel/config.yaml)")
	manifestPtr := flag.String("manifest", "", "Scene manifest (default: newest manifest in input/)")
	outputPtr := flag.String("output", "", "Output directory")
	scenePtr := flag.String("scene", "", "Only process this scene id")
	snapshotPtr := flag.Duration("snapshot", -1, "Write a PNG of the scene at this time instead of exporting")
	galleryPtr := flag.String("gallery", "", "Directory serving gallery assets")
	galleryCachePtr := flag.String("gallery-cache", "", "Copy gallery assets here before use")
	widthPtr := flag.Int("width", 0, "Override render width")
	heightPtr := flag.Int("height", 0, "Override render height")
	fpsPtr := flag.Int("fps", 0, "Override FPS")
	workersPtr := flag.Int("workers", 0, "Parallel scene exports (0 = auto)")
	qualityPtr := flag.Int("quality", 0, "Video quality (0 = auto; x264: CRF, VideoToolbox: bitrate = Q*100 kbit/s)")
	strictPtr := flag.Bool("strict", false, "Fail on timing errors instead of clamping")
	verbosePtr := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	logging.Init(*verbosePtr)
	system.InitResourceLimits()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	cfg.BuildVersion = buildVersion
	applyFlags(cfg, *manifestPtr, *outputPtr, *widthPtr, *heightPtr, *fpsPtr, *workersPtr, *qualityPtr, *strictPtr)
	if *verbosePtr {
		cfg.Verbose = true
	}

	if cfg.ManifestPath == "" {
		latest, err := system.FindLatestManifest("input")
		if err != nil {
			log.Fatal().Err(err).Msg("no manifest given; put one in input/")
		}
		cfg.ManifestPath = latest
		log.Info().Str("manifest", latest).Msg("using newest manifest")
	}

	if cfg.FFmpeg.VideoEncoder == "" {
		cfg.FFmpeg.VideoEncoder = system.GetBestH264Encoder(cfg.FFmpeg.BinaryPath)
		if cfg.FFmpeg.VideoEncoder != "libx264" {
			log.Info().Str("encoder", cfg.FFmpeg.VideoEncoder).Msg("hardware encoder detected")
		}
	}
	if cfg.FFmpeg.Quality == 0 {
		cfg.FFmpeg.Quality = system.DefaultQuality(cfg.FFmpeg.VideoEncoder)
	}

	deps := engine.Deps{
		Encoder: video.NewFFmpegEncoder(cfg.FFmpeg.BinaryPath, video.Options{
			VideoEncoder: cfg.FFmpeg.VideoEncoder,
			Quality:      cfg.FFmpeg.Quality,
		}),
		Prober: probe.New(cfg.FFmpeg.ProbePath),
		Frames: resource.VidioSource{},
	}
	if *galleryPtr != "" {
		lib := gallery.NewDirLibrary(*galleryPtr, *galleryCachePtr)
		assets, err := lib.Assets()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot read gallery")
		}
		log.Info().Int("assets", len(assets)).Str("dir", *galleryPtr).Msg("gallery ready")
		deps.Library = lib
	}

	project, err := engine.NewProject(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open project")
	}
	defer project.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *snapshotPtr >= 0 {
		out := filepath.Join(cfg.OutputDir, snapshotName(*scenePtr, *snapshotPtr))
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			log.Fatal().Err(err).Msg("cannot create output directory")
		}
		if err := project.Snapshot(ctx, *scenePtr, *snapshotPtr, out); err != nil {
			log.Fatal().Err(err).Msg("snapshot failed")
		}
		return
	}

	results, err := project.Export(ctx, *scenePtr)
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	for _, r := range results {
		ev := log.Info().Str("scene", r.SceneID).Str("output", r.Output).Dur("took", r.Took)
		for _, s := range r.Skipped {
			log.Warn().Str("scene", r.SceneID).Str("item", s.String()).Msg("left out of export")
		}
		ev.Msg("done")
	}
}

func applyFlags(cfg *config.Config, manifest, output string, width, height, fps, workers, quality int, strict bool) {
	if manifest != "" {
		cfg.ManifestPath = manifest
	}
	if output != "" {
		cfg.OutputDir = output
	}
	if width > 0 && height > 0 {
		cfg.Render.Width, cfg.Render.Height = width, height
	}
	if fps > 0 {
		cfg.Render.FPS = fps
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if quality > 0 {
		cfg.FFmpeg.Quality = quality
	}
	if strict {
		cfg.StrictTiming = true
	}
}

func snapshotName(sceneID string, at time.Duration) string {
	if sceneID == "" {
		sceneID = "scene"
	}
	return sceneID + "_" + at.String() + ".png"
}
