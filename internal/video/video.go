// Package video re-renders a composition to a file through ffmpeg.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/scenereel/internal/composition"
	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
)

var ErrEmptyComposition = errors.New("video: composition has nothing to render")

type Encoder interface {
	Render(ctx context.Context, comp *composition.Composition, outPath string) error
}

// Options select the output codec.
type Options struct {
	VideoEncoder string
	Quality      int
}

type FFmpegEncoder struct {
	BinaryPath string
	Options    Options
	Log        zerolog.Logger
}

func NewFFmpegEncoder(binaryPath string, opts Options) *FFmpegEncoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if opts.VideoEncoder == "" {
		opts.VideoEncoder = "libx264"
	}
	return &FFmpegEncoder{
		BinaryPath: binaryPath,
		Options:    opts,
		Log:        logging.WithComponent("video"),
	}
}

// Render writes comp to outPath. Stills ffmpeg cannot read directly
// (in-memory images, PDF pages) are written to temporary PNGs first.
func (e *FFmpegEncoder) Render(ctx context.Context, comp *composition.Composition, outPath string) error {
	tmpDir, err := os.MkdirTemp("", "scenereel_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	stills, err := writeStills(comp, tmpDir)
	if err != nil {
		return err
	}

	args, err := BuildArgs(comp, stills, outPath, e.Options)
	if err != nil {
		return err
	}

	start := time.Now()
	e.Log.Info().
		Str("output", outPath).
		Str("size", comp.RenderSize.String()).
		Dur("duration", comp.Duration).
		Int("skipped", len(comp.Skipped)).
		Msg("rendering composition")
	e.Log.Debug().Strs("args", args).Msg("ffmpeg")

	cmd := exec.CommandContext(ctx, e.BinaryPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg render error: %w, output: %s", err, tail(out, 2048))
	}

	e.Log.Info().Str("output", outPath).Dur("took", time.Since(start)).Msg("render finished")
	return nil
}

// needsStill reports whether an image unit has to be materialized before
// ffmpeg can read it.
func needsStill(u resource.Unit) bool {
	if u.Kind != media.KindImage || u.Image == nil {
		return false
	}
	return u.Path == "" || strings.EqualFold(filepath.Ext(u.Path), ".pdf")
}

func writeStills(comp *composition.Composition, dir string) (map[uuid.UUID]string, error) {
	stills := make(map[uuid.UUID]string)
	for _, segs := range comp.Tracks {
		for _, seg := range segs {
			if !needsStill(seg.Unit) {
				continue
			}
			path := filepath.Join(dir, seg.ItemID.String()+".png")
			if err := writePNG(path, seg.Unit.Image); err != nil {
				return nil, fmt.Errorf("write still %s: %w", seg.ItemID, err)
			}
			stills[seg.ItemID] = path
		}
	}
	return stills, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// QualityArgs maps a quality value onto the rate control each encoder
// understands.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// kbit/s: 75 -> 7.5Mbit/s
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	default:
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}
