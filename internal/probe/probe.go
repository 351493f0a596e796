// Package probe reads container metadata with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ivlev/scenereel/internal/media"
)

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	Path string
}

func New(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{Path: path}
}

// Probe extracts size, duration and stream layout of a media file.
func (p *FFprobe) Probe(ctx context.Context, filePath string) (media.Info, error) {
	if filePath == "" {
		return media.Info{}, fmt.Errorf("file path is required")
	}

	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return media.Info{}, ctx.Err()
		}
		return media.Info{}, fmt.Errorf("ffprobe %s: %w", filePath, err)
	}
	return Parse(out)
}

// Parse converts ffprobe JSON output into media.Info.
func Parse(data []byte) (media.Info, error) {
	var res probeResult
	if err := json.Unmarshal(data, &res); err != nil {
		return media.Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var info media.Info
	if dur, err := strconv.ParseFloat(res.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}

	for _, s := range res.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Size = media.Size{Width: s.Width, Height: s.Height}
			info.Codec = s.CodecName
			info.FPS = ParseFrameRate(s.RFrameRate)
			if info.Duration == 0 {
				if dur, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					info.Duration = time.Duration(dur * float64(time.Second))
				}
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if !info.HasVideo && !info.HasAudio {
		return info, fmt.Errorf("no audio or video streams")
	}
	if info.Duration <= 0 {
		return info, fmt.Errorf("unknown duration")
	}
	return info, nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30000/1001").
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}
