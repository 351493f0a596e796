package resource

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	vidio "github.com/AlexEidt/Vidio"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/system"
)

// VidioSource decodes frames by piping them out of ffmpeg.
type VidioSource struct{}

func (VidioSource) Probe(ctx context.Context, path string) (media.Info, error) {
	if err := ctx.Err(); err != nil {
		return media.Info{}, err
	}
	video, err := vidio.NewVideo(path)
	if err != nil {
		return media.Info{}, err
	}
	defer video.Close()

	return media.Info{
		Size:     media.Size{Width: video.Width(), Height: video.Height()},
		Duration: seconds(video.Duration()),
		FPS:      video.FPS(),
		HasVideo: true,
		Codec:    video.Codec(),
	}, nil
}

func (VidioSource) Open(path string, r media.TimeRange) (FrameReader, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, err
	}
	fps := video.FPS()
	if fps <= 0 {
		video.Close()
		return nil, fmt.Errorf("%s: unknown frame rate", path)
	}
	return &vidioReader{
		video: video,
		fps:   fps,
		first: int(math.Floor(r.Start.Seconds() * fps)),
		stop:  int(math.Ceil(r.End().Seconds() * fps)),
	}, nil
}

type vidioReader struct {
	video *vidio.Video
	fps   float64
	index int
	first int
	stop  int
}

// ReadFrame decodes forward. Frames before the start are returned without
// an image so the caller's pull budget bounds the skip.
func (r *vidioReader) ReadFrame() (Frame, bool) {
	if r.index >= r.stop || !r.video.Read() {
		return Frame{}, false
	}
	f := Frame{Time: seconds(float64(r.index) / r.fps)}
	if r.index >= r.first {
		w, h := r.video.Width(), r.video.Height()
		f.Image = system.GetImage(image.Rect(0, 0, w, h))
		copyPixels(f.Image, r.video.FrameBuffer(), w*h)
	}
	r.index++
	return f, true
}

func (r *vidioReader) Close() error {
	r.video.Close()
	return nil
}

// copyPixels fills dst from an RGBA or RGB frame buffer.
func copyPixels(dst *image.RGBA, buf []byte, pixels int) {
	switch len(buf) {
	case pixels * 4:
		copy(dst.Pix, buf)
	case pixels * 3:
		for i := 0; i < pixels; i++ {
			dst.Pix[i*4] = buf[i*3]
			dst.Pix[i*4+1] = buf[i*3+1]
			dst.Pix[i*4+2] = buf[i*3+2]
			dst.Pix[i*4+3] = 0xff
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
