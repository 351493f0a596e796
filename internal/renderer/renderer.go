// Package renderer composes single frames of a timeline from its
// resources' images, for previews and snapshots.
package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/system"
	"github.com/ivlev/scenereel/internal/timeline"
)

type Renderer struct {
	Timeline   *timeline.Timeline
	Size       media.Size
	Background color.Color
	Scaler     xdraw.Scaler

	// decode calls on one resource must not overlap
	mu sync.Mutex
}

func New(tl *timeline.Timeline, size media.Size) *Renderer {
	if size.IsZero() {
		size = tl.RenderSize
	}
	return &Renderer{
		Timeline:   tl,
		Size:       size,
		Background: color.Black,
		Scaler:     xdraw.ApproxBiLinear,
	}
}

// Frame draws the video channel at global time t. Items without a
// decodable frame are left out.
func (r *Renderer) Frame(t time.Duration) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	canvas := image.NewRGBA(image.Rect(0, 0, r.Size.Width, r.Size.Height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.Background), image.Point{}, xdraw.Src)

	items := r.Timeline.ItemsAt(media.KindVideo, t)
	for i, it := range items {
		img := it.Resource.Image(it.LocalTime(t), r.Size)
		if img == nil {
			continue
		}

		alpha, clip := 1.0, canvas.Bounds()
		if tr := it.TransitionFor(media.KindVideo); tr != nil && i > 0 && tr.Duration > 0 {
			p := float64(t-it.StartTime) / float64(tr.Duration)
			if isWipe(tr.Kind) {
				clip = Reveal(tr.Kind, clip, p)
			} else {
				_, alpha = Opacity(tr.Kind, p)
			}
		}
		if i+1 < len(items) {
			next := items[i+1]
			if tr := next.TransitionFor(media.KindVideo); tr != nil && tr.Duration > 0 && !isWipe(tr.Kind) {
				p := float64(t-next.StartTime) / float64(tr.Duration)
				out, _ := Opacity(tr.Kind, p)
				alpha *= out
			}
		}
		if alpha <= 0 || clip.Empty() {
			continue
		}
		r.draw(canvas, img, it.ContentMode, clip, alpha)
	}
	return canvas
}

func (r *Renderer) draw(canvas *image.RGBA, img image.Image, mode timeline.ContentMode, clip image.Rectangle, alpha float64) {
	dr := Place(mode, img.Bounds(), canvas.Bounds())

	layer := system.GetImage(canvas.Bounds())
	defer system.PutImage(layer)
	xdraw.Draw(layer, layer.Bounds(), image.Transparent, image.Point{}, xdraw.Src)
	r.Scaler.Scale(layer, dr, img, img.Bounds(), xdraw.Src, nil)

	area := dr.Intersect(clip)
	if alpha >= 1 {
		xdraw.Draw(canvas, area, layer, area.Min, xdraw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})
	xdraw.DrawMask(canvas, area, layer, area.Min, mask, image.Point{}, xdraw.Over)
}

// Place returns where a source of bounds src lands inside dst. Fill covers
// dst and may overflow it; fit stays inside and is centered.
func Place(mode timeline.ContentMode, src, dst image.Rectangle) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	dw, dh := float64(dst.Dx()), float64(dst.Dy())
	if sw <= 0 || sh <= 0 {
		return image.Rectangle{}
	}
	sx, sy := dw/sw, dh/sh
	scale := min(sx, sy)
	if mode == timeline.ContentFill {
		scale = max(sx, sy)
	}
	w, h := int(sw*scale+0.5), int(sh*scale+0.5)
	x := dst.Min.X + (dst.Dx()-w)/2
	y := dst.Min.Y + (dst.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Snapshot renders the frame at t and writes it as a PNG.
func (r *Renderer) Snapshot(t time.Duration, path string) error {
	frame := r.Frame(t)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
