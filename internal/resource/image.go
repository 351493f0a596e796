package resource

import (
	"context"
	"image"
	"time"

	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/source"
)

// ImageResource is a still frame shown for a declared duration.
type ImageResource struct {
	*state
	path string
	page int
	img  image.Image
}

// NewImageResource wraps an already decoded image. It is available
// immediately.
func NewImageResource(env *Env, img image.Image, duration time.Duration) *ImageResource {
	r := &ImageResource{state: newState(env, media.KindImage), img: img}
	r.markAvailable(media.Size{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}, duration)
	return r
}

// NewImageFileResource references an image file or a PDF page; Prepare
// decodes it.
func NewImageFileResource(env *Env, path string, page int, duration time.Duration) *ImageResource {
	r := &ImageResource{state: newState(env, media.KindImage), path: path, page: page}
	r.duration = duration
	return r
}

func (r *ImageResource) Path() string {
	return r.path
}

func (r *ImageResource) Prepare(progress ProgressFunc, done CompletionFunc) *Task {
	return r.prepare(progress, done, r.load)
}

func (r *ImageResource) load(ctx context.Context, progress ProgressFunc) (loadResult, error) {
	progress(0)
	var img image.Image
	err := r.env.withLoadSlot(ctx, func() error {
		var err error
		img, err = source.Load(r.path, r.page, r.env.DPI)
		return err
	})
	if err != nil {
		return loadResult{}, err
	}
	progress(1)

	return loadResult{
		size:     media.Size{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()},
		duration: r.Duration(),
		apply:    func() { r.img = img },
	}, nil
}

// Image returns the cached still for any time.
func (r *ImageResource) Image(at time.Duration, renderSize media.Size) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusAvailable {
		return nil
	}
	return r.img
}

func (r *ImageResource) Unit() Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Unit{Kind: media.KindImage, Path: r.path, Page: r.page, Image: r.img}
}

// Copy of a file-backed image starts unavailable without the decoded
// frame. An in-memory image is its own identity and stays available.
func (r *ImageResource) Copy() Resource {
	c := &ImageResource{state: r.cloneTiming(), path: r.path, page: r.page}
	if r.path == "" {
		r.mu.Lock()
		c.img = r.img
		r.mu.Unlock()
		if c.img != nil {
			c.markAvailable(media.Size{Width: c.img.Bounds().Dx(), Height: c.img.Bounds().Dy()}, c.duration)
		}
	}
	return c
}
