package resource

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/ivlev/scenereel/internal/media"
)

// Asset is a gallery entry resolved to a local, decodable file.
type Asset struct {
	ID   string
	Kind media.Kind
	Path string
}

type RequestID string

// Library is the platform asset library boundary: assets are fetched
// asynchronously by opaque identifier and requests can be cancelled.
type Library interface {
	RequestAsset(assetID string, progress ProgressFunc, done func(Asset, error)) RequestID
	CancelRequest(id RequestID)
}

// Factory builds the concrete resource for a resolved asset. duration is
// the time the gallery item was declared to occupy, used by stills.
type Factory func(asset Asset, duration time.Duration) (Resource, error)

// NewAssetFactory returns a Factory producing image or track resources.
func NewAssetFactory(env *Env, prober Prober) Factory {
	return func(asset Asset, duration time.Duration) (Resource, error) {
		switch asset.Kind {
		case media.KindImage:
			return NewImageFileResource(env, asset.Path, 0, duration), nil
		case media.KindVideo, media.KindAudio:
			return NewTrackResource(env, prober, asset.Path, asset.Kind), nil
		default:
			return nil, fmt.Errorf("unsupported asset kind %q", asset.Kind)
		}
	}
}

// GalleryResource resolves a library asset, then defers to the resource
// the factory builds for it.
type GalleryResource struct {
	*state
	lib     Library
	assetID string
	factory Factory
	inner   Resource
}

func NewGalleryResource(env *Env, lib Library, assetID string, kind media.Kind, factory Factory) *GalleryResource {
	return &GalleryResource{
		state:   newState(env, kind),
		lib:     lib,
		assetID: assetID,
		factory: factory,
	}
}

func (r *GalleryResource) AssetID() string {
	return r.assetID
}

func (r *GalleryResource) Prepare(progress ProgressFunc, done CompletionFunc) *Task {
	return r.prepare(progress, done, r.load)
}

type assetResult struct {
	asset Asset
	err   error
}

type prepareResult struct {
	status Status
	err    error
}

func (r *GalleryResource) load(ctx context.Context, progress ProgressFunc) (loadResult, error) {
	fetched := make(chan assetResult, 1)
	reqID := r.lib.RequestAsset(r.assetID,
		func(p float64) { progress(p * 0.5) },
		func(a Asset, err error) { fetched <- assetResult{asset: a, err: err} },
	)

	var asset Asset
	select {
	case <-ctx.Done():
		r.lib.CancelRequest(reqID)
		return loadResult{}, ctx.Err()
	case res := <-fetched:
		if res.err != nil {
			return loadResult{}, fmt.Errorf("fetch asset %s: %w", r.assetID, res.err)
		}
		asset = res.asset
	}

	inner, err := r.factory(asset, r.TimelineDuration())
	if err != nil {
		return loadResult{}, fmt.Errorf("asset %s: %w", r.assetID, err)
	}
	if r.selectedIsSet() {
		if err := inner.SetSelectedTimeRange(r.SelectedTimeRange()); err != nil {
			return loadResult{}, err
		}
	}
	inner.SetScaledDuration(r.ScaledDuration())

	prepared := make(chan prepareResult, 1)
	task := inner.Prepare(
		func(p float64) { progress(0.5 + p*0.5) },
		func(s Status, err error) { prepared <- prepareResult{status: s, err: err} },
	)

	select {
	case <-ctx.Done():
		task.Cancel()
		return loadResult{}, ctx.Err()
	case res := <-prepared:
		if res.status != StatusAvailable {
			return loadResult{}, res.err
		}
	}

	return loadResult{
		size:     inner.Size(),
		duration: inner.Duration(),
		apply:    func() { r.inner = inner },
	}, nil
}

func (r *GalleryResource) selectedIsSet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedSet
}

func (r *GalleryResource) wrapped() Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner
}

func (r *GalleryResource) SetSelectedTimeRange(tr media.TimeRange) error {
	if err := r.state.SetSelectedTimeRange(tr); err != nil {
		return err
	}
	if inner := r.wrapped(); inner != nil {
		return inner.SetSelectedTimeRange(tr)
	}
	return nil
}

func (r *GalleryResource) SetScaledDuration(d time.Duration) {
	r.state.SetScaledDuration(d)
	if inner := r.wrapped(); inner != nil {
		inner.SetScaledDuration(d)
	}
}

func (r *GalleryResource) Image(at time.Duration, renderSize media.Size) image.Image {
	inner := r.wrapped()
	if inner == nil {
		return nil
	}
	return inner.Image(at, renderSize)
}

func (r *GalleryResource) Unit() Unit {
	if inner := r.wrapped(); inner != nil {
		return inner.Unit()
	}
	return Unit{Kind: r.kind}
}

func (r *GalleryResource) Copy() Resource {
	return &GalleryResource{
		state:   r.cloneTiming(),
		lib:     r.lib,
		assetID: r.assetID,
		factory: r.factory,
	}
}
