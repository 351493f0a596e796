// Package gallery serves gallery assets out of a local directory through
// the asynchronous request/cancel contract resources expect from a platform
// asset library.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/scenereel/internal/logging"
	"github.com/ivlev/scenereel/internal/media"
	"github.com/ivlev/scenereel/internal/resource"
)

var ErrAssetNotFound = errors.New("gallery: asset not found")

const chunkSize = 256 << 10

// DirLibrary resolves asset identifiers to files under Root. When CacheDir
// is set, assets are copied there first, the way a cloud-backed gallery
// downloads originals before handing them out.
type DirLibrary struct {
	Root     string
	CacheDir string

	log      zerolog.Logger
	mu       sync.Mutex
	requests map[resource.RequestID]context.CancelFunc
}

func NewDirLibrary(root, cacheDir string) *DirLibrary {
	return &DirLibrary{
		Root:     root,
		CacheDir: cacheDir,
		log:      logging.WithComponent("gallery"),
		requests: make(map[resource.RequestID]context.CancelFunc),
	}
}

// KindOf classifies a file by extension.
func KindOf(path string) (media.Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff", ".heic":
		return media.KindImage, true
	case ".mp4", ".mov", ".m4v", ".mkv", ".webm":
		return media.KindVideo, true
	case ".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg":
		return media.KindAudio, true
	}
	return "", false
}

// Assets lists the identifiers the library can serve.
func (l *DirLibrary) Assets() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := KindOf(e.Name()); ok {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (l *DirLibrary) RequestAsset(assetID string, progress resource.ProgressFunc, done func(resource.Asset, error)) resource.RequestID {
	id := resource.RequestID(uuid.NewString())
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.requests[id] = cancel
	l.mu.Unlock()

	go func() {
		defer l.finish(id)
		asset, err := l.fetch(ctx, assetID, progress)
		if ctx.Err() != nil {
			return
		}
		done(asset, err)
	}()
	return id
}

// CancelRequest stops an outstanding request; its completion never runs.
func (l *DirLibrary) CancelRequest(id resource.RequestID) {
	l.mu.Lock()
	cancel, ok := l.requests[id]
	delete(l.requests, id)
	l.mu.Unlock()
	if ok {
		l.log.Debug().Str("request", string(id)).Msg("request cancelled")
		cancel()
	}
}

// Pending reports how many requests are in flight.
func (l *DirLibrary) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func (l *DirLibrary) finish(id resource.RequestID) {
	l.mu.Lock()
	cancel, ok := l.requests[id]
	delete(l.requests, id)
	l.mu.Unlock()
	if ok {
		cancel()
	}
}

func (l *DirLibrary) fetch(ctx context.Context, assetID string, progress resource.ProgressFunc) (resource.Asset, error) {
	if assetID == "" || strings.Contains(assetID, "..") || filepath.IsAbs(assetID) {
		return resource.Asset{}, fmt.Errorf("%w: %q", ErrAssetNotFound, assetID)
	}
	path := filepath.Join(l.Root, assetID)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return resource.Asset{}, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	kind, ok := KindOf(path)
	if !ok {
		return resource.Asset{}, fmt.Errorf("%w: unsupported type %s", ErrAssetNotFound, assetID)
	}

	report(progress, 0)
	if l.CacheDir != "" {
		path, err = l.download(ctx, path, fi.Size(), progress)
		if err != nil {
			return resource.Asset{}, err
		}
	}
	report(progress, 1)

	return resource.Asset{ID: assetID, Kind: kind, Path: path}, nil
}

// download copies src into the cache through a private temp file that is
// renamed into place once complete. A path already handed out is never
// truncated or removed by a later or cancelled request for the same asset.
func (l *DirLibrary) download(ctx context.Context, src string, size int64, progress resource.ProgressFunc) (path string, err error) {
	if err := os.MkdirAll(l.CacheDir, 0755); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	dst := filepath.Join(l.CacheDir, base)

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(l.CacheDir, "."+base+"-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(out.Name())
		}
	}()

	var copied int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return "", err
			}
			copied += int64(n)
			if size > 0 {
				report(progress, float64(copied)/float64(size))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}

func report(progress resource.ProgressFunc, p float64) {
	if progress != nil {
		progress(p)
	}
}
