package artifact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	domainartifact "github.com/alanyang/annotation-desk/internal/domain/artifact"
	"github.com/alanyang/annotation-desk/internal/domain/event"
	"github.com/alanyang/annotation-desk/internal/domain/raster"
	portcache "github.com/alanyang/annotation-desk/internal/port/cache"
	portbus "github.com/alanyang/annotation-desk/internal/port/eventbus"
	portstorage "github.com/alanyang/annotation-desk/internal/port/storage"
)

// Assignments answers which files a worker may touch.
type Assignments interface {
	Assigned(worker string) ([]string, error)
	Authorize(worker, filename string) error
}

// Service derives per-image status from the file system and serves the
// original, mask and rendered views. Every operation keyed by a filename is
// authorized before storage is touched.
type Service struct {
	assignments Assignments
	storage     portstorage.Storage
	cache       portcache.Cache
	cacheTTL    time.Duration
	bus         portbus.EventBus
}

// NewService builds the artifact service. A nil cache or non-positive ttl
// disables render caching.
func NewService(assignments Assignments, storage portstorage.Storage, cache portcache.Cache, cacheTTL time.Duration, bus portbus.EventBus) *Service {
	return &Service{
		assignments: assignments,
		storage:     storage,
		cache:       cache,
		cacheTTL:    cacheTTL,
		bus:         bus,
	}
}

// Authorize reports whether worker may access filename.
func (s *Service) Authorize(worker, filename string) error {
	return s.assignments.Authorize(worker, filename)
}

// ── status ────────────────────────────────────────────────────────────────────

func (s *Service) Status(ctx context.Context, worker, filename string) (domainartifact.Status, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return domainartifact.Status{}, err
	}
	return s.status(ctx, filename), nil
}

// Statuses reports every assigned image for worker in assignment order.
func (s *Service) Statuses(ctx context.Context, worker string) ([]domainartifact.Status, error) {
	files, err := s.assignments.Assigned(worker)
	if err != nil {
		return nil, err
	}
	out := make([]domainartifact.Status, 0, len(files))
	for _, f := range files {
		out = append(out, s.status(ctx, f))
	}
	return out, nil
}

func (s *Service) Aggregate(ctx context.Context, worker string) (domainartifact.Summary, error) {
	statuses, err := s.Statuses(ctx, worker)
	if err != nil {
		return domainartifact.Summary{}, err
	}
	return domainartifact.Summarize(statuses), nil
}

func (s *Service) status(ctx context.Context, filename string) domainartifact.Status {
	st := domainartifact.Status{
		Original:        filename,
		Base:            domainartifact.Base(filename),
		OriginalPresent: s.exists(ctx, filename),
		EditFilePresent: s.exists(ctx, domainartifact.EditName(filename)),
	}
	if info, ok := s.findMask(ctx, filename); ok {
		st.MaskPresent = true
		st.MaskName = info.Name
	}
	return st
}

func (s *Service) exists(ctx context.Context, name string) bool {
	_, err := s.storage.Stat(ctx, name)
	if err != nil && !errors.Is(err, domainartifact.ErrNotFound) {
		slog.DebugContext(ctx, "stat failed, treating as absent", "name", name, "error", err)
	}
	return err == nil
}

func (s *Service) findMask(ctx context.Context, original string) (portstorage.Info, bool) {
	for _, candidate := range domainartifact.MaskCandidates(original) {
		if info, err := s.storage.Stat(ctx, candidate); err == nil {
			return info, true
		}
	}
	return portstorage.Info{}, false
}

// ── raw files ─────────────────────────────────────────────────────────────────

// OpenOriginal streams the assigned image as stored.
func (s *Service) OpenOriginal(ctx context.Context, worker, filename string) (io.ReadCloser, portstorage.Info, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return nil, portstorage.Info{}, err
	}
	rc, info, err := s.storage.Open(ctx, filename)
	if err != nil {
		return nil, portstorage.Info{}, fmt.Errorf("open original: %w", err)
	}
	return rc, info, nil
}

// OpenMask streams the first mask found for filename.
func (s *Service) OpenMask(ctx context.Context, worker, filename string) (io.ReadCloser, portstorage.Info, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return nil, portstorage.Info{}, err
	}
	info, ok := s.findMask(ctx, filename)
	if !ok {
		return nil, portstorage.Info{}, fmt.Errorf("%w: no mask for %s", domainartifact.ErrNotFound, filename)
	}
	rc, info, err := s.storage.Open(ctx, info.Name)
	if err != nil {
		return nil, portstorage.Info{}, fmt.Errorf("open mask: %w", err)
	}
	return rc, info, nil
}

// ── renders ───────────────────────────────────────────────────────────────────

// BinaryMask returns the thresholded mask as PNG.
func (s *Service) BinaryMask(ctx context.Context, worker, filename string) ([]byte, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return nil, err
	}
	maskInfo, ok := s.findMask(ctx, filename)
	if !ok {
		return nil, fmt.Errorf("%w: no mask for %s", domainartifact.ErrNotFound, filename)
	}

	return s.cached(ctx, "binary|"+fingerprint(maskInfo), func() ([]byte, error) {
		mask, err := s.decode(ctx, maskInfo.Name)
		if err != nil {
			return nil, err
		}
		return raster.EncodePNG(raster.Binarize(mask))
	})
}

// Overlay returns the original with the binarized mask blended over it as PNG.
func (s *Service) Overlay(ctx context.Context, worker, filename string) ([]byte, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return nil, err
	}
	origInfo, err := s.storage.Stat(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("stat original: %w", err)
	}
	maskInfo, ok := s.findMask(ctx, filename)
	if !ok {
		return nil, fmt.Errorf("%w: no mask for %s", domainartifact.ErrNotFound, filename)
	}

	return s.cached(ctx, "overlay|"+fingerprint(origInfo)+"|"+fingerprint(maskInfo), func() ([]byte, error) {
		original, err := s.decode(ctx, origInfo.Name)
		if err != nil {
			return nil, err
		}
		mask, err := s.decode(ctx, maskInfo.Name)
		if err != nil {
			return nil, err
		}
		out, err := raster.Overlay(original, mask)
		if err != nil {
			return nil, err
		}
		return raster.EncodePNG(out)
	})
}

func (s *Service) decode(ctx context.Context, name string) (image.Image, error) {
	rc, _, err := s.storage.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	img, err := raster.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// cached serves key from the render cache or computes and stores it.
func (s *Service) cached(ctx context.Context, key string, render func() ([]byte, error)) ([]byte, error) {
	useCache := s.cache != nil && s.cacheTTL > 0
	if useCache {
		if data, err := s.cache.Get(ctx, key); err == nil {
			return data, nil
		}
	}

	data, err := render()
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			slog.WarnContext(ctx, "failed to cache render", "key", key, "error", err)
		}
	}
	return data, nil
}

// fingerprint changes whenever the file is rewritten.
func fingerprint(info portstorage.Info) string {
	return fmt.Sprintf("%s:%d:%d", info.Name, info.Size, info.ModTime.UnixNano())
}

// ── upload ────────────────────────────────────────────────────────────────────

type PartKind string

const (
	PartEdit PartKind = "edit"
	PartMask PartKind = "mask"
)

// Part is one uploaded file. Filename is the client-side name and only its
// extension is used.
type Part struct {
	Filename string
	Content  io.Reader
}

// UploadRequest carries the optional edit file and mask. Nil means the part
// was not sent.
type UploadRequest struct {
	Edit *Part
	Mask *Part
}

// PartResult is the outcome of one part. Exactly one of SavedAs or Err is set.
type PartResult struct {
	Kind    PartKind `json:"kind"`
	SavedAs string   `json:"saved_as,omitempty"`
	Error   string   `json:"error,omitempty"`
	Err     error    `json:"-"`
}

type UploadResult struct {
	Parts []PartResult `json:"parts"`
}

// Saved counts parts written successfully.
func (r UploadResult) Saved() int {
	n := 0
	for _, p := range r.Parts {
		if p.Err == nil {
			n++
		}
	}
	return n
}

// Err returns the first part error, or nil.
func (r UploadResult) Err() error {
	for _, p := range r.Parts {
		if p.Err != nil {
			return p.Err
		}
	}
	return nil
}

// Upload saves the edit file as <base>.xcf and the mask as
// <base>_mask.<ext>. Parts are independent: one failing does not stop the
// other.
func (s *Service) Upload(ctx context.Context, worker, filename string, req UploadRequest) (UploadResult, error) {
	if err := s.assignments.Authorize(worker, filename); err != nil {
		return UploadResult{}, err
	}
	if req.Edit == nil && req.Mask == nil {
		return UploadResult{}, domainartifact.ErrNoFiles
	}

	var res UploadResult
	if req.Edit != nil {
		res.Parts = append(res.Parts, s.savePart(ctx, worker, filename, PartEdit, req.Edit, domainartifact.EditExtensions,
			func(string) string { return domainartifact.EditName(filename) }))
	}
	if req.Mask != nil {
		res.Parts = append(res.Parts, s.savePart(ctx, worker, filename, PartMask, req.Mask, domainartifact.MaskExtensions,
			func(ext string) string { return domainartifact.MaskName(filename, ext) }))
	}
	return res, nil
}

func (s *Service) savePart(
	ctx context.Context,
	worker, filename string,
	kind PartKind,
	part *Part,
	allowed domainartifact.ExtensionSet,
	target func(ext string) string,
) PartResult {
	fail := func(err error) PartResult {
		slog.WarnContext(ctx, "upload part rejected", "worker", worker, "filename", filename, "kind", kind, "error", err)
		return PartResult{Kind: kind, Error: err.Error(), Err: err}
	}

	ext := domainartifact.Ext(part.Filename)
	if !allowed.Contains(ext) {
		return fail(fmt.Errorf("%w: %q, allowed: %s", domainartifact.ErrExtensionNotAllowed, part.Filename, allowed))
	}

	name := target(ext)
	if err := s.storage.Write(ctx, name, part.Content); err != nil {
		if !errors.Is(err, domainartifact.ErrWriteFailure) {
			err = fmt.Errorf("%w: %v", domainartifact.ErrWriteFailure, err)
		}
		return fail(err)
	}

	slog.InfoContext(ctx, "artifact saved", "worker", worker, "filename", filename, "kind", kind, "saved_as", name)
	if err := s.bus.Publish(ctx, event.New(event.TypeArtifactUploaded, worker, filename)); err != nil {
		slog.ErrorContext(ctx, "failed to publish ArtifactUploaded event", "worker", worker, "filename", filename, "error", err)
	}
	return PartResult{Kind: kind, SavedAs: name}
}
