// Package upload takes guest files through validation, EXIF stripping and
// storage on the image host.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BrunoKrugel/guestshots/internal/config"
	"github.com/BrunoKrugel/guestshots/internal/exif"
	"github.com/BrunoKrugel/guestshots/internal/model"
	"github.com/BrunoKrugel/guestshots/internal/utils"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrTooLarge        = errors.New("upload: file too large")
	ErrUnsupportedType = errors.New("upload: unsupported media type")
	ErrTooManyFiles    = errors.New("upload: too many files")
)

// Uploader stores a file on the image host
type Uploader interface {
	Upload(ctx context.Context, f model.File) (*resty.Response, error)
}

// Incoming is a file as received from a guest, not yet read into memory.
// Size is the declared size; it may be zero when unknown.
type Incoming struct {
	Name      string
	MediaType string
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// Manager processes guest uploads and remembers the latest outcomes
type Manager struct {
	Recent *Recent

	client   Uploader
	logger   *zap.Logger
	maxSize  int64
	maxFiles int
	workers  int
	strip    bool
	stripFn  func(model.File) (model.File, exif.Report)
}

func NewManager(cfg *config.Config, client Uploader, logger *zap.Logger) *Manager {
	return &Manager{
		Recent:   NewRecent(cfg.Server.RecentSize),
		client:   client,
		logger:   logger,
		maxSize:  cfg.MaxUploadBytes(),
		maxFiles: cfg.Server.MaxFiles,
		workers:  cfg.Server.Workers,
		strip:    cfg.Server.StripExif,
		stripFn:  exif.StripFile,
	}
}

// Process handles files concurrently and returns one record per file, in
// input order. Per-file failures are reported on the record; only a batch
// that exceeds the file limit fails as a whole.
func (m *Manager) Process(ctx context.Context, files []Incoming) ([]model.Record, error) {
	if len(files) > m.maxFiles {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(files), m.maxFiles)
	}

	records := make([]model.Record, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, in := range files {
		i, in := i, in
		g.Go(func() error {
			records[i] = m.processOne(gctx, in)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		m.Recent.Add(rec)
	}
	return records, nil
}

func (m *Manager) processOne(ctx context.Context, in Incoming) model.Record {
	rec := model.Record{Name: in.Name, MediaType: in.MediaType, Timestamp: time.Now()}
	log := m.logger.With(zap.String("file", in.Name), zap.String("mediaType", in.MediaType))

	f, err := m.load(in)
	if err != nil {
		log.Warn("upload rejected", zap.Error(err))
		rec.Error = err.Error()
		return rec
	}
	rec.OriginalSize = len(f.Data)

	out := f
	if m.strip {
		stripped, report, err := m.safeStrip(f)
		switch {
		case err != nil:
			log.Error("exif strip failed, uploading original", zap.Error(err))
		case exif.IsJPEG(f.MediaType) && utils.IsValidJPEG(f.Data) && !utils.IsValidJPEG(stripped.Data):
			log.Warn("stripped image failed validation, uploading original")
		default:
			if report.Truncated {
				log.Debug("malformed segment table, stripped up to the broken segment",
					zap.Int("scanned", report.Scanned))
			}
			out = stripped
			rec.ExifRemoved = report.Removed
			rec.Stripped = report.Removed > 0
		}
	}
	rec.StoredSize = len(out.Data)

	resp, err := m.client.Upload(ctx, out)
	if resp != nil {
		rec.Status = resp.StatusCode()
	}
	if err != nil {
		log.Warn("upload failed", zap.Error(err))
		rec.Error = err.Error()
		return rec
	}

	log.Info("upload stored",
		zap.Int("originalSize", rec.OriginalSize),
		zap.Int("storedSize", rec.StoredSize),
		zap.Int("exifRemoved", rec.ExifRemoved))
	return rec
}

// load checks the declared type and size, then reads the file into memory
func (m *Manager) load(in Incoming) (model.File, error) {
	if !utils.IsAllowedImage(in.MediaType) {
		return model.File{}, fmt.Errorf("%w: %q", ErrUnsupportedType, in.MediaType)
	}
	if in.Size > m.maxSize {
		return model.File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, in.Size)
	}

	rc, err := in.Open()
	if err != nil {
		return model.File{}, fmt.Errorf("%w: %s: %w", exif.ErrRead, in.Name, err)
	}
	defer rc.Close()

	f, err := exif.ReadFile(in.Name, in.MediaType, io.LimitReader(rc, m.maxSize+1))
	if err != nil {
		return model.File{}, err
	}
	if int64(len(f.Data)) > m.maxSize {
		return model.File{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, m.maxSize)
	}
	return f, nil
}

// safeStrip turns a panic in the stripper into an error so the original
// file can still be uploaded.
func (m *Manager) safeStrip(f model.File) (out model.File, report exif.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("exif strip panicked: %v", p)
		}
	}()
	out, report = m.stripFn(f)
	return out, report, nil
}
