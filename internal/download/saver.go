// Package download writes exported files into the downloads directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/cardvault/internal/config"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/pkg/crypto"
)

// maxCollisions bounds the "name (n).ext" search.
const maxCollisions = 1000

// SaveOptions are per-file options.
type SaveOptions struct {
	// Password seals the file when set.
	Password string
}

// SavedFile describes a written download.
type SavedFile struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Sealed bool   `json:"sealed"`
}

// Saver writes export blobs to disk without overwriting existing files.
type Saver struct {
	dir          string
	minFreeBytes int64
	params       crypto.Params
	freeSpace    func(path string) int64
	logger       *slog.Logger
}

// Option configures a Saver.
type Option func(*Saver)

// WithFreeSpaceFunc replaces the free disk space lookup.
func WithFreeSpaceFunc(fn func(path string) int64) Option {
	return func(s *Saver) {
		s.freeSpace = fn
	}
}

// WithSealParams sets the Argon2id cost used when sealing.
func WithSealParams(p crypto.Params) Option {
	return func(s *Saver) {
		s.params = p
	}
}

// NewSaver creates a saver for cfg.Dir.
func NewSaver(cfg config.DownloadConfig, logger *slog.Logger, opts ...Option) *Saver {
	s := &Saver{
		dir:          cfg.Dir,
		minFreeBytes: cfg.MinFreeBytes,
		params:       crypto.DefaultParams(),
		freeSpace:    getFreeDiskSpace,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the downloads directory.
func (s *Saver) Dir() string {
	return s.dir
}

// Save writes data under a sanitised version of filename. If the name is
// taken, " (1)", " (2)" ... is inserted before the extension.
func (s *Saver) Save(ctx context.Context, filename string, data []byte, opts SaveOptions) (*SavedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := SanitizeFilename(filename)
	sealed := false
	if opts.Password != "" {
		var err error
		data, err = crypto.Seal(data, opts.Password, s.params)
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", name, err)
		}
		name += crypto.SealedExt
		sealed = true
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	size := int64(len(data))
	if free := s.freeSpace(s.dir); free > 0 && free-size < s.minFreeBytes {
		return nil, fmt.Errorf("%w: %s free, %s needed plus %s reserve",
			domain.ErrInsufficientSpace,
			humanize.Bytes(uint64(free)),
			humanize.Bytes(uint64(size)),
			humanize.Bytes(uint64(s.minFreeBytes)),
		)
	}

	path, f, err := s.create(name)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	s.logger.Info("download saved",
		"path", path,
		"size", humanize.Bytes(uint64(size)),
		"sealed", sealed,
	)

	return &SavedFile{
		Path:   path,
		Name:   filepath.Base(path),
		Size:   size,
		Sealed: sealed,
	}, nil
}

// create opens a new file for name, picking the first free collision suffix.
func (s *Saver) create(name string) (string, *os.File, error) {
	for n := 0; n < maxCollisions; n++ {
		path := filepath.Join(s.dir, numbered(name, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, fmt.Errorf("create %s: %w", filepath.Base(path), err)
		}
	}
	return "", nil, fmt.Errorf("create %s: too many files with the same name", name)
}

// numbered returns name with " (n)" before its extension; n == 0 is name itself.
// The sealed suffix is kept outside the number: "cards (1).zip.sealed".
func numbered(name string, n int) string {
	if n == 0 {
		return name
	}
	suffix := ""
	if strings.HasSuffix(name, crypto.SealedExt) {
		suffix = crypto.SealedExt
		name = strings.TrimSuffix(name, crypto.SealedExt)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s%s", stem, n, ext, suffix)
}

// SanitizeFilename reduces a server-suggested name to a safe base name.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\\", "/")
	s = filepath.Base(s)

	invalid := []string{"/", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t", "\x00"}
	for _, char := range invalid {
		s = strings.ReplaceAll(s, char, "_")
	}
	s = strings.Trim(s, ". ")

	if s == "" || s == "_" {
		return "cardvault-export"
	}
	if len(s) > 150 {
		ext := filepath.Ext(s)
		if len(ext) > 10 {
			ext = ""
		}
		cut := 150 - len(ext)
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + ext
	}
	return s
}
