// Package archive writes raw fetched artifacts to the on-disk artifact tree.
//
// The tree is rooted at one directory with subdirectories per artifact kind
// (html/, pdf/, images/, xml/). HTML snapshots carry a timestamp suffix so
// repeated fetches of the same URL accumulate history instead of overwriting;
// binaries are keyed by URL hash alone, so a re-fetch overwrites the local
// copy in place.
package archive

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// Subdirectory names under the artifact root.
const (
	htmlDir  = "html"
	pdfDir   = "pdf"
	imageDir = "images"
	xmlDir   = "xml"
)

// FS stores artifacts under a root directory on the local filesystem.
type FS struct {
	root   string
	logger *zap.Logger
	now    func() time.Time
}

// New returns an FS rooted at dir, creating the kind subdirectories.
func New(dir string, logger *zap.Logger) (*FS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, sub := range []string{htmlDir, pdfDir, imageDir, xmlDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("create archive dir %s: %w", sub, err)
		}
	}
	return &FS{root: dir, logger: logger, now: time.Now}, nil
}

// SaveHTML writes a timestamped snapshot of a fetched page's raw HTML.
// When two snapshots of the same URL land in the same second, a counter
// suffix keeps the earlier one on disk.
func (a *FS) SaveHTML(url string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty page body")
	}
	name := fmt.Sprintf("%s_%s", hashURL(url), a.now().UTC().Format("20060102T150405"))
	target := filepath.Join(a.root, htmlDir, name+".html")
	for i := 1; ; i++ {
		if _, err := os.Stat(target); err != nil {
			break
		}
		target = filepath.Join(a.root, htmlDir, fmt.Sprintf("%s_%d.html", name, i))
	}
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", target, err)
	}
	a.logger.Debug("saved HTML snapshot", zap.String("url", url), zap.String("path", target))
	return target, nil
}

// SaveBinary writes a downloaded attachment under the subdirectory for its
// kind. The filename is derived from the URL hash, so re-fetching the same
// file overwrites the previous copy rather than accumulating duplicates.
func (a *FS) SaveBinary(url string, body []byte, contentType string, kind scrape.DocKind) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty payload for %s", url)
	}
	var sub, fallbackExt string
	switch kind {
	case scrape.DocKindPDF:
		sub, fallbackExt = pdfDir, ".pdf"
	case scrape.DocKindImage:
		sub, fallbackExt = imageDir, ".img"
	case scrape.DocKindAKN:
		sub, fallbackExt = xmlDir, ".xml"
	default:
		return "", fmt.Errorf("unsupported artifact kind %q", kind)
	}
	target := filepath.Join(a.root, sub, hashURL(url)+extForContentType(contentType, fallbackExt))
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", target, err)
	}
	a.logger.Debug("saved artifact",
		zap.String("url", url),
		zap.String("kind", string(kind)),
		zap.String("path", target),
	)
	return target, nil
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func extForContentType(contentType, fallback string) string {
	switch {
	case contains(contentType, "pdf"):
		return ".pdf"
	case contains(contentType, "jpeg"), contains(contentType, "jpg"):
		return ".jpg"
	case contains(contentType, "png"):
		return ".png"
	case contains(contentType, "gif"):
		return ".gif"
	case contains(contentType, "xml"):
		return ".xml"
	}
	return fallback
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
