// Package archive handles the compressed round-trip of the reference store:
// the published .zip is fetched at run start and the updated database is
// re-compressed for publishing at run end.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Compress writes src into a single-entry deflate zip at dst, replacing any
// existing archive.
func Compress(src, dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale archive: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entry, err := zw.Create(filepath.Base(src))
	if err != nil {
		zw.Close()
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		zw.Close()
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", dst, err)
	}

	log.Printf("[INFO] compressed file generated: %s", dst)
	return nil
}

// FetchDB downloads a published .zip and extracts its first .db entry to
// dst. Callers treat failure as "start fresh", not as a fatal condition.
func FetchDB(url, dst string, timeout time.Duration) error {
	resp, err := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "market-movers-pipeline/1.0").
		R().Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode())
	}

	zr, err := zip.NewReader(bytes.NewReader(resp.Body()), int64(len(resp.Body())))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".db") {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		defer src.Close()

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		out, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("create %s: %w", dst, err)
		}
		defer out.Close()

		if _, err := io.Copy(out, src); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
		log.Printf("[INFO] reference store fetched: %s", dst)
		return nil
	}
	return fmt.Errorf("no .db entry found in archive")
}
