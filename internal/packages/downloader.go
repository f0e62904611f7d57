package packages

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ErrDownloadFailed indicates the registry could not deliver a package archive.
var ErrDownloadFailed = errors.New("package download failed")

// Downloader fetches a package archive and unpacks it into targetDir.
type Downloader interface {
	DownloadAndExtract(ctx context.Context, url, targetDir string) error
}

// HTTPDownloader implements Downloader using real HTTP requests.
type HTTPDownloader struct {
	client *http.Client
	quiet  bool
}

// NewHTTPDownloader creates a new HTTP-based downloader. When quiet is set no
// progress bar is drawn.
func NewHTTPDownloader(quiet bool) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{},
		quiet:  quiet,
	}
}

// DownloadAndExtract downloads the .tar.gz archive at url and extracts it to targetDir.
func (d *HTTPDownloader) DownloadAndExtract(ctx context.Context, url, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid request: %v", ErrDownloadFailed, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrDownloadFailed, url, resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "typeq-package-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	bar := d.newProgressBar(resp.ContentLength, url)
	written, err := io.Copy(io.MultiWriter(tmpFile, bar), resp.Body)
	tmpFile.Close()
	_ = bar.Finish()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("%w: incomplete download: got %d bytes, expected %d", ErrDownloadFailed, written, resp.ContentLength)
	}

	if err := extractTarGz(tmpPath, targetDir); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	return nil
}

func (d *HTTPDownloader) newProgressBar(total int64, url string) *progressbar.ProgressBar {
	writer := io.Writer(os.Stderr)
	if d.quiet {
		writer = io.Discard
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Downloading "+filepath.Base(url)),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
	)
}

// extractTarGz extracts a .tar.gz file to the target directory.
func extractTarGz(archivePath, targetDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	cleanTarget := filepath.Clean(targetDir)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target := filepath.Join(cleanTarget, header.Name)

		// Security: prevent path traversal
		if target != cleanTarget && !strings.HasPrefix(target, cleanTarget+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("failed to write file %s: %w", target, err)
			}
			f.Close()

		default:
			log.Printf("Warning: skipping unsupported archive entry %c: %s", header.Typeflag, header.Name)
		}
	}

	return nil
}
