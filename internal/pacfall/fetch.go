package pacfall

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
)

const httpUserAgent = "pacfall/" + "1.0" + " (+https://github.com/pacfall/pacfall)"

// newHTTPClient returns the client used for search queries and snapshot
// downloads. 10s covers the search APIs; snapshot bodies are streamed so
// the timeout only bounds the response headers.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// httpGet performs a GET with our User-Agent and returns the response.
// Callers own the body.
func httpGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}
	return resp, nil
}

// downloadFile streams url into destFile, drawing a progress bar when the
// server reports a length.
func downloadFile(ctx context.Context, client *http.Client, url, destFile string) error {
	resp, err := httpGet(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}

	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destFile, err)
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		os.Remove(destFile)
		return fmt.Errorf("download of %s failed: %w", url, err)
	}
	return nil
}

// extractTarGz unpacks a gzip tarball into dest, guarding against path
// traversal in archive member names.
func extractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return err
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		fpath := filepath.Join(dest, hdr.Name)
		if !strings.HasPrefix(fpath, dest+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, fpath); err != nil && !os.IsExist(err) {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
				return err
			}
			outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}
}
