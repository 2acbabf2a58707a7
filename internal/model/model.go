// Package model locates the offline recognition model and fetches it when
// it is missing.
package model

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

const (
	// DefaultDir is where the model directory lives relative to the working directory.
	DefaultDir = "models/ggml-base.en"
	// DefaultURL is the archive fetched when the model is missing.
	DefaultURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin"
)

// DefaultTimeout bounds a model download when Assets.Timeout is unset.
const DefaultTimeout = 10 * time.Minute

// ErrMissing means no model file exists and downloading is disabled.
var ErrMissing = errors.New("offline model not found")

// Assets describes one model directory and where to fetch it from.
type Assets struct {
	Fs           afero.Fs
	Dir          string
	URL          string
	AutoDownload bool
	// Timeout bounds the whole download. Zero uses DefaultTimeout.
	Timeout time.Duration

	Client *http.Client
	Logger *slog.Logger
	// Progress receives a running byte count while downloading.
	Progress io.Writer
}

func (a Assets) fs() afero.Fs {
	if a.Fs == nil {
		return afero.NewOsFs()
	}
	return a.Fs
}

// ModelFile returns the first .bin file in Dir.
func (a Assets) ModelFile() (string, error) {
	matches, err := afero.Glob(a.fs(), filepath.Join(a.Dir, "*.bin"))
	if err != nil {
		return "", fmt.Errorf("scan model dir %q: %w", a.Dir, err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrMissing, a.Dir)
	}
	return matches[0], nil
}

// Present reports whether a model file exists.
func (a Assets) Present() bool {
	_, err := a.ModelFile()
	return err == nil
}

// Ensure returns the model file path, downloading and unpacking the model
// first when it is absent and AutoDownload is set.
func (a Assets) Ensure(ctx context.Context) (string, error) {
	if file, err := a.ModelFile(); err == nil {
		return file, nil
	}
	if !a.AutoDownload || strings.TrimSpace(a.URL) == "" {
		return "", fmt.Errorf("%w in %s", ErrMissing, a.Dir)
	}

	fs := a.fs()
	parent := filepath.Dir(a.Dir)
	if err := fs.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create model parent dir: %w", err)
	}

	name, err := archiveName(a.URL)
	if err != nil {
		return "", err
	}
	archive := filepath.Join(parent, name)

	a.info("downloading offline model", "url", a.URL, "dest", archive)
	if err := a.download(ctx, archive); err != nil {
		return "", err
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		a.info("extracting offline model", "archive", archive)
		if err := extractZip(fs, archive, parent); err != nil {
			_ = fs.Remove(archive)
			return "", err
		}
		_ = fs.Remove(archive)
	} else {
		if err := fs.MkdirAll(a.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create model dir: %w", err)
		}
		if err := fs.Rename(archive, filepath.Join(a.Dir, name)); err != nil {
			return "", fmt.Errorf("move model into place: %w", err)
		}
	}

	file, err := a.ModelFile()
	if err != nil {
		return "", fmt.Errorf("model unpacked but %w", err)
	}
	a.info("offline model ready", "path", file)
	return file, nil
}

func archiveName(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse model url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("model url %q has no file name", raw)
	}
	return name, nil
}

// download fetches URL into dest through a .tmp file.
func (a Assets) download(ctx context.Context, dest string) error {
	fs := a.fs()
	tmp := dest + ".tmp"

	out, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	ok := false
	defer func() {
		_ = out.Close()
		if !ok {
			_ = fs.Remove(tmp)
		}
	}()

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: status code %d", resp.StatusCode)
	}

	counter := &writeCounter{out: a.Progress}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, counter)); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	counter.finish()

	if err := out.Close(); err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := fs.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	ok = true
	a.info("offline model downloaded", "bytes", humanize.Bytes(counter.total))
	return nil
}

// extractZip unpacks archive under dest, rejecting entries that escape it.
func extractZip(fs afero.Fs, archive, dest string) error {
	file, err := fs.Open(archive)
	if err != nil {
		return fmt.Errorf("open model archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat model archive: %w", err)
	}
	reader, err := zip.NewReader(file, info.Size())
	if err != nil {
		return fmt.Errorf("read model archive: %w", err)
	}

	root := filepath.Clean(dest)
	for _, entry := range reader.File {
		target := filepath.Join(root, filepath.FromSlash(entry.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("archive entry %q escapes %s", entry.Name, dest)
		}
		if entry.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		if err := extractEntry(fs, entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(fs afero.Fs, entry *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return dst.Close()
}

func (a Assets) info(message string, args ...any) {
	if a.Logger != nil {
		a.Logger.Info(message, args...)
	}
}

// writeCounter tracks bytes written and reports progress.
type writeCounter struct {
	total uint64
	out   io.Writer
}

func (wc *writeCounter) Write(p []byte) (int, error) {
	wc.total += uint64(len(p))
	if wc.out != nil {
		fmt.Fprintf(wc.out, "\r%s", strings.Repeat(" ", 50))
		fmt.Fprintf(wc.out, "\rDownloading model... %s complete", humanize.Bytes(wc.total))
	}
	return len(p), nil
}

func (wc *writeCounter) finish() {
	if wc.out != nil && wc.total > 0 {
		fmt.Fprintln(wc.out)
	}
}
