// internal/judgments/downloader.go
// Package judgments streams court judgment PDFs out of the public tar
// archive: the per-year index says which tar part holds a file, and the
// matching member is copied straight from the tar stream to the client.
package judgments

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"council-orchestrator/internal/common/config"
	commonerrors "council-orchestrator/internal/common/errors"
	httpclient "council-orchestrator/internal/common/http"
	"council-orchestrator/internal/common/logger"
)

// Downloader resolves judgment filenames against the archive index and
// streams single tar members without buffering whole archives.
type Downloader struct {
	baseURL string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewDownloader(cfg config.JudgmentsConfig, log logger.Logger) *Downloader {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Downloader{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpclient.NewClient(timeout),
		logger:  log.With(map[string]interface{}{"component": "judgments"}),
	}
}

type yearIndex struct {
	Parts []indexPart `json:"parts"`
}

type indexPart struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// ResolveFilename accepts either a bare filename or a full URL and returns
// the filename plus the year encoded in its leading segment.
func ResolveFilename(raw string) (filename, year string, err error) {
	segments := strings.Split(raw, "/")
	filename = segments[len(segments)-1]

	parts := strings.Split(filename, "_")
	if len(parts) == 0 || !isDigits(parts[0]) {
		return "", "", commonerrors.NewInvalidFilenameError(
			fmt.Sprintf("no leading year in %q", filename))
	}
	return filename, parts[0], nil
}

// Stream copies the judgment PDF to w. The caller must not have written
// headers yet when an error is returned.
func (d *Downloader) Stream(ctx context.Context, filename, year string, w io.Writer) error {
	index, err := d.fetchIndex(ctx, year)
	if err != nil {
		return err
	}

	tarName := ""
	for _, part := range index.Parts {
		for _, f := range part.Files {
			if f == filename {
				tarName = part.Name
				break
			}
		}
		if tarName != "" {
			break
		}
	}
	if tarName == "" {
		return commonerrors.NewJudgmentNotFoundError(filename)
	}

	return d.streamMember(ctx, year, tarName, filename, w)
}

func (d *Downloader) fetchIndex(ctx context.Context, year string) (*yearIndex, error) {
	url := fmt.Sprintf("%s/data/tar/year=%s/english/english.index.json", d.baseURL, year)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, commonerrors.NewArchiveFetchError(err)
	}

	res, err := d.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, commonerrors.NewArchiveFetchError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, commonerrors.NewJudgmentNotFoundError(fmt.Sprintf("index for year %s", year))
	}
	if res.StatusCode != http.StatusOK {
		return nil, commonerrors.NewArchiveFetchError(fmt.Errorf("index fetch: %s", res.Status))
	}

	var index yearIndex
	if err := json.NewDecoder(res.Body).Decode(&index); err != nil {
		return nil, commonerrors.NewArchiveFetchError(err)
	}
	return &index, nil
}

func (d *Downloader) streamMember(ctx context.Context, year, tarName, filename string, w io.Writer) error {
	url := fmt.Sprintf("%s/data/tar/year=%s/english/%s", d.baseURL, year, tarName)
	d.logger.Info("streaming judgment from archive", map[string]interface{}{
		"tar":  tarName,
		"file": filename,
	})

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return commonerrors.NewArchiveFetchError(err)
	}
	res, err := d.client.DoWithContext(ctx, req)
	if err != nil {
		return commonerrors.NewArchiveFetchError(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return commonerrors.NewArchiveFetchError(fmt.Errorf("tar fetch: %s", res.Status))
	}

	reader := tar.NewReader(res.Body)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			// The index claimed the file lives here but the archive
			// disagrees; surface it as not found, not an upstream error.
			return commonerrors.NewJudgmentNotFoundError(filename)
		}
		if err != nil {
			return commonerrors.NewArchiveFetchError(err)
		}
		if !strings.HasSuffix(header.Name, filename) {
			continue
		}
		if _, err := io.Copy(w, reader); err != nil {
			return commonerrors.NewArchiveFetchError(err)
		}
		return nil
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
