// internal/judgments/downloader_test.go
package judgments

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-orchestrator/internal/common/config"
	commonerrors "council-orchestrator/internal/common/errors"
	"council-orchestrator/internal/common/logger"
)

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func newArchiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	archive := buildTar(t, map[string]string{
		"english/1955_1_1_25_EN.pdf": "pdf bytes for 1955",
		"english/1955_2_1_99_EN.pdf": "another judgment",
	})
	index := yearIndex{Parts: []indexPart{
		{Name: "part-1.tar", Files: []string{"1955_1_1_25_EN.pdf", "1955_2_1_99_EN.pdf"}},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("/data/tar/year=1955/english/english.index.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(index)
	})
	mux.HandleFunc("/data/tar/year=1955/english/part-1.tar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestDownloader(t *testing.T, baseURL string) *Downloader {
	return NewDownloader(config.JudgmentsConfig{BaseURL: baseURL, Timeout: 5000}, logger.NewTestLogger(t))
}

func TestResolveFilename(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantFilename string
		wantYear     string
		wantErr      bool
	}{
		{name: "bare filename", raw: "1955_1_1_25_EN.pdf", wantFilename: "1955_1_1_25_EN.pdf", wantYear: "1955"},
		{name: "full URL", raw: "https://archive.example.com/some/path/1955_1_1_25_EN.pdf", wantFilename: "1955_1_1_25_EN.pdf", wantYear: "1955"},
		{name: "no leading year", raw: "judgment.pdf", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename, year, err := ResolveFilename(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFilename, filename)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}

func TestStream_Success(t *testing.T) {
	server := newArchiveServer(t)
	d := newTestDownloader(t, server.URL)

	var out bytes.Buffer
	err := d.Stream(context.Background(), "1955_1_1_25_EN.pdf", "1955", &out)

	require.NoError(t, err)
	assert.Equal(t, "pdf bytes for 1955", out.String())
}

func TestStream_FileNotInIndex(t *testing.T) {
	server := newArchiveServer(t)
	d := newTestDownloader(t, server.URL)

	var out bytes.Buffer
	err := d.Stream(context.Background(), "1955_9_9_99_EN.pdf", "1955", &out)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeJudgmentNotFound, stdErr.Code)
	assert.Zero(t, out.Len())
}

func TestStream_MissingYearIndex(t *testing.T) {
	server := newArchiveServer(t)
	d := newTestDownloader(t, server.URL)

	var out bytes.Buffer
	err := d.Stream(context.Background(), "1960_1_1_1_EN.pdf", "1960", &out)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeJudgmentNotFound, stdErr.Code)
}

func TestStream_IndexClaimsMissingMember(t *testing.T) {
	// The index says the file is in the tar, but the archive disagrees.
	archive := buildTar(t, map[string]string{"english/other.pdf": "x"})
	index := yearIndex{Parts: []indexPart{{Name: "part-1.tar", Files: []string{"1955_1_1_25_EN.pdf"}}}}

	mux := http.NewServeMux()
	mux.HandleFunc("/data/tar/year=1955/english/english.index.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(index)
	})
	mux.HandleFunc("/data/tar/year=1955/english/part-1.tar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	d := newTestDownloader(t, server.URL)

	var out bytes.Buffer
	err := d.Stream(context.Background(), "1955_1_1_25_EN.pdf", "1955", &out)

	var stdErr *commonerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, commonerrors.ErrCodeJudgmentNotFound, stdErr.Code)
}
