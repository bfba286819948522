// Package uploader is the client side of the upload pipeline. It streams file
// bytes straight to the media library provider and drives the server's
// negotiate and finalize endpoints around that transfer.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
)

const (
	// DefaultConcurrency bounds the parallel transfers of one batch
	DefaultConcurrency = 4

	maxTokenBytes = 64 * 1024
)

// ErrEmptyToken is returned when the provider answers a transfer with no token
var ErrEmptyToken = errors.New("upload returned an empty token")

// TransferError is a non-2xx answer to a raw byte transfer
type TransferError struct {
	StatusCode int
	Body       string
}

func (e *TransferError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upload failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

// TransferReport collects per-file outcomes of a batch, keyed by file name
type TransferReport struct {
	Tokens   map[string]string
	Failures map[string]error
}

// Executor streams files to the provider upload endpoint
type Executor struct {
	httpClient  *http.Client
	concurrency int
	logger      *observability.Logger
}

// NewExecutor creates an Executor. A nil client gets one with timeout as its
// per-transfer limit.
func NewExecutor(httpClient *http.Client, timeout time.Duration, concurrency int) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor{
		httpClient:  httpClient,
		concurrency: concurrency,
		logger:      observability.GetLogger().WithField("component", "uploader"),
	}
}

// Transfer posts the raw bytes of file and returns the upload token. The
// token body is returned as sent, minus surrounding whitespace. Transfers are
// never retried.
func (e *Executor) Transfer(ctx context.Context, file *LocalFile, endpoint, authorization string) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return "", err
	}
	req.ContentLength = file.Size
	req.Header.Set("Authorization", bearer(authorization))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Content-Type", file.MimeType)
	req.Header.Set("X-Goog-Upload-File-Name", file.Name)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read upload token: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransferError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// TransferAll uploads files concurrently. One file failing does not stop the
// others. When every file fails the report is returned together with
// models.ErrAllTransfersFailed.
func (e *Executor) TransferAll(ctx context.Context, files []*LocalFile, session *models.NegotiateResult) (*TransferReport, error) {
	report := &TransferReport{
		Tokens:   make(map[string]string, len(files)),
		Failures: make(map[string]error),
	}
	if len(files) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, file := range files {
		g.Go(func() error {
			start := time.Now()
			token, err := e.Transfer(ctx, file, session.UploadEndpoint, session.Authorization)

			mu.Lock()
			defer mu.Unlock()
			logger := e.logger.WithFields(observability.Fields{
				"file":        file.Name,
				"bytes":       file.Size,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if err != nil {
				report.Failures[file.Name] = err
				logger.WithError(err).Warnf("Transfer failed")
				return nil
			}
			report.Tokens[file.Name] = token
			logger.Debugf("Transfer complete")
			return nil
		})
	}
	_ = g.Wait()

	if len(report.Tokens) == 0 {
		return report, models.ErrAllTransfersFailed
	}
	return report, nil
}

// bearer accepts either a bare token or a full header value
func bearer(authorization string) string {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		return authorization
	}
	return "Bearer " + authorization
}
