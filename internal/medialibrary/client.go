// Package medialibrary talks to the photo storage provider that holds every
// uploaded file. The server only ever acts as the single account configured
// by its refresh token.
package medialibrary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/observability"
)

const (
	appendOnlyScope     = "https://www.googleapis.com/auth/photoslibrary.appendonly"
	readAppCreatedScope = "https://www.googleapis.com/auth/photoslibrary.readonly.appcreateddata"
)

// Client is a thin JSON client for the provider API
type Client struct {
	httpClient     *http.Client
	tokens         oauth2.TokenSource
	apiBaseURL     string
	uploadURL      string
	requestTimeout time.Duration
	maxReadTries   uint
	retryInitial   time.Duration
	logger         *observability.Logger
}

// NewClient creates a client that refreshes its access token with the
// configured refresh token.
func NewClient(ctx context.Context, cfg config.MediaLibrary) *Client {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{appendOnlyScope, readAppCreatedScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return NewClientWithTokenSource(cfg, ts)
}

// NewClientWithTokenSource creates a client around an existing token source
func NewClientWithTokenSource(cfg config.MediaLibrary, ts oauth2.TokenSource) *Client {
	ts = oauth2.ReuseTokenSource(nil, ts)

	tries := cfg.MaxReadRetries
	if tries < 1 {
		tries = 1
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		},
		tokens:         ts,
		apiBaseURL:     strings.TrimSuffix(cfg.APIBaseURL, "/"),
		uploadURL:      cfg.UploadURL,
		requestTimeout: timeout,
		maxReadTries:   uint(tries),
		retryInitial:   500 * time.Millisecond,
		logger:         observability.GetLogger().WithField("component", "medialibrary"),
	}
}

// CreateAlbum creates an app-managed album. Not retried.
func (c *Client) CreateAlbum(ctx context.Context, title string) (*Album, error) {
	var album Album
	err := c.call(ctx, http.MethodPost, "/albums", createAlbumRequest{Album: &Album{Title: title}}, &album)
	if err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}
	if album.ID == "" {
		return nil, errors.New("create album: empty album id in response")
	}
	return &album, nil
}

// UploadSession returns the shared upload endpoint with a current access
// token. The token is valid for every raw transfer until Expiry.
func (c *Client) UploadSession(ctx context.Context) (*UploadSession, error) {
	_, span := observability.StartClientSpan(ctx, "TOKEN", "uploads")
	defer span.End()

	tok, err := c.tokens.Token()
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	observability.SetSuccess(span)

	return &UploadSession{
		Endpoint:    c.uploadURL,
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
	}, nil
}

// BatchCreateItems materializes upload tokens as media items in albumID with
// a single call. Per-item failures are reported in the results, which are in
// the same order as items.
func (c *Client) BatchCreateItems(ctx context.Context, albumID string, items []NewItem) ([]ItemResult, error) {
	req := batchCreateRequest{AlbumID: albumID, NewMediaItems: make([]newMediaItem, len(items))}
	for i, item := range items {
		req.NewMediaItems[i] = newMediaItem{
			Description:     item.Description,
			SimpleMediaItem: simpleMediaItem{UploadToken: item.UploadToken},
		}
	}

	var resp batchCreateResponse
	if err := c.call(ctx, http.MethodPost, "/mediaItems:batchCreate", req, &resp); err != nil {
		return nil, fmt.Errorf("batch create: %w", err)
	}
	return resp.NewMediaItemResults, nil
}

// GetItem fetches one media item. The base URL it carries is fresh.
func (c *Client) GetItem(ctx context.Context, id string) (*MediaItem, error) {
	var item MediaItem
	if err := c.read(ctx, http.MethodGet, "/mediaItems/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, fmt.Errorf("get media item %s: %w", id, err)
	}
	return &item, nil
}

// ListItemsInAlbum returns one page of the items in albumID
func (c *Client) ListItemsInAlbum(ctx context.Context, albumID string, pageSize int, pageToken string) (*MediaItems, error) {
	req := searchRequest{AlbumID: albumID, PageSize: pageSize, PageToken: pageToken}

	var page MediaItems
	if err := c.read(ctx, http.MethodPost, "/mediaItems:search", req, &page); err != nil {
		return nil, fmt.Errorf("list album items: %w", err)
	}
	return &page, nil
}

// FetchContent opens a rendition URL built from a fresh base URL. The caller
// closes the returned body.
func (c *Client) FetchContent(ctx context.Context, contentURL string) (io.ReadCloser, string, error) {
	ctx, span := observability.StartClientSpan(ctx, http.MethodGet, "content")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, "", fmt.Errorf("fetch content: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		observability.RecordError(span, apiErr)
		return nil, "", fmt.Errorf("fetch content: %w", apiErr)
	}

	observability.SetSuccess(span)
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// read performs an idempotent call, retrying throttling and server errors
// with exponential backoff.
func (c *Client) read(ctx context.Context, method, path string, body, out interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.call(ctx, method, path, body, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxReadTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.WithContext(ctx).WithError(err).Warnf("Retrying %s %s in %v", method, path, next)
		}),
	)
	return err
}

// call performs a single JSON request against the API base URL
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	ctx, span := observability.StartClientSpan(ctx, method, path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		observability.RecordError(span, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			observability.RecordError(span, err)
			return fmt.Errorf("decode response: %w", err)
		}
	}

	observability.SetSuccess(span)
	return nil
}

func decodeError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Details.Message == "" {
		apiErr.Details.Message = strings.TrimSpace(string(data))
		if apiErr.Details.Message == "" {
			apiErr.Details.Message = http.StatusText(resp.StatusCode)
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}

// IsNotFound reports whether err is a provider 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
