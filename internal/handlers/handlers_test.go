package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/medialibrary"
	custommw "github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/repository"
	"github.com/weddingphotos/server/internal/services"
)

// stubLibrary is an in-memory media library
type stubLibrary struct {
	mu       sync.Mutex
	albums   int
	items    map[string]*medialibrary.MediaItem
	rejected map[string]string // upload token -> failure message
	batchErr error
}

func newStubLibrary() *stubLibrary {
	return &stubLibrary{
		items:    make(map[string]*medialibrary.MediaItem),
		rejected: make(map[string]string),
	}
}

func (s *stubLibrary) CreateAlbum(ctx context.Context, title string) (*medialibrary.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums++
	id := fmt.Sprintf("prov-album-%d", s.albums)
	return &medialibrary.Album{ID: id, Title: title, IsWriteable: true}, nil
}

func (s *stubLibrary) UploadSession(ctx context.Context) (*medialibrary.UploadSession, error) {
	return &medialibrary.UploadSession{
		Endpoint:    "https://upload.example/v1/uploads",
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func (s *stubLibrary) BatchCreateItems(ctx context.Context, albumID string, items []medialibrary.NewItem) ([]medialibrary.ItemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}

	results := make([]medialibrary.ItemResult, len(items))
	for i, item := range items {
		if msg, ok := s.rejected[item.UploadToken]; ok {
			results[i] = medialibrary.ItemResult{
				UploadToken: item.UploadToken,
				Status:      medialibrary.Status{Code: 3, Message: msg},
			}
			continue
		}
		mi := &medialibrary.MediaItem{
			ID:          "item-" + item.UploadToken,
			Description: item.Description,
			BaseURL:     "https://lh3/" + item.UploadToken,
			MimeType:    "image/jpeg",
			Filename:    item.UploadToken + ".jpg",
		}
		s.items[mi.ID] = mi
		results[i] = medialibrary.ItemResult{UploadToken: item.UploadToken, Status: medialibrary.Status{Message: "Success"}, MediaItem: mi}
	}
	return results, nil
}

func (s *stubLibrary) GetItem(ctx context.Context, id string) (*medialibrary.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, &medialibrary.APIError{StatusCode: http.StatusNotFound}
	}
	copied := *item
	return &copied, nil
}

func (s *stubLibrary) ListItemsInAlbum(ctx context.Context, albumID string, pageSize int, pageToken string) (*medialibrary.MediaItems, error) {
	return &medialibrary.MediaItems{}, nil
}

func (s *stubLibrary) FetchContent(ctx context.Context, contentURL string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("bytes:" + contentURL)), "image/jpeg", nil
}

// captureMailer keeps the last sign-in email per address
type captureMailer struct {
	mu   sync.Mutex
	sent map[string]services.SignInEmailData
}

func (m *captureMailer) SendSignInEmail(ctx context.Context, toEmail string, data services.SignInEmailData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = make(map[string]services.SignInEmailData)
	}
	m.sent[toEmail] = data
	return nil
}

func (m *captureMailer) last(email string) (services.SignInEmailData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sent[email]
	return data, ok
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("connection refused") }

type apiEnv struct {
	db       *sql.DB
	library  *stubLibrary
	mailer   *captureMailer
	auth     *services.AuthService
	users    *repository.UserRepository
	albums   *repository.AlbumRepository
	items    *repository.MediaItemRepository
	sessions *repository.WebSessionRepository
	mirror   *services.MirrorSync
	hub      *services.WebSocketHub
	router   *Router
	handler  http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.Auth.BaseURL = "https://photos.example.com"

	env := &apiEnv{
		db:       db,
		library:  newStubLibrary(),
		mailer:   &captureMailer{},
		users:    repository.NewUserRepository(db),
		albums:   repository.NewAlbumRepository(db),
		items:    repository.NewMediaItemRepository(db),
		sessions: repository.NewWebSessionRepository(db),
	}

	hub := services.NewWebSocketHub()
	go hub.Run(ctx)
	env.hub = hub

	env.auth = services.NewAuthService(env.users, repository.NewMagicLinkRepository(db), env.sessions, env.mailer, cfg.Auth, nil)
	albumSvc := services.NewAlbumService(env.albums, env.library, nil)
	env.mirror = services.NewMirrorSync(env.items, env.albums, hub, nil, time.Minute)
	t.Cleanup(env.mirror.Wait)
	uploads := services.NewUploadService(services.NewUploadValidator(cfg.Upload), albumSvc, env.albums, env.library, env.mirror, hub, nil)
	gallery := services.NewGalleryService(env.albums, env.items, env.library, env.mirror, nil)

	env.router = &Router{
		Health:      NewHealthHandler(db),
		Auth:        NewAuthHandler(env.auth, cfg.Auth),
		Uploads:     NewUploadHandler(uploads),
		Gallery:     NewGalleryHandler(gallery),
		WebSocket:   NewWebSocketHandler(hub),
		Sessions:    env.auth,
		CookieName:  "session_token",
		AuthLimiter: custommw.NewIPRateLimiter(time.Minute, 20),
	}
	env.handler = env.router.Handler()
	return env
}

// signIn creates a user with a live session and returns the session id
func (e *apiEnv) signIn(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	user, err := models.NewUser(email)
	require.NoError(t, err)
	require.NoError(t, e.users.Add(context.Background(), user))

	session := models.NewWebSession(user.ID, nil, "10.0.0.1", "test", 24)
	require.NoError(t, e.sessions.Add(context.Background(), session))
	return user, session.ID
}

func (e *apiEnv) do(t *testing.T, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = strings.NewReader(raw)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_token", Value: sessionID})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	return nil
}

func jpeg(name string, size int64) models.FileDescriptor {
	return models.FileDescriptor{Name: name, Size: size, MimeType: "image/jpeg"}
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.HealthResponse](t, rec)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Database)
	}

	env.router.Health = NewHealthHandler(failingPinger{})
	rec := httptest.NewRecorder()
	env.router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[models.HealthResponse](t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unreachable", resp.Database)
}

func TestVersion(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[VersionResponse](t, rec)
	assert.Equal(t, Version, resp.Version)
	assert.NotEmpty(t, resp.GoVersion)
}

func TestNegotiateEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	_, sid := env.signIn(t, "guest@example.com")
	req := models.NegotiateRequest{Files: []models.FileDescriptor{jpeg("a.jpg", 1024), jpeg("b.jpg", 2048)}}

	t.Run("anonymous", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", "", req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Authentication required.", decode[models.ErrorResponse](t, rec).Error)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", "bogus", req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid, "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body.", decode[models.ErrorResponse](t, rec).Error)
	})

	t.Run("validation problems", func(t *testing.T) {
		bad := models.NegotiateRequest{Files: []models.FileDescriptor{
			{Name: "notes.txt", Size: 10, MimeType: "text/plain"},
			{Name: "empty.jpg", Size: 0, MimeType: "image/jpeg"},
		}}
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid, bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[models.ErrorResponse](t, rec)
		assert.Equal(t, "Validation failed.", resp.Error)
		assert.Len(t, resp.Details, 2)
	})

	t.Run("empty batch", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid, models.NegotiateRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns endpoint and authorization", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[models.NegotiateResult](t, rec)
		assert.Equal(t, "prov-album-1", resp.AlbumID)
		assert.Equal(t, "https://upload.example/v1/uploads", resp.UploadEndpoint)
		assert.Equal(t, "Bearer access-1", resp.Authorization)
		assert.True(t, resp.Expiry.After(time.Now()))

		// the album is reused on the next batch
		rec = env.do(t, http.MethodPost, "/api/uploads/negotiate", sid, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "prov-album-1", decode[models.NegotiateResult](t, rec).AlbumID)
	})
}

func TestFinalizeEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	user, sid := env.signIn(t, "guest@example.com")

	rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid,
		models.NegotiateRequest{Files: []models.FileDescriptor{jpeg("a.jpg", 10), jpeg("b.jpg", 10)}})
	require.Equal(t, http.StatusOK, rec.Code)
	albumID := decode[models.NegotiateResult](t, rec).AlbumID

	t.Run("partial failure is a 200", func(t *testing.T) {
		env.library.rejected["tok-b"] = "Failed: the upload token expired"
		req := models.FinalizeRequest{AlbumID: albumID, Tokens: []models.UploadedToken{
			{Filename: "a.jpg", UploadSessionToken: "tok-a"},
			{Filename: "b.jpg", UploadSessionToken: "tok-b"},
		}}

		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[models.FinalizeResult](t, rec)
		assert.Equal(t, 1, resp.CreatedCount)
		assert.Equal(t, 2, resp.TotalCount)
		require.Len(t, resp.Items, 2)
		assert.Equal(t, models.FinalizeItemCreated, resp.Items[0].Status)
		require.NotNil(t, resp.Items[0].ProviderItemID)
		assert.Equal(t, "item-tok-a", *resp.Items[0].ProviderItemID)
		assert.Equal(t, models.FinalizeItemFailed, resp.Items[1].Status)
		assert.Nil(t, resp.Items[1].ProviderItemID)
		assert.Contains(t, resp.Items[1].Message, "expired")

		env.mirror.Wait()
		stored, err := env.items.GetByProviderID(context.Background(), "item-tok-a")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, user.ID, stored.OwnerUserID)
	})

	t.Run("someone else's album", func(t *testing.T) {
		_, otherSID := env.signIn(t, "other@example.com")
		req := models.FinalizeRequest{AlbumID: albumID, Tokens: []models.UploadedToken{{Filename: "x.jpg", UploadSessionToken: "tok-x"}}}
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", otherSID, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown album", func(t *testing.T) {
		req := models.FinalizeRequest{AlbumID: "prov-album-missing", Tokens: []models.UploadedToken{{Filename: "x.jpg", UploadSessionToken: "tok-x"}}}
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no tokens", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, models.FinalizeRequest{AlbumID: albumID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider failure carries the upstream status and message", func(t *testing.T) {
		env.library.batchErr = &medialibrary.APIError{
			StatusCode: http.StatusTooManyRequests,
			Details: medialibrary.ErrorDetails{
				Code:    429,
				Message: "Quota exceeded for quota metric",
				Status:  "RESOURCE_EXHAUSTED",
			},
		}
		defer func() { env.library.batchErr = nil }()

		req := models.FinalizeRequest{AlbumID: albumID, Tokens: []models.UploadedToken{{Filename: "c.jpg", UploadSessionToken: "tok-c"}}}
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		resp := decode[models.ErrorResponse](t, rec)
		assert.Equal(t, "The media library is unavailable. Please try again.", resp.Error)
		assert.Equal(t, http.StatusTooManyRequests, resp.UpstreamStatus)
		assert.Equal(t, []string{
			"batch create failed: 429 Quota exceeded for quota metric",
			"RESOURCE_EXHAUSTED",
		}, resp.Details)
	})

	t.Run("provider failure without a message uses the status text", func(t *testing.T) {
		env.library.batchErr = &medialibrary.APIError{StatusCode: http.StatusServiceUnavailable}
		defer func() { env.library.batchErr = nil }()

		req := models.FinalizeRequest{AlbumID: albumID, Tokens: []models.UploadedToken{{Filename: "c.jpg", UploadSessionToken: "tok-c"}}}
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		resp := decode[models.ErrorResponse](t, rec)
		assert.Equal(t, http.StatusServiceUnavailable, resp.UpstreamStatus)
		assert.Equal(t, []string{"batch create failed: 503 Service Unavailable"}, resp.Details)
	})

	t.Run("network failure is described without a status", func(t *testing.T) {
		env.library.batchErr = errors.New("dial tcp: connection refused")
		defer func() { env.library.batchErr = nil }()

		req := models.FinalizeRequest{AlbumID: albumID, Tokens: []models.UploadedToken{{Filename: "c.jpg", UploadSessionToken: "tok-c"}}}
		rec := env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		resp := decode[models.ErrorResponse](t, rec)
		assert.Zero(t, resp.UpstreamStatus)
		assert.Equal(t, []string{"batch create failed: dial tcp: connection refused"}, resp.Details)
	})
}

func TestGalleryEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	guest, sid := env.signIn(t, "guest@example.com")
	shy, shySID := env.signIn(t, "shy@example.com")

	album, err := models.NewAlbum(guest.ID, "prov-guest", models.AlbumTitleFor(guest.Email, time.Now()), "", true)
	require.NoError(t, err)
	require.NoError(t, env.albums.Add(ctx, album))

	shyAlbum, err := models.NewAlbum(shy.ID, "prov-shy", models.AlbumTitleFor(shy.Email, time.Now()), "", true)
	require.NoError(t, err)
	shyAlbum.IsPublic = false
	require.NoError(t, env.albums.Add(ctx, shyAlbum))

	var rows []*models.MediaItem
	for i := 0; i < 3; i++ {
		taken := time.Date(2026, 6, 20, 15, i, 0, 0, time.UTC)
		item := medialibrary.MediaItem{
			ID:            fmt.Sprintf("p%d", i),
			BaseURL:       fmt.Sprintf("https://lh3/p%d", i),
			MimeType:      "image/jpeg",
			Filename:      fmt.Sprintf("IMG_%d.jpg", i),
			MediaMetadata: medialibrary.MediaMetadata{CreationTime: &taken, Width: "4000", Height: "3000"},
		}
		env.library.items[item.ID] = &item
		rows = append(rows, services.ToMediaItem(guest.ID, &album.ID, item))
	}
	require.NoError(t, env.items.Upsert(ctx, rows))

	t.Run("albums", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/albums", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.AlbumListResponse](t, rec)
		assert.Equal(t, 1, resp.TotalCount)
	})

	t.Run("album items paginate", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/albums/"+album.ID+"/items?pageSize=2", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.AlbumItemsResponse](t, rec)
		assert.Equal(t, 3, resp.TotalCount)
		assert.Len(t, resp.Items, 2)
		assert.Equal(t, "2", resp.NextPageToken)

		rec = env.do(t, http.MethodGet, "/api/albums/"+album.ID+"/items?pageSize=2&pageToken=2", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[models.AlbumItemsResponse](t, rec)
		assert.Len(t, resp.Items, 1)
		assert.Empty(t, resp.NextPageToken)
	})

	t.Run("private album", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/albums/"+shyAlbum.ID+"/items", sid, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/albums/nope/items", sid, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("gallery", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/gallery/items?page=1&pageSize=500", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.GalleryResponse](t, rec)
		assert.Equal(t, 3, resp.TotalCount)
		assert.Len(t, resp.Items, 3)

		rec = env.do(t, http.MethodGet, "/api/gallery/items?page=9223372036854775807&pageSize=100", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[models.GalleryResponse](t, rec)
		assert.Empty(t, resp.Items)
		assert.Empty(t, resp.NextPageToken)
	})

	t.Run("download url", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/items/"+rows[0].ID+"/download-url", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.DownloadURLResponse](t, rec)
		assert.Equal(t, "https://lh3/p0=d", resp.DownloadURL)
		assert.Equal(t, "IMG_0.jpg", resp.Filename)

		rec = env.do(t, http.MethodGet, "/api/items/"+rows[0].ID+"/download-url", shySID, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/items/missing/download-url", sid, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bulk download", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/items/download-urls", sid,
			models.BulkDownloadRequest{MediaItemIDs: []string{rows[1].ID, "missing"}})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.BulkDownloadResponse](t, rec)
		assert.Equal(t, 1, resp.SuccessCount)
		assert.Equal(t, 2, resp.TotalCount)
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "https://lh3/p1=d", resp.Items[0].DownloadURL)
		assert.NotEmpty(t, resp.Items[1].Error)

		rec = env.do(t, http.MethodPost, "/api/items/download-urls", sid, models.BulkDownloadRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("display url and image", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/items/"+rows[2].ID+"/display-url?w=800&h=600", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://lh3/p2=w800-h600", decode[models.DisplayURLResponse](t, rec).DisplayURL)

		rec = env.do(t, http.MethodGet, "/api/items/"+rows[2].ID+"/image?w=200&h=200", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "private, max-age=3000", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "bytes:https://lh3/p2=w200-h200", rec.Body.String())
	})

	t.Run("library items without an album", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/library/items", shySID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("magic link then confirm", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "Guest@Example.com"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decode[models.MessageResponse](t, rec).Message)

		mail, ok := env.mailer.last("guest@example.com")
		require.True(t, ok)
		link, err := url.Parse(mail.Link)
		require.NoError(t, err)

		rec = env.do(t, http.MethodGet, link.RequestURI(), "", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/gallery", rec.Header().Get("Location"))
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)

		rec = env.do(t, http.MethodGet, "/api/auth/session", cookie.Value, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "guest@example.com", decode[models.SessionResponse](t, rec).User.Email)

		// links are single use
		rec = env.do(t, http.MethodGet, link.RequestURI(), "", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?error="))
	})

	t.Run("repeated request is rate limited", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "guest@example.com"})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verify code and logout", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "coder@example.com"})
		require.Equal(t, http.StatusOK, rec.Code)
		mail, ok := env.mailer.last("coder@example.com")
		require.True(t, ok)

		rec = env.do(t, http.MethodPost, "/api/auth/verify-code", "", models.VerifyCodeRequest{Email: "coder@example.com", Code: "000000x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/auth/verify-code", "", models.VerifyCodeRequest{Email: "coder@example.com", Code: mail.Code})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)

		rec = env.do(t, http.MethodPost, "/api/auth/logout", cookie.Value, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		cleared := sessionCookie(rec)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)

		rec = env.do(t, http.MethodGet, "/api/auth/session", cookie.Value, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/auth/confirm", "", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "/login?error=")
	})
}

func TestAuthLimiter(t *testing.T) {
	env := newAPIEnv(t)
	env.router.AuthLimiter = custommw.NewIPRateLimiter(time.Hour, 1)
	env.handler = env.router.Handler()

	rec := env.do(t, http.MethodPost, "/api/auth/magic-link", "", models.MagicLinkRequest{Email: "a@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/verify-code", "", models.VerifyCodeRequest{Email: "a@example.com", Code: "123456"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}

func TestWebSocketEvents(t *testing.T) {
	env := newAPIEnv(t)
	_, sid := env.signIn(t, "guest@example.com")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", "session_token="+sid)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	user, err := env.users.GetByEmail(context.Background(), "guest@example.com")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.hub.ConnectionCount(user.ID) == 1 }, time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodPost, "/api/uploads/negotiate", sid,
		models.NegotiateRequest{Files: []models.FileDescriptor{jpeg("a.jpg", 10)}})
	require.Equal(t, http.StatusOK, rec.Code)
	req := models.FinalizeRequest{
		AlbumID: decode[models.NegotiateResult](t, rec).AlbumID,
		Tokens:  []models.UploadedToken{{Filename: "a.jpg", UploadSessionToken: "tok-ws"}},
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/uploads/finalize", sid, req).Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg services.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventUploadFinalized, msg.Type)
}
