package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/repository"
)

// fakeLibrary is an in-memory provider
type fakeLibrary struct {
	mu sync.Mutex

	albumSeq         int
	createAlbumCalls int
	createAlbumErr   error
	sessionErr       error

	batchCalls   [][]medialibrary.NewItem
	batchAlbumID string
	batchErr     error
	// batchStatus decides the outcome of the i-th item; nil means success
	batchStatus func(i int, item medialibrary.NewItem) *medialibrary.Status
	// dropResults truncates the response to this many results when > 0
	dropResults int

	items    map[string]*medialibrary.MediaItem
	getCalls int
	getErr   error

	listPage *medialibrary.MediaItems
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{items: make(map[string]*medialibrary.MediaItem)}
}

func (f *fakeLibrary) CreateAlbum(ctx context.Context, title string) (*medialibrary.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAlbumCalls++
	if f.createAlbumErr != nil {
		return nil, f.createAlbumErr
	}
	f.albumSeq++
	id := fmt.Sprintf("prov-album-%d", f.albumSeq)
	return &medialibrary.Album{ID: id, Title: title, ProductURL: "https://photos/" + id, IsWriteable: true}, nil
}

// gatedLibrary holds every CreateAlbum call until all expected callers arrive
type gatedLibrary struct {
	*fakeLibrary
	arrived sync.WaitGroup
}

func (g *gatedLibrary) CreateAlbum(ctx context.Context, title string) (*medialibrary.Album, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.fakeLibrary.CreateAlbum(ctx, title)
}

func (f *fakeLibrary) UploadSession(ctx context.Context) (*medialibrary.UploadSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &medialibrary.UploadSession{
		Endpoint:    "https://upload.example/v1/uploads",
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeLibrary) BatchCreateItems(ctx context.Context, albumID string, items []medialibrary.NewItem) ([]medialibrary.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, items)
	f.batchAlbumID = albumID
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	results := make([]medialibrary.ItemResult, 0, len(items))
	for i, item := range items {
		if f.batchStatus != nil {
			if st := f.batchStatus(i, item); st != nil {
				results = append(results, medialibrary.ItemResult{UploadToken: item.UploadToken, Status: *st})
				continue
			}
		}
		name := strings.TrimPrefix(item.Description, "Uploaded: ")
		mi := &medialibrary.MediaItem{
			ID:          "item-" + item.UploadToken,
			Description: item.Description,
			BaseURL:     "https://lh3/" + item.UploadToken,
			MimeType:    "image/jpeg",
			Filename:    name,
		}
		f.items[mi.ID] = mi
		results = append(results, medialibrary.ItemResult{
			UploadToken: item.UploadToken,
			Status:      medialibrary.Status{Message: "Success"},
			MediaItem:   mi,
		})
	}
	if f.dropResults > 0 && f.dropResults < len(results) {
		results = results[:f.dropResults]
	}
	return results, nil
}

func (f *fakeLibrary) GetItem(ctx context.Context, id string) (*medialibrary.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[id]
	if !ok {
		return nil, &medialibrary.APIError{StatusCode: 404, Details: medialibrary.ErrorDetails{Message: "not found"}}
	}
	copied := *item
	return &copied, nil
}

func (f *fakeLibrary) ListItemsInAlbum(ctx context.Context, albumID string, pageSize int, pageToken string) (*medialibrary.MediaItems, error) {
	if f.listPage == nil {
		return &medialibrary.MediaItems{}, nil
	}
	return f.listPage, nil
}

func (f *fakeLibrary) FetchContent(ctx context.Context, contentURL string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("bytes:" + contentURL)), "image/jpeg", nil
}

func (f *fakeLibrary) addItem(item medialibrary.MediaItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = &item
}

func (f *fakeLibrary) batchCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batchCalls)
}

// recordingPublisher keeps every event it is asked to send
type recordingPublisher struct {
	mu     sync.Mutex
	events []WSMessage
	users  []string
}

func (p *recordingPublisher) SendToUser(userID string, msg WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// testEnv wires the services over an in-memory SQLite store
type testEnv struct {
	db        *sql.DB
	cfg       *config.Config
	library   *fakeLibrary
	events    *recordingPublisher
	users     *repository.UserRepository
	albums    *repository.AlbumRepository
	items     *repository.MediaItemRepository
	links     *repository.MagicLinkRepository
	sessions  *repository.WebSessionRepository
	albumSvc  *AlbumService
	mirror    *MirrorSync
	uploads   *UploadService
	gallery   *GalleryService
	validator *UploadValidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		cfg:      config.Default(),
		library:  newFakeLibrary(),
		events:   &recordingPublisher{},
		users:    repository.NewUserRepository(db),
		albums:   repository.NewAlbumRepository(db),
		items:    repository.NewMediaItemRepository(db),
		links:    repository.NewMagicLinkRepository(db),
		sessions: repository.NewWebSessionRepository(db),
	}

	env.validator = NewUploadValidator(env.cfg.Upload)
	env.albumSvc = NewAlbumService(env.albums, env.library, nil)
	env.mirror = NewMirrorSync(env.items, env.albums, env.events, nil, time.Minute)
	env.uploads = NewUploadService(env.validator, env.albumSvc, env.albums, env.library, env.mirror, env.events, nil)
	env.gallery = NewGalleryService(env.albums, env.items, env.library, env.mirror, nil)
	t.Cleanup(env.mirror.Wait)

	return env
}

func (e *testEnv) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := models.NewUser(email)
	require.NoError(t, err)
	require.NoError(t, e.users.Add(context.Background(), user))
	return user
}

func (e *testEnv) addAlbum(t *testing.T, owner *models.User, providerID string, public bool) *models.Album {
	t.Helper()
	album, err := models.NewAlbum(owner.ID, providerID, models.AlbumTitleFor(owner.Email, time.Now()), "", true)
	require.NoError(t, err)
	album.IsPublic = public
	require.NoError(t, e.albums.Add(context.Background(), album))
	return album
}

// addMirroredItem stores an item both remotely and in the mirror
func (e *testEnv) addMirroredItem(t *testing.T, owner *models.User, album *models.Album, item medialibrary.MediaItem) *models.MediaItem {
	t.Helper()
	e.library.addItem(item)
	var albumID *string
	if album != nil {
		albumID = &album.ID
	}
	row := ToMediaItem(owner.ID, albumID, item)
	require.NoError(t, e.items.Upsert(context.Background(), []*models.MediaItem{row}))
	return row
}

// flakyAlbumRepo overrides parts of an AlbumRepo
type flakyAlbumRepo struct {
	repository.AlbumRepo
	hideOwnerOnce bool
	addErr        error
}

func (r *flakyAlbumRepo) GetByOwner(ctx context.Context, ownerUserID string) (*models.Album, error) {
	if r.hideOwnerOnce {
		r.hideOwnerOnce = false
		return nil, nil
	}
	return r.AlbumRepo.GetByOwner(ctx, ownerUserID)
}

func (r *flakyAlbumRepo) Add(ctx context.Context, album *models.Album) error {
	if r.addErr != nil {
		return r.addErr
	}
	return r.AlbumRepo.Add(ctx, album)
}

// failingItemRepo rejects every mirror write
type failingItemRepo struct {
	repository.MediaItemRepo
}

func (failingItemRepo) Upsert(ctx context.Context, items []*models.MediaItem) error {
	return errors.New("database is locked")
}

// offsetRecorder notes the offsets of paginated scans
type offsetRecorder struct {
	repository.MediaItemRepo
	offsets []int
}

func (r *offsetRecorder) ListGallery(ctx context.Context, userID string, offset, limit int) ([]*models.MediaItem, error) {
	r.offsets = append(r.offsets, offset)
	return r.MediaItemRepo.ListGallery(ctx, userID, offset, limit)
}

func (r *offsetRecorder) ListByAlbum(ctx context.Context, albumID string, offset, limit int) ([]*models.MediaItem, error) {
	r.offsets = append(r.offsets, offset)
	return r.MediaItemRepo.ListByAlbum(ctx, albumID, offset, limit)
}

// fakeMailer captures sign-in emails
type fakeMailer struct {
	mu   sync.Mutex
	sent map[string][]SignInEmailData
	err  error
}

func (m *fakeMailer) SendSignInEmail(ctx context.Context, toEmail string, data SignInEmailData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.sent == nil {
		m.sent = make(map[string][]SignInEmailData)
	}
	m.sent[toEmail] = append(m.sent[toEmail], data)
	return nil
}

func (m *fakeMailer) last(email string) SignInEmailData {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.sent[email]
	return msgs[len(msgs)-1]
}
