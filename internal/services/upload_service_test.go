package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/medialibrary"
	"github.com/weddingphotos/server/internal/models"
	"github.com/weddingphotos/server/internal/observability"
)

const mb = 1024 * 1024

func TestUploadValidator(t *testing.T) {
	v := NewUploadValidator(config.Default().Upload)

	t.Run("accepts images and videos within limits", func(t *testing.T) {
		err := v.ValidateBatch([]models.FileDescriptor{
			{Name: "first-dance.JPG", Size: 3 * mb, MimeType: "image/jpeg"},
			{Name: "toast.mov", Size: 80 * mb, MimeType: "video/quicktime"},
			{Name: "cake.webp", Size: 10 * mb, MimeType: "image/webp"},
		})
		assert.NoError(t, err)
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.ErrorIs(t, v.ValidateBatch(nil), models.ErrEmptyBatch)
	})

	t.Run("reports every offending file", func(t *testing.T) {
		err := v.ValidateBatch([]models.FileDescriptor{
			{Name: "ok.png", Size: mb, MimeType: "image/png"},
			{Name: "huge.jpg", Size: 11 * mb, MimeType: "image/jpeg"},
			{Name: "long.mp4", Size: 101 * mb, MimeType: "video/mp4"},
			{Name: "scan.bmp", Size: mb, MimeType: "image/bmp"},
			{Name: "clip.jpg", Size: mb, MimeType: "video/mp4"},
			{Name: "zero.gif", Size: 0, MimeType: "image/gif"},
		})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Problems, 5)
		joined := strings.Join(verr.Problems, "\n")
		assert.Contains(t, joined, "huge.jpg: file size exceeds maximum allowed size of 10MB")
		assert.Contains(t, joined, "long.mp4: file size exceeds maximum allowed size of 100MB")
		assert.Contains(t, joined, "scan.bmp: file type")
		assert.Contains(t, joined, "clip.jpg: file extension .jpg is not allowed")
		assert.Contains(t, joined, "zero.gif: file is empty")
		assert.NotContains(t, joined, "ok.png")
	})

	t.Run("batch size ceiling", func(t *testing.T) {
		files := make([]models.FileDescriptor, 51)
		for i := range files {
			files[i] = models.FileDescriptor{Name: "p.jpg", Size: mb, MimeType: "image/jpeg"}
		}
		var verr *models.ValidationError
		require.ErrorAs(t, v.ValidateBatch(files), &verr)
		assert.Contains(t, verr.Problems[0], "maximum 50")
	})
}

func validFiles() []models.FileDescriptor {
	return []models.FileDescriptor{
		{Name: "a.jpg", Size: mb, MimeType: "image/jpeg"},
		{Name: "b.mp4", Size: 20 * mb, MimeType: "video/mp4"},
	}
}

func TestNegotiate(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a user", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.uploads.Negotiate(ctx, nil, validFiles())
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})

	t.Run("validation runs before any provider call", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")

		_, err := env.uploads.Negotiate(ctx, user, []models.FileDescriptor{{Name: "x.exe", Size: 1, MimeType: "application/x-msdownload"}})
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Zero(t, env.library.createAlbumCalls)
	})

	t.Run("creates the album once and reuses it", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")

		first, err := env.uploads.Negotiate(ctx, user, validFiles())
		require.NoError(t, err)
		assert.Equal(t, "prov-album-1", first.AlbumID)
		assert.Equal(t, "https://upload.example/v1/uploads", first.UploadEndpoint)
		assert.Equal(t, "Bearer access-1", first.Authorization)
		assert.False(t, first.Expiry.IsZero())

		second, err := env.uploads.Negotiate(ctx, user, validFiles())
		require.NoError(t, err)
		assert.Equal(t, first.AlbumID, second.AlbumID)
		assert.Equal(t, 1, env.library.createAlbumCalls)

		album, err := env.albums.GetByOwner(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, album)
		assert.True(t, strings.HasPrefix(album.Title, "Wedding Photos - guest@example.com - "))
		assert.True(t, album.CreatedByApp)
	})

	t.Run("provider session failure is upstream", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		env.library.sessionErr = errors.New("token endpoint down")

		_, err := env.uploads.Negotiate(ctx, user, validFiles())
		var upErr *models.UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, "upload session", upErr.Op)
	})

	t.Run("album creation failure is upstream", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		env.library.createAlbumErr = &medialibrary.APIError{StatusCode: 500}

		_, err := env.uploads.Negotiate(ctx, user, validFiles())
		var upErr *models.UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, "create album", upErr.Op)
	})
}

func TestAlbumGetOrCreateRace(t *testing.T) {
	ctx := context.Background()

	t.Run("adopts the row that won the owner constraint", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		winner := env.addAlbum(t, user, "prov-winner", false)

		repo := &flakyAlbumRepo{AlbumRepo: env.albums, hideOwnerOnce: true}
		svc := NewAlbumService(repo, env.library, nil)

		album, err := svc.GetOrCreate(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, album.ID)
		assert.Equal(t, 1, env.library.createAlbumCalls, "the loser still created a remote album")
	})

	t.Run("concurrent first calls converge on one album", func(t *testing.T) {
		const callers = 8
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")

		// every caller misses the owner lookup before any of them inserts
		lib := &gatedLibrary{fakeLibrary: env.library}
		lib.arrived.Add(callers)

		var buf bytes.Buffer
		svc := NewAlbumService(env.albums, lib, nil)
		svc.logger = observability.NewLogger(&buf, "test", observability.LevelDebug)

		ids := make([]string, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				album, err := svc.GetOrCreate(ctx, user)
				errs[i] = err
				if album != nil {
					ids[i] = album.ID
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, ids[0], ids[i])
		}
		assert.Equal(t, callers, env.library.createAlbumCalls)

		stored, err := env.albums.GetByOwner(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, ids[0], stored.ID)
		assert.Equal(t, callers-1, strings.Count(buf.String(), "lost album creation race"))
	})

	t.Run("other insert failures surface as creation failure", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")

		repo := &flakyAlbumRepo{AlbumRepo: env.albums, addErr: errors.New("disk I/O error")}
		svc := NewAlbumService(repo, env.library, nil)

		_, err := svc.GetOrCreate(ctx, user)
		assert.ErrorIs(t, err, models.ErrAlbumCreationFailed)
	})
}

func finalizeRequest(albumID string, names ...string) models.FinalizeRequest {
	req := models.FinalizeRequest{AlbumID: albumID}
	for _, n := range names {
		req.Tokens = append(req.Tokens, models.UploadedToken{Filename: n, UploadSessionToken: "tok-" + n})
	}
	return req
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()

	t.Run("partial failure is reported per item", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		album := env.addAlbum(t, user, "prov-1", false)
		env.library.batchStatus = func(i int, item medialibrary.NewItem) *medialibrary.Status {
			if i == 1 {
				return &medialibrary.Status{Code: 3, Message: "Failed: There was an error while trying to create this media item."}
			}
			return nil
		}

		result, err := env.uploads.Finalize(ctx, user, finalizeRequest("prov-1", "a.jpg", "b.jpg", "c.jpg"))
		require.NoError(t, err)

		assert.Equal(t, 2, result.CreatedCount)
		assert.Equal(t, 3, result.TotalCount)
		assert.Equal(t, "2 of 3 files uploaded", result.Message)
		require.Len(t, result.Items, 3)
		assert.Equal(t, "a.jpg", result.Items[0].Filename)
		assert.Equal(t, models.FinalizeItemCreated, result.Items[0].Status)
		require.NotNil(t, result.Items[0].ProviderItemID)
		assert.Equal(t, "item-tok-a.jpg", *result.Items[0].ProviderItemID)
		assert.Equal(t, models.FinalizeItemFailed, result.Items[1].Status)
		assert.Nil(t, result.Items[1].ProviderItemID)
		assert.Contains(t, result.Items[1].Message, "error while trying")
		assert.Equal(t, models.FinalizeItemCreated, result.Items[2].Status)

		assert.Equal(t, 1, env.library.batchCallCount())
		assert.Equal(t, "prov-1", env.library.batchAlbumID)
		assert.Equal(t, "Uploaded: b.jpg", env.library.batchCalls[0][1].Description)

		env.mirror.Wait()
		count, err := env.items.CountByAlbum(ctx, album.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		stored, err := env.albums.GetByID(ctx, album.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.MediaItemsCount)
		assert.Equal(t, []string{EventUploadFinalized, EventMirrorSynced}, env.events.types())
	})

	t.Run("custom description applies to every item", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		env.addAlbum(t, user, "prov-1", false)

		req := finalizeRequest("prov-1", "a.jpg", "b.jpg")
		req.Description = "From the reception"
		_, err := env.uploads.Finalize(ctx, user, req)
		require.NoError(t, err)

		for _, item := range env.library.batchCalls[0] {
			assert.Equal(t, "From the reception", item.Description)
		}
	})

	t.Run("per item description wins", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		env.addAlbum(t, user, "prov-1", false)

		req := finalizeRequest("prov-1", "a.jpg", "b.jpg")
		req.Description = "From the reception"
		req.Tokens[0].Description = "Canon EOS R6, 1 Jun 2026 14:30"
		_, err := env.uploads.Finalize(ctx, user, req)
		require.NoError(t, err)

		assert.Equal(t, "Canon EOS R6, 1 Jun 2026 14:30", env.library.batchCalls[0][0].Description)
		assert.Equal(t, "From the reception", env.library.batchCalls[0][1].Description)
	})

	t.Run("missing results count as failures", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		env.addAlbum(t, user, "prov-1", false)
		env.library.dropResults = 1

		result, err := env.uploads.Finalize(ctx, user, finalizeRequest("prov-1", "a.jpg", "b.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 1, result.CreatedCount)
		assert.Equal(t, models.FinalizeItemFailed, result.Items[1].Status)
	})

	t.Run("album must exist and belong to the caller", func(t *testing.T) {
		env := newTestEnv(t)
		owner := env.addUser(t, "bride@example.com")
		other := env.addUser(t, "guest@example.com")
		env.addAlbum(t, owner, "prov-1", true)

		_, err := env.uploads.Finalize(ctx, other, finalizeRequest("prov-1", "a.jpg"))
		assert.ErrorIs(t, err, models.ErrAlbumAccessDenied)

		_, err = env.uploads.Finalize(ctx, owner, finalizeRequest("prov-unknown", "a.jpg"))
		assert.ErrorIs(t, err, models.ErrAlbumNotFound)

		assert.Zero(t, env.library.batchCallCount())
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")

		_, err := env.uploads.Finalize(ctx, user, models.FinalizeRequest{AlbumID: "prov-1"})
		assert.ErrorIs(t, err, models.ErrNoTokens)

		req := models.FinalizeRequest{Tokens: []models.UploadedToken{{Filename: "a.jpg"}, {UploadSessionToken: "t"}}}
		_, err = env.uploads.Finalize(ctx, user, req)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Problems, 3)

		_, err = env.uploads.Finalize(ctx, nil, finalizeRequest("prov-1", "a.jpg"))
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})

	t.Run("failed batch call is upstream and mirrors nothing", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.addUser(t, "guest@example.com")
		album := env.addAlbum(t, user, "prov-1", false)
		env.library.batchErr = &medialibrary.APIError{StatusCode: 503}

		_, err := env.uploads.Finalize(ctx, user, finalizeRequest("prov-1", "a.jpg"))
		var upErr *models.UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, "batch create", upErr.Op)

		env.mirror.Wait()
		count, err := env.items.CountByAlbum(ctx, album.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, env.events.types())
	})
}
