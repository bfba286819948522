package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlbum(t *testing.T) {
	t.Run("creates app-managed album", func(t *testing.T) {
		album, err := NewAlbum("user-1", "prov-album-1", "Wedding Photos", "https://photos/album", true)

		require.NoError(t, err)
		assert.NotEmpty(t, album.ID)
		assert.NotEqual(t, album.ProviderAlbumID, album.ID)
		assert.Equal(t, "user-1", album.OwnerUserID)
		assert.True(t, album.CreatedByApp)
		assert.True(t, album.IsWriteable)
		assert.False(t, album.IsPublic)
		assert.Zero(t, album.MediaItemsCount)
		assert.WithinDuration(t, time.Now().UTC(), album.CreatedAt, 5*time.Second)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		_, err := NewAlbum(" ", "prov", "title", "", true)
		assert.ErrorIs(t, err, ErrAlbumOwnerRequired)
	})

	t.Run("rejects empty provider id", func(t *testing.T) {
		_, err := NewAlbum("user-1", "", "title", "", true)
		assert.ErrorIs(t, err, ErrProviderAlbumIDRequired)
	})
}

func TestAlbumTitleFor(t *testing.T) {
	now := time.Date(2025, 6, 14, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "Wedding Photos - guest@example.com - 2025-06-14", AlbumTitleFor("guest@example.com", now))
}

func TestAlbumAccess(t *testing.T) {
	album := &Album{OwnerUserID: "owner"}

	assert.True(t, album.CanBeViewedBy("owner"))
	assert.False(t, album.CanBeViewedBy("stranger"))

	album.IsPublic = true
	assert.True(t, album.CanBeViewedBy("stranger"))
	assert.False(t, album.IsOwnedBy("stranger"))

	resp := album.ToResponse("stranger")
	assert.False(t, resp.IsOwner)
	assert.True(t, resp.IsPublic)
}
