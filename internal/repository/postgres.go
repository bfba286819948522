package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS magic_links (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		token_hash TEXT UNIQUE NOT NULL,
		code_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		used_at TIMESTAMPTZ,
		attempts INTEGER NOT NULL DEFAULT 0,
		ip_address TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_magic_links_email ON magic_links(email, created_at);

	CREATE TABLE IF NOT EXISTS web_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		magic_link_id TEXT REFERENCES magic_links(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ip_address TEXT,
		user_agent TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_web_sessions_user_id ON web_sessions(user_id);

	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		provider_album_id TEXT UNIQUE NOT NULL,
		owner_user_id TEXT UNIQUE NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		product_url TEXT,
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		is_writeable BOOLEAN NOT NULL DEFAULT TRUE,
		created_by_app BOOLEAN NOT NULL DEFAULT TRUE,
		media_items_count INTEGER NOT NULL DEFAULT 0,
		cover_photo_base_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_albums_public ON albums(is_public);

	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		provider_item_id TEXT UNIQUE NOT NULL,
		owner_user_id TEXT NOT NULL REFERENCES users(id),
		album_id TEXT REFERENCES albums(id),
		description TEXT,
		product_url TEXT,
		base_url TEXT,
		mime_type TEXT NOT NULL,
		filename TEXT NOT NULL,
		width INTEGER,
		height INTEGER,
		creation_time TIMESTAMPTZ,
		media_type TEXT NOT NULL,
		camera_make TEXT,
		camera_model TEXT,
		focal_length DOUBLE PRECISION,
		aperture_f_number DOUBLE PRECISION,
		iso_equivalent INTEGER,
		exposure_time TEXT,
		fps DOUBLE PRECISION,
		processing_status TEXT,
		contributor_info TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_media_items_album ON media_items(album_id, creation_time);
	CREATE INDEX IF NOT EXISTS idx_media_items_owner ON media_items(owner_user_id, creation_time);
	`

	_, err := db.Exec(schema)
	return err
}
