package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// In-memory databases are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_login_at DATETIME,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Magic links (passwordless sign in)
	CREATE TABLE IF NOT EXISTS magic_links (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		token_hash TEXT UNIQUE NOT NULL,
		code_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		used_at DATETIME,
		attempts INTEGER NOT NULL DEFAULT 0,
		ip_address TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_magic_links_email ON magic_links(email, created_at);

	CREATE TABLE IF NOT EXISTS web_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		magic_link_id TEXT REFERENCES magic_links(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		last_activity_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ip_address TEXT,
		user_agent TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_web_sessions_user_id ON web_sessions(user_id);

	-- One app-managed album per user
	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		provider_album_id TEXT UNIQUE NOT NULL,
		owner_user_id TEXT UNIQUE NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		product_url TEXT,
		is_public INTEGER NOT NULL DEFAULT 0,
		is_writeable INTEGER NOT NULL DEFAULT 1,
		created_by_app INTEGER NOT NULL DEFAULT 1,
		media_items_count INTEGER NOT NULL DEFAULT 0,
		cover_photo_base_url TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
		creation_time DATETIME,
		media_type TEXT NOT NULL,
		camera_make TEXT,
		camera_model TEXT,
		focal_length REAL,
		aperture_f_number REAL,
		iso_equivalent INTEGER,
		exposure_time TEXT,
		fps REAL,
		processing_status TEXT,
		contributor_info TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_media_items_album ON media_items(album_id, creation_time);
	CREATE INDEX IF NOT EXISTS idx_media_items_owner ON media_items(owner_user_id, creation_time);
	`

	_, err := db.Exec(schema)
	return err
}
