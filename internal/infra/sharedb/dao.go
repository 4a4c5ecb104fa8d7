package sharedb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/jikime/music-player-app-sub000/internal/domain/share"
)

// DAO provides data access operations for share links. It satisfies
// share.Store.
type DAO struct {
	db *DB
}

// NewDAO creates a new DAO instance.
func NewDAO(db *DB) *DAO {
	return &DAO{db: db}
}

// Insert stores a share link. A colliding id reports share.ErrIDTaken.
// Timestamps are stored as UTC RFC3339 so string comparison in SQL
// orders them correctly.
func (dao *DAO) Insert(link share.Link) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	expiresAt := ""
	if !link.ExpiresAt.IsZero() {
		expiresAt = link.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := db.Exec(`
		INSERT INTO shares (id, song_id, owner_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, link.ID, link.SongID, link.OwnerID, link.CreatedAt.UTC().Format(time.RFC3339), expiresAt)

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		return share.ErrIDTaken
	}

	return err
}

// Get retrieves a share link by id. Returns nil, nil when absent.
func (dao *DAO) Get(id string) (*share.Link, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	link := &share.Link{}
	var ownerID, createdAt, expiresAt sql.NullString

	err := db.QueryRow(`
		SELECT id, song_id, owner_id, created_at, expires_at
		FROM shares WHERE id = ?
	`, id).Scan(&link.ID, &link.SongID, &ownerID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	link.OwnerID = ownerID.String
	if createdAt.Valid && createdAt.String != "" {
		link.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	if expiresAt.Valid && expiresAt.String != "" {
		link.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt.String)
	}

	return link, nil
}

// Delete removes a share link by id.
func (dao *DAO) Delete(id string) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := db.Exec("DELETE FROM shares WHERE id = ?", id)
	return err
}

// DeleteExpired removes every link whose expiry lies before now.
func (dao *DAO) DeleteExpired(now time.Time) (int64, error) {
	db := dao.db.DB()
	if db == nil {
		return 0, fmt.Errorf("database not open")
	}

	res, err := db.Exec(`
		DELETE FROM shares WHERE expires_at != '' AND expires_at < ?
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		log.Debug().Int64("count", n).Msg("Expired share links removed")
	}

	return n, nil
}
