package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Author is the denormalized author snapshot embedded in a pin.
// It is captured at creation time, not a live reference.
type Author struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	ID       string `json:"id,omitempty"`
	Verified bool   `json:"is_verified,omitempty"`
}

// Stats holds a pin's engagement counters.
type Stats struct {
	Likes int `json:"likes"`
	Views int `json:"views"`
	Saves int `json:"saves"`
}

// Comment is a single comment on a pin.
type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Avatar string `json:"avatar,omitempty"`
	Text   string `json:"text"`
}

// Pin sources.
const (
	SourceUser      = "user"      // created through the create flow
	SourceGenerated = "generated" // fetched from the content provider
)

// Pin is a single content item. DeletedAt is nil for active pins; a
// restored pin is indistinguishable from one that was never deleted.
type Pin struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	AspectRatio string    `json:"aspect_ratio,omitempty"`
	Author      Author    `json:"author"`
	Stats       Stats     `json:"stats"`
	Tags        []string  `json:"tags"`
	Comments    []Comment `json:"comments"`
	IsSaved     bool      `json:"is_saved"`
	Source      string    `json:"source"`
	DeletedAt   *int64    `json:"deleted_at,omitempty"`
	CreatedAt   int64     `json:"created_at"`

	position float64
}

// Trashed reports whether the pin is soft-deleted.
func (p *Pin) Trashed() bool {
	return p.DeletedAt != nil
}

const pinColumns = `id, title, description, image_url, aspect_ratio,
	author_name, author_avatar, author_id, author_verified,
	likes, views, saves, tags, comments, is_saved, source,
	position, deleted_at, created_at`

// CreatePin inserts a new pin at the front of the store. A missing ID is
// assigned, statistics are zeroed, and the pin starts active.
func (db *DB) CreatePin(p *Pin) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Source == "" {
		p.Source = SourceUser
	}
	p.Stats = Stats{}
	p.DeletedAt = nil
	p.CreatedAt = time.Now().UnixMilli()

	var minPos sql.NullFloat64
	if err := db.QueryRow("SELECT MIN(position) FROM pins").Scan(&minPos); err != nil {
		return fmt.Errorf("min position: %w", err)
	}
	p.position = 0
	if minPos.Valid {
		p.position = minPos.Float64 - 1
	}

	return db.insertPin(db.DB, p)
}

// AppendPins inserts a fetched batch after the current maximum position,
// preserving the batch's own order.
func (db *DB) AppendPins(pins []Pin) error {
	if len(pins) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	var maxPos sql.NullFloat64
	if err := tx.QueryRow("SELECT MAX(position) FROM pins").Scan(&maxPos); err != nil {
		tx.Rollback()
		return fmt.Errorf("max position: %w", err)
	}
	pos := 0.0
	if maxPos.Valid {
		pos = maxPos.Float64 + 1
	}

	now := time.Now().UnixMilli()
	for i := range pins {
		p := &pins[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Source == "" {
			p.Source = SourceGenerated
		}
		p.DeletedAt = nil
		p.CreatedAt = now
		p.position = pos
		pos++
		if err := db.insertPin(tx, p); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ReplaceGenerated swaps the active provider-generated pins for the given
// batch in one transaction. User-created pins and everything already in the
// trash are untouched.
func (db *DB) ReplaceGenerated(pins []Pin) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}

	if _, err := tx.Exec(
		"DELETE FROM pins WHERE source = ? AND deleted_at IS NULL", SourceGenerated,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear generated: %w", err)
	}

	var maxPos sql.NullFloat64
	if err := tx.QueryRow("SELECT MAX(position) FROM pins").Scan(&maxPos); err != nil {
		tx.Rollback()
		return fmt.Errorf("max position: %w", err)
	}
	pos := 0.0
	if maxPos.Valid {
		pos = maxPos.Float64 + 1
	}

	now := time.Now().UnixMilli()
	for i := range pins {
		p := &pins[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Source = SourceGenerated
		p.DeletedAt = nil
		p.CreatedAt = now
		p.position = pos
		pos++
		if err := db.insertPin(tx, p); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (db *DB) insertPin(e execer, p *Pin) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	comments, err := json.Marshal(p.Comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	_, err = e.Exec(`
		INSERT INTO pins (id, title, description, image_url, aspect_ratio,
			author_name, author_avatar, author_id, author_verified,
			likes, views, saves, tags, comments, is_saved, source,
			position, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, p.ImageURL, p.AspectRatio,
		p.Author.Name, p.Author.Avatar, p.Author.ID, boolInt(p.Author.Verified),
		p.Stats.Likes, p.Stats.Views, p.Stats.Saves,
		string(tags), string(comments), boolInt(p.IsSaved), p.Source,
		p.position, p.DeletedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pin %s: %w", p.ID, err)
	}
	return nil
}

// GetPin returns a pin by id, or nil if not found.
func (db *DB) GetPin(id string) (*Pin, error) {
	row := db.QueryRow("SELECT "+pinColumns+" FROM pins WHERE id = ?", id)
	p, err := scanPin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pin: %w", err)
	}
	return p, nil
}

// PinPatch is a partial update; nil fields are left unchanged.
type PinPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ImageURL    *string    `json:"image_url"`
	Tags        *[]string  `json:"tags"`
	Comments    *[]Comment `json:"comments"`
	Stats       *Stats     `json:"stats"`
	IsSaved     *bool      `json:"is_saved"`
}

// UpdatePin merges the patch into the matching pin. A missing id is a
// no-op, not an error: callers race against list mutation by design.
func (db *DB) UpdatePin(id string, patch PinPatch) error {
	p, err := db.GetPin(id)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	if patch.Comments != nil {
		p.Comments = *patch.Comments
	}
	if patch.Stats != nil {
		p.Stats = *patch.Stats
	}
	if patch.IsSaved != nil {
		p.IsSaved = *patch.IsSaved
	}

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	comments, err := json.Marshal(p.Comments)
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	_, err = db.Exec(`
		UPDATE pins SET title = ?, description = ?, image_url = ?,
			tags = ?, comments = ?, likes = ?, views = ?, saves = ?, is_saved = ?
		WHERE id = ?
	`, p.Title, p.Description, p.ImageURL,
		string(tags), string(comments),
		p.Stats.Likes, p.Stats.Views, p.Stats.Saves, boolInt(p.IsSaved), id)
	if err != nil {
		return fmt.Errorf("update pin %s: %w", id, err)
	}
	return nil
}

// SoftDeletePin marks a pin deleted at the given instant (unix ms).
// No-op if the id is absent.
func (db *DB) SoftDeletePin(id string, now int64) error {
	_, err := db.Exec("UPDATE pins SET deleted_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("soft delete pin %s: %w", id, err)
	}
	return nil
}

// RestorePin clears the deletion marker entirely. No-op if the id is
// absent or the pin is already active.
func (db *DB) RestorePin(id string) error {
	_, err := db.Exec("UPDATE pins SET deleted_at = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("restore pin %s: %w", id, err)
	}
	return nil
}

// PurgePin removes a pin irrecoverably. No-op if the id is absent.
func (db *DB) PurgePin(id string) error {
	_, err := db.Exec("DELETE FROM pins WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("purge pin %s: %w", id, err)
	}
	return nil
}

// ListPins returns every pin (active and trashed) in display order.
func (db *DB) ListPins() ([]Pin, error) {
	rows, err := db.Query("SELECT " + pinColumns + " FROM pins ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()
	return scanPins(rows)
}

// SweepExpired purges every trashed pin whose deleted_at is older than
// cutoff (unix ms). Safe to call repeatedly; pins inside the retention
// window are never touched.
func (db *DB) SweepExpired(cutoff int64) (int, error) {
	result, err := db.Exec(
		"DELETE FROM pins WHERE deleted_at IS NOT NULL AND deleted_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// CountTrashed returns the number of soft-deleted pins.
func (db *DB) CountTrashed() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM pins WHERE deleted_at IS NOT NULL").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPin(row rowScanner) (*Pin, error) {
	var p Pin
	var aspectRatio, authorAvatar, authorID, tags, comments sql.NullString
	var authorVerified, isSaved int
	var deletedAt sql.NullInt64

	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.ImageURL, &aspectRatio,
		&p.Author.Name, &authorAvatar, &authorID, &authorVerified,
		&p.Stats.Likes, &p.Stats.Views, &p.Stats.Saves,
		&tags, &comments, &isSaved, &p.Source,
		&p.position, &deletedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.AspectRatio = aspectRatio.String
	p.Author.Avatar = authorAvatar.String
	p.Author.ID = authorID.String
	p.Author.Verified = authorVerified != 0
	p.IsSaved = isSaved != 0
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Int64
	}

	p.Tags = []string{}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", p.ID, err)
		}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Comments = []Comment{}
	if comments.Valid && comments.String != "" {
		if err := json.Unmarshal([]byte(comments.String), &p.Comments); err != nil {
			return nil, fmt.Errorf("decode comments for %s: %w", p.ID, err)
		}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}

	return &p, nil
}

func scanPins(rows *sql.Rows) ([]Pin, error) {
	var pins []Pin
	for rows.Next() {
		p, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pin: %w", err)
		}
		pins = append(pins, *p)
	}
	return pins, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
