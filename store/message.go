package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kgashok/PlumConfusedOpensource/models"
)

// MessageStore persists the local history of messages posted through this
// application. Rows are written only after the platform confirms a post
// with an id, so a timed-out call never appears as delivered.
type MessageStore struct {
	DB *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore { return &MessageStore{DB: db} }

// Insert records one confirmed post.
func (s *MessageStore) Insert(ctx context.Context, m *models.Message) error {
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO messages(id, text, created_at, url, user_id, screen_name, deleted) VALUES(?,?,?,?,?,?,FALSE)`,
		m.ID, m.Text, m.CreatedAt, m.URL, m.UserID, m.ScreenName,
	).Error
}

// MarkDeleted flags a message the user removed upstream. The row is kept
// so the history still shows what was posted.
func (s *MessageStore) MarkDeleted(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Exec(
		`UPDATE messages SET deleted = TRUE WHERE id = ?`, id,
	).Error
}

// List returns the history, newest first.
func (s *MessageStore) List(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	err := s.DB.WithContext(ctx).Raw(
		`SELECT id, text, created_at, url, user_id, screen_name, deleted FROM messages ORDER BY created_at DESC`,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchStore caches rows from the platform's search API so a rate-limited
// live search can fall back to previously seen results.
type SearchStore struct {
	DB *gorm.DB
}

func NewSearchStore(db *gorm.DB) *SearchStore { return &SearchStore{DB: db} }

// Upsert inserts one externally sourced result. Idempotent on primary key:
// re-running a search never duplicates rows.
func (s *SearchStore) Upsert(ctx context.Context, r *models.SearchResult) error {
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO search_results(id, text, created_at, author_id, screen_name, url) VALUES(?,?,?,?,?,?) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Text, r.CreatedAt, r.AuthorID, r.ScreenName, r.URL,
	).Error
}

// UpsertAll stores a batch of results in one transaction.
func (s *SearchStore) UpsertAll(ctx context.Context, rs []models.SearchResult) error {
	if len(rs) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rs {
			if err := tx.Exec(
				`INSERT INTO search_results(id, text, created_at, author_id, screen_name, url) VALUES(?,?,?,?,?,?) ON CONFLICT (id) DO NOTHING`,
				rs[i].ID, rs[i].Text, rs[i].CreatedAt, rs[i].AuthorID, rs[i].ScreenName, rs[i].URL,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListRecent returns up to limit cached results, newest first.
func (s *SearchStore) ListRecent(ctx context.Context, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.SearchResult
	err := s.DB.WithContext(ctx).Raw(
		`SELECT id, text, created_at, author_id, screen_name, url FROM search_results ORDER BY created_at DESC LIMIT ?`, limit,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneOlderThan removes cached search rows older than cutoff. Called from
// an operator task, not from request handling.
func (s *SearchStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM search_results WHERE created_at < ?`, cutoff)
	return res.RowsAffected, res.Error
}
