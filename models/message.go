package models

import "time"

// Message is a locally persisted record of a message the user posted
// through this application. Rows are only written after the platform has
// confirmed the post with an id.
type Message struct {
	ID         string    `json:"id" db:"id" gorm:"primaryKey"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at" gorm:"index:idx_messages_created_at"`
	URL        string    `json:"url,omitempty" db:"url"`
	UserID     string    `json:"user_id" db:"user_id"`
	ScreenName string    `json:"screen_name" db:"screen_name"`
	Deleted    bool      `json:"deleted" db:"deleted"`
}

// TableName returns the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// SearchResult is a cached row from the platform's search API. Inserts are
// idempotent on ID so re-running the same search never duplicates rows.
type SearchResult struct {
	ID         string    `json:"id" db:"id" gorm:"primaryKey"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at" gorm:"index:idx_search_results_created_at"`
	AuthorID   string    `json:"author_id" db:"author_id"`
	ScreenName string    `json:"screen_name,omitempty" db:"screen_name"`
	URL        string    `json:"url,omitempty" db:"url"`
}

// TableName returns the table name for GORM
func (SearchResult) TableName() string {
	return "search_results"
}
