// internal/catalog/domain.go
package catalog

import (
	"github.com/google/uuid"
)

// Author is created the first time a title names it.
type Author struct {
	ID   uuid.UUID `db:"id"   json:"id"`
	Name string    `db:"name" json:"name"`
}

// Category is created the first time a title names it.
type Category struct {
	ID   uuid.UUID `db:"id"   json:"id"`
	Name string    `db:"name" json:"name"`
}

// Title is a cataloged work with its copy counters.
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type Title struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	Name            string    `db:"name"             json:"name"`
	AuthorID        uuid.UUID `db:"author_id"        json:"author_id"`
	AuthorName      string    `db:"author_name"      json:"author"`
	CategoryID      uuid.UUID `db:"category_id"      json:"category_id"`
	CategoryName    string    `db:"category_name"    json:"category"`
	TotalCopies     int       `db:"total_copies"     json:"total_copies"`
	AvailableCopies int       `db:"available_copies" json:"available_copies"`
}

// Stock is the counter row of a title as read under lock.
type Stock struct {
	ID              uuid.UUID `db:"id"`
	Name            string    `db:"name"`
	TotalCopies     int       `db:"total_copies"`
	AvailableCopies int       `db:"available_copies"`
}

// Consistent reports whether the counters satisfy the title invariant.
func (s Stock) Consistent() bool {
	return s.AvailableCopies >= 0 && s.AvailableCopies <= s.TotalCopies
}
