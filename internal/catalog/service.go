// internal/catalog/service.go
package catalog

import (
	"context"
	"iter"

	"github.com/google/uuid"
)

// Service defines the catalog operations.
type Service interface {
	EnsureAuthor(ctx context.Context, name string) (*Author, error)
	EnsureCategory(ctx context.Context, name string) (*Category, error)
	AddTitle(ctx context.Context, name, authorName, categoryName string, totalCopies int) (*Title, error)
	GetTitle(ctx context.Context, id uuid.UUID) (*Title, error)
	// ListTitles yields titles ordered by name. Each range re-runs the query.
	ListTitles(ctx context.Context) iter.Seq2[Title, error]
}
