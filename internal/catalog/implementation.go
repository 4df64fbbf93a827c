// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/store"
)

// service implements the Service interface.
type service struct {
	store  *store.Store
	audit  *audit.Log
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(s *store.Store, log *audit.Log, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:  s,
		audit:  log,
		logger: logger,
		tracer: otel.Tracer("librarydesk/catalog"),
	}
}

// EnsureAuthor returns the author called name, creating it if needed.
func (s *service) EnsureAuthor(ctx context.Context, name string) (*Author, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ensure_author")
	defer span.End()

	name, err := requireName("author name", name)
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	err = s.store.WithTx(ctx, "catalog.ensure_author", func(tx *store.Tx) (err error) {
		id, err = ensureNamed(ctx, tx, authorsTable, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Author{ID: id, Name: name}, nil
}

// EnsureCategory returns the category called name, creating it if needed.
func (s *service) EnsureCategory(ctx context.Context, name string) (*Category, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ensure_category")
	defer span.End()

	name, err := requireName("category name", name)
	if err != nil {
		return nil, err
	}
	var id uuid.UUID
	err = s.store.WithTx(ctx, "catalog.ensure_category", func(tx *store.Tx) (err error) {
		id, err = ensureNamed(ctx, tx, categoriesTable, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Category{ID: id, Name: name}, nil
}

// AddTitle catalogs a title with every copy available. Author and category
// are resolved or created in the same transaction.
func (s *service) AddTitle(ctx context.Context, name, authorName, categoryName string, totalCopies int) (*Title, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_title")
	defer span.End()

	name, err := requireName("title name", name)
	if err != nil {
		return nil, err
	}
	if authorName, err = requireName("author name", authorName); err != nil {
		return nil, err
	}
	if categoryName, err = requireName("category name", categoryName); err != nil {
		return nil, err
	}
	if totalCopies < 1 {
		return nil, apperr.InvalidArgument(fmt.Sprintf("total copies must be at least 1, got %d", totalCopies))
	}

	title := &Title{
		ID:              uuid.New(),
		Name:            name,
		AuthorName:      authorName,
		CategoryName:    categoryName,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	span.SetAttributes(attribute.String("title.id", title.ID.String()))

	err = s.store.WithTx(ctx, "catalog.add_title", func(tx *store.Tx) error {
		var err error
		if title.AuthorID, err = ensureNamed(ctx, tx, authorsTable, authorName); err != nil {
			return err
		}
		if title.CategoryID, err = ensureNamed(ctx, tx, categoriesTable, categoryName); err != nil {
			return err
		}

		_, err = store.Exec(ctx, tx, tx.Builder().Insert(titlesTable).Rows(goqu.Record{
			"id":               title.ID,
			"name":             title.Name,
			"author_id":        title.AuthorID,
			"category_id":      title.CategoryID,
			"total_copies":     title.TotalCopies,
			"available_copies": title.AvailableCopies,
		}).Prepared(true))
		if err != nil {
			return fmt.Errorf("insert title: %w", err)
		}

		return s.audit.Append(ctx, tx, audit.Entry{
			AccountID:   audit.Actor(ctx),
			Action:      audit.ActionTitleAdded,
			Description: fmt.Sprintf("added title %s (%d copies)", title.ID, title.TotalCopies),
			Metadata: map[string]any{
				"title_id": title.ID.String(),
				"name":     title.Name,
				"copies":   title.TotalCopies,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "title added",
		"title_id", title.ID, "name", title.Name, "copies", title.TotalCopies)
	return title, nil
}

// GetTitle returns a title with its author and category names.
func (s *service) GetTitle(ctx context.Context, id uuid.UUID) (*Title, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get_title",
		trace.WithAttributes(attribute.String("title.id", id.String())))
	defer span.End()

	return getTitle(ctx, s.store.DB(), s.store.Builder(), id)
}

// ListTitles yields every title ordered by name.
func (s *service) ListTitles(ctx context.Context) iter.Seq2[Title, error] {
	return store.Seq[Title](ctx, s.store.DB(), titlesQuery(s.store.Builder()).
		Order(goqu.I("t.name").Asc(), goqu.I("t.id").Asc()).
		Prepared(true))
}

func requireName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.InvalidArgument(field + " is required")
	}
	return value, nil
}
