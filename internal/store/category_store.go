package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudidian/mailsort/internal/category"
)

// CategoryRecord is the persisted form of a catalog entry.
type CategoryRecord struct {
	Name        string    `db:"name" json:"name"`
	Color       string    `db:"color" json:"color"`
	Description string    `db:"description" json:"description"`
	GmailLabel  string    `db:"gmail_label" json:"gmail_label"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SeedCategories inserts catalog entries that are not present yet.
// Existing rows are left untouched; the catalog is authoritative only for
// first creation.
func (s *Store) SeedCategories(ctx context.Context, catalog *category.Catalog) error {
	now := time.Now().UTC()
	for _, cat := range catalog.All() {
		_, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO categories (name, color, description, gmail_label, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (name) DO NOTHING`),
			cat.Name, cat.Color, cat.Description, cat.LabelName, now)
		if err != nil {
			return fmt.Errorf("seeding category %s: %w", cat.Name, err)
		}
	}
	return nil
}

// ListCategories returns all persisted categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]CategoryRecord, error) {
	var records []CategoryRecord
	err := s.db.SelectContext(ctx, &records, `SELECT * FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return records, nil
}
