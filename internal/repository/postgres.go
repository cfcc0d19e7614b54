package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"study-partner-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the profile and location tables if they do not exist
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// filterClause builds the WHERE clause pushing level and study time
// filters down to the query. Study times use array overlap, so a row
// matches when it shares any value with the filter.
func filterClause(f models.SearchFilters, args []any) (string, []any) {
	var conds []string
	if f.Level != "" {
		args = append(args, f.Level)
		conds = append(conds, fmt.Sprintf("level = $%d", len(args)))
	}
	if len(f.StudyTimes) > 0 {
		args = append(args, f.StudyTimes)
		conds = append(conds, fmt.Sprintf("study_times && $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// textArray keeps nil slices from being written as NULL
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
