package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"tradeledger/pkg/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

// ApplySchema runs the Up section of every migration in one transaction. The statements
// are idempotent, so it is safe on every start of a development instance. The files keep
// goose markers so the goose CLI can apply them as well.
func ApplySchema(ctx context.Context, txm *TxManager) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, name := range names {
			raw, err := migrations.ReadFile(name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if _, err := txm.GetQuerier(ctx).Exec(ctx, upSection(string(raw))); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			logger.Info(ctx, "migration applied", "file", name)
		}
		return nil
	})
}

// upSection returns the statements between the goose Up and Down markers.
func upSection(sql string) string {
	if i := strings.Index(sql, gooseUp); i >= 0 {
		sql = sql[i+len(gooseUp):]
	}
	if i := strings.Index(sql, gooseDown); i >= 0 {
		sql = sql[:i]
	}
	return strings.TrimSpace(sql)
}
