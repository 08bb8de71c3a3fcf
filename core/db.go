package core

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	DB interface {
		DBExecutor

		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	}
)

var orderingFieldRegex = regexp.MustCompile(`^[a-z_]+$`)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy renders orderings into an ORDER BY clause, keeping only the allowed fields.
// It falls back to def when nothing usable is left.
func OrderBy(orderings []DBOrdering, allowed map[string]bool, def string) string {
	clause := ""
	for _, ord := range orderings {
		if !orderingFieldRegex.MatchString(ord.Field) || !allowed[ord.Field] {
			continue
		}
		if clause != "" {
			clause += ", "
		}
		clause += ord.String()
	}
	if clause == "" {
		clause = def
	}
	return " ORDER BY " + clause
}

// InTx runs fn inside a transaction, rolling back when it fails.
func InTx(ctx context.Context, db DB, fn func(tx DBExecutor) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
