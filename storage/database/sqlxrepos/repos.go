// Package sqlxrepos implements the domain repositories with sqlx.
// Queries are written with "?" placeholders and rebound for the driver in use (postgres or sqlite).
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
)

// stamp normalises times before they are written: UTC, microsecond precision (postgres TIMESTAMP).
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// trapNoRowsErr maps sql.ErrNoRows to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// in expands the slice arguments of query and rebinds it for exec.
func in(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return exec.Rebind(q), a, nil
}

type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	s := " WHERE "
	for i, c := range w.clauses {
		if i > 0 {
			s += " AND "
		}
		s += "(" + c + ")"
	}
	return s
}

// selectIn runs a select whose args may contain slices.
func selectIn(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	q, a, err := in(exec, query, args...)
	if err != nil {
		return err
	}
	return exec.SelectContext(ctx, dest, q, a...)
}

// execIn runs a statement whose args may contain slices.
func execIn(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	q, a, err := in(exec, query, args...)
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, q, a...)
}

func exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	q, a, err := in(exec, "SELECT COUNT(*) FROM ("+query+") sub", args...)
	if err != nil {
		return false, err
	}
	var n int
	if err = exec.GetContext(ctx, &n, q, a...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// affectOne fails with notFound when res touched no row.
func affectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
