package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/user"
)

const userColumns = "id, name, username, email, role, is_active, password_hash, created_at, updated_at, last_login"

var userOrderings = map[string]bool{
	"name": true, "username": true, "email": true, "role": true, "created_at": true, "last_login": true,
}

// userRow mirrors the users table: empty usernames and emails are stored as NULL to keep them unique.
type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    stamp(usr.CreatedAt),
		UpdatedAt:    stamp(usr.UpdatedAt),
	}
	if usr.LastLogin.Valid {
		row.LastLogin = null.TimeFrom(stamp(usr.LastLogin.Time))
	}
	return row
}

func (row userRow) user() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = null.TimeFrom(row.LastLogin.Time.UTC())
	}
	return usr
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	check := func(col, val string, errExists error) error {
		if val == "" {
			return nil
		}
		q := "SELECT id FROM users WHERE " + col + " = ?"
		args := []interface{}{val}
		if len(excludedIDs) > 0 {
			q += " AND id NOT IN (?)"
			args = append(args, excludedIDs)
		}
		found, err := exists(ctx, repo.exec, q, args...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if found {
			return errExists
		}
		return nil
	}
	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		row.ID, row.Name, row.Username, row.Email, row.Role, row.IsActive, row.PasswordHash,
		row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE "
	var args []interface{}
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q += "id = ?"
		args = append(args, filter.ID)
	case filter.Username != "":
		q += "username = ?"
		args = append(args, filter.Username)
	case filter.Email != "":
		q += "email = ?"
		args = append(args, filter.Email)
	case filter.UsernameOrEmail != "":
		q += "username = ? OR email = ?"
		args = append(args, filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.exec.GetContext(ctx, &row, repo.exec.Rebind(q), args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter.Search != "" {
		val := "%" + core.CleanString(filter.Search, true /* lower */) + "%"
		w.add("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?", val, val, val)
	}
	if len(filter.Roles) > 0 {
		w.add("role IN (?)", filter.Roles)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", stamp(filter.CreatedFrom))
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", stamp(filter.CreatedTo))
	}

	q := "SELECT " + userColumns + " FROM users" + w.String() + core.OrderBy(orderings, userOrderings, "name ASC")
	var rows []userRow
	if err := selectIn(ctx, repo.exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`
		UPDATE users
		SET name = ?, username = ?, email = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ?`),
		row.Name, row.Username, row.Email, row.Role, row.IsActive, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = affectOne(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return row.user(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.exec, "DELETE FROM users WHERE id IN (?)", ids)
	return errors.Wrap(err, "deleting users")
}
