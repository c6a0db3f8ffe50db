package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

const userColumns = "id, username, email, password_hash, role, is_deactivated, date_created, date_edited"

// UserRepo mirrors the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.IsDeactivated, &u.DateCreated, &u.DateEdited); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (r *UserRepo) getBy(ctx context.Context, column string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+"=? LIMIT 1", arg))
	if err != nil {
		return nil, mapNoRows(err, "user", arg)
	}
	return u, nil
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

// FindByUsername fetches a user by username. The column collation makes
// the match case-insensitive.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getBy(ctx, "username", strings.TrimSpace(username))
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// Insert stores u and sets its ID.
func (r *UserRepo) Insert(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role, is_deactivated, date_created, date_edited) VALUES (?,?,?,?,?,?,?)",
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.IsDeactivated, u.DateCreated, u.DateEdited)
	if err != nil {
		return apperr.Wrap(mapDuplicate(err), "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Wrap(err, "insert user")
	}
	u.ID = uint64(id)
	return nil
}

// UpdateAccount changes username and email of user id.
func (r *UserRepo) UpdateAccount(ctx context.Context, id uint64, username, email string, at time.Time) error {
	return r.update(ctx, id, "username=?, email=?", username, email, at)
}

// UpdatePassword replaces the password hash of user id.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error {
	return r.update(ctx, id, "password_hash=?", hash, at)
}

// SetDeactivated flips the deactivation flag of user id.
func (r *UserRepo) SetDeactivated(ctx context.Context, id uint64, deactivated bool, at time.Time) error {
	return r.update(ctx, id, "is_deactivated=?", deactivated, at)
}

// update sets the given columns plus date_edited, which is the last arg.
func (r *UserRepo) update(ctx context.Context, id uint64, set string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+set+", date_edited=? WHERE id=?", append(args, id)...)
	if err != nil {
		return apperr.Wrap(mapDuplicate(err), "update user")
	}
	// MySQL reports zero affected rows when nothing changed, so only a
	// missing row is treated as not found.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, apperr.Wrap(err, "list users")
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Wrap(err, "scan user")
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, "list users")
	}
	return out, nil
}

// CountByRole counts users holding role.
func (r *UserRepo) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role=?", string(role)).Scan(&n); err != nil {
		return 0, apperr.Wrap(err, "count users")
	}
	return n, nil
}
