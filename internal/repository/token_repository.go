package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

// TokenRepo persists refresh tokens. refresh_tokens.user_id is unique, so
// a user holds at most one row.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const (
	deleteRefreshSQL = "DELETE FROM refresh_tokens WHERE user_id=?"
	insertRefreshSQL = "INSERT INTO refresh_tokens (user_id, token_hash, expiry, date_created) VALUES (?,?,?,?)"
	lockRefreshSQL   = "SELECT id, user_id, token_hash, expiry, date_created FROM refresh_tokens WHERE user_id=? FOR UPDATE"
)

func insertRefresh(ctx context.Context, tx *sql.Tx, rec *model.RefreshToken) error {
	res, err := tx.ExecContext(ctx, insertRefreshSQL, rec.UserID, rec.TokenHash, rec.Expiry, rec.DateCreated)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// Replace drops the user's token and stores rec in one transaction.
func (r *TokenRepo) Replace(ctx context.Context, rec *model.RefreshToken) error {
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteRefreshSQL, rec.UserID); err != nil {
			return err
		}
		return insertRefresh(ctx, tx, rec)
	})
	return apperr.Wrap(err, "replace refresh token")
}

// Rotate locks the user's row with SELECT ... FOR UPDATE so concurrent
// redemptions of the same token serialize; only the first sees the row.
func (r *TokenRepo) Rotate(ctx context.Context, userID uint64, check func(*model.RefreshToken) error, next *model.RefreshToken) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var (
			cur     model.RefreshToken
			current *model.RefreshToken
		)
		err := tx.QueryRowContext(ctx, lockRefreshSQL, userID).
			Scan(&cur.ID, &cur.UserID, &cur.TokenHash, &cur.Expiry, &cur.DateCreated)
		switch {
		case err == nil:
			current = &cur
		case !errors.Is(err, sql.ErrNoRows):
			return apperr.Wrap(err, "lock refresh token")
		}
		if err := check(current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteRefreshSQL, userID); err != nil {
			return apperr.Wrap(err, "delete refresh token")
		}
		next.UserID = userID
		return apperr.Wrap(insertRefresh(ctx, tx, next), "insert refresh token")
	})
}

// Invalidate deletes the user's refresh token, if any.
func (r *TokenRepo) Invalidate(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, deleteRefreshSQL, userID)
	return apperr.Wrap(err, "delete refresh token")
}
