// Package repository implements the service repositories on MySQL. Absent
// rows surface as apperr.NotFound and unique-key violations as the
// matching Duplicate kind, so callers never see driver errors for those
// cases.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func notFound(what string, id any) error {
	return apperr.With(apperr.NotFound, what+"_id", id).Errorf("%s not found", what)
}

// mapNoRows turns sql.ErrNoRows into a NotFound error and wraps anything
// else as Internal.
func mapNoRows(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what, id)
	}
	return apperr.Wrap(err, "select "+what)
}

// Unique indexes of the users table, as named in schema.sql.
const (
	keyUsersUsername = "uq_users_username"
	keyUsersEmail    = "uq_users_email"
)

// mapDuplicate translates a duplicate-key error on the users table into
// DuplicateUsername or DuplicateEmail based on the violated index.
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	switch duplicateKey(me.Message) {
	case keyUsersUsername:
		return apperr.New(apperr.DuplicateUsername, "username is taken")
	case keyUsersEmail:
		return apperr.New(apperr.DuplicateEmail, "email is taken")
	}
	return err
}

// duplicateKey extracts the index name from "Duplicate entry 'v' for key
// 'k'". MySQL 8 prefixes the table ("users.k"), 5.7 does not. The entry
// value is user data and is never inspected.
func duplicateKey(msg string) string {
	i := strings.LastIndex(msg, " for key ")
	if i < 0 {
		return ""
	}
	key := strings.Trim(strings.TrimSpace(msg[i+len(" for key "):]), "'`\"")
	if j := strings.LastIndex(key, "."); j >= 0 {
		key = key[j+1:]
	}
	return key
}

// withTx runs fn in a transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}
