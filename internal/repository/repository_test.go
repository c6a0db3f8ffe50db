package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var userCols = []string{"id", "username", "email", "password_hash", "role", "is_deactivated", "date_created", "date_edited"}

func TestUserRepoFind(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=? LIMIT 1")).
		WithArgs("drsmith1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "drsmith1", "smith@clinic.test", "h", "Doctor", false, now, now))
	u, err := repo.FindByUsername(context.Background(), " drsmith1 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, model.RoleDoctor, u.Role)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
		WithArgs("nobody@clinic.test").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "Nobody@Clinic.test")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestUserRepoInsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	u := &model.User{Username: "drsmith1", Email: "smith@clinic.test", Role: model.RoleDoctor}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'drsmith1' for key 'users.uq_users_username'"})
	err := repo.Insert(context.Background(), u)
	assert.True(t, apperr.Is(err, apperr.DuplicateUsername))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'smith@clinic.test' for key 'users.uq_users_email'"})
	err = repo.Insert(context.Background(), u)
	assert.True(t, apperr.Is(err, apperr.DuplicateEmail))

	// the entry value mentions "username" but the violated key is the email one
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'username@clinic.test' for key 'users.uq_users_email'"})
	err = repo.Insert(context.Background(), u)
	assert.True(t, apperr.Is(err, apperr.DuplicateEmail))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'email' for key 'uq_users_username'"})
	err = repo.Insert(context.Background(), u)
	assert.True(t, apperr.Is(err, apperr.DuplicateUsername))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(12, 1))
	require.NoError(t, repo.Insert(context.Background(), u))
	assert.Equal(t, uint64(12), u.ID)
}

func TestDuplicateKey(t *testing.T) {
	tests := map[string]string{
		"Duplicate entry 'a' for key 'users.uq_users_email'":           "uq_users_email",
		"Duplicate entry 'a' for key 'uq_users_username'":              "uq_users_username",
		"Duplicate entry 'x for key y' for key 'users.uq_users_email'": "uq_users_email",
		"something else": "",
	}
	for msg, want := range tests {
		assert.Equal(t, want, duplicateKey(msg), msg)
	}
}

func TestUserRepoTargetedUpdates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, date_edited=? WHERE id=?")).
		WithArgs("new-hash", at, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePassword(ctx, 7, "new-hash", at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_deactivated=?, date_edited=? WHERE id=?")).
		WithArgs(true, at, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetDeactivated(ctx, 7, true, at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET username=?, email=?, date_edited=? WHERE id=?")).
		WithArgs("drsmith2", "smith2@clinic.test", at, uint64(7)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'smith2@clinic.test' for key 'users.uq_users_email'"})
	err := repo.UpdateAccount(ctx, 7, "drsmith2", "smith2@clinic.test", at)
	assert.True(t, apperr.Is(err, apperr.DuplicateEmail))

	// no row changed and none exists
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_deactivated=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=? LIMIT 1")).
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)
	err = repo.SetDeactivated(ctx, 99, true, at)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestTokenRepoRotate(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "user_id", "token_hash", "expiry", "date_created"}
	now := time.Now().UTC()

	t.Run("match rotates", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTokenRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE user_id=? FOR UPDATE")).
			WithArgs(uint64(3)).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 3, "old", now.Add(time.Hour), now))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
			WithArgs(uint64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
			WithArgs(uint64(3), "new", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		next := &model.RefreshToken{TokenHash: "new", Expiry: now.Add(time.Hour), DateCreated: now}
		var seen string
		err := repo.Rotate(ctx, 3, func(cur *model.RefreshToken) error {
			seen = cur.TokenHash
			return nil
		}, next)
		require.NoError(t, err)
		assert.Equal(t, "old", seen)
		assert.Equal(t, uint64(2), next.ID)
	})

	t.Run("rejected rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTokenRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs(uint64(3)).
			WillReturnRows(sqlmock.NewRows(cols))
		mock.ExpectRollback()

		err := repo.Rotate(ctx, 3, func(cur *model.RefreshToken) error {
			assert.Nil(t, cur)
			return apperr.New(apperr.RefreshTokenInvalid, "no token")
		}, &model.RefreshToken{})
		assert.True(t, apperr.Is(err, apperr.RefreshTokenInvalid))
	})
}

func TestTokenRepoReplace(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	rec := &model.RefreshToken{UserID: 9, TokenHash: "h", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Replace(context.Background(), rec))
	assert.Equal(t, uint64(5), rec.ID)
}

func TestPatientRepoDelete(t *testing.T) {
	t.Run("cascades", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM measurements WHERE patient_id=?")).WithArgs(uint64(4)).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patients WHERE id=?")).WithArgs(uint64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		require.NoError(t, NewPatientRepo(db).Delete(context.Background(), 4))
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM measurements")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patients")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
		err := NewPatientRepo(db).Delete(context.Background(), 4)
		assert.True(t, apperr.Is(err, apperr.NotFound))
	})
}

func TestMeasurementRepoList(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cols := []string{"id", "patient_id", "kind", "systolic", "diastolic", "value", "measured_at", "date_created", "date_edited"}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_id=? AND kind=? ORDER BY measured_at DESC")).
		WithArgs(uint64(4), "blood_pressure").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, 4, "blood_pressure", 120, 80, nil, at, at, at))

	ms, err := NewMeasurementRepo(db).ListByPatient(context.Background(), 4, model.MetricBloodPressure)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 120, ms[0].Systolic)
	assert.Equal(t, 80, ms[0].Diastolic)
	assert.Zero(t, ms[0].Value)
}

func TestMeasurementRepoInsertColumns(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now().UTC()
	m := &model.Measurement{PatientID: 4, Kind: model.MetricWeight, Value: 71.5, MeasuredAt: at, DateCreated: at, DateEdited: at}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO measurements")).
		WithArgs(uint64(4), "weight", nil, nil, 71.5, at, at, at).
		WillReturnResult(sqlmock.NewResult(8, 1))
	require.NoError(t, NewMeasurementRepo(db).Insert(context.Background(), m))
	assert.Equal(t, uint64(8), m.ID)
}
