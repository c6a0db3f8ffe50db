package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

const measurementColumns = "id, patient_id, kind, systolic, diastolic, value, measured_at, date_created, date_edited"

// MeasurementRepo stores vital-sign readings. Blood pressure fills
// systolic/diastolic and leaves value NULL; the other kinds do the
// opposite.
type MeasurementRepo struct{ db *sql.DB }

func NewMeasurementRepo(db *sql.DB) *MeasurementRepo { return &MeasurementRepo{db: db} }

func scanMeasurement(row rowScanner) (*model.Measurement, error) {
	var (
		m        model.Measurement
		kind     string
		sys, dia sql.NullInt64
		value    sql.NullFloat64
	)
	if err := row.Scan(&m.ID, &m.PatientID, &kind, &sys, &dia, &value, &m.MeasuredAt, &m.DateCreated, &m.DateEdited); err != nil {
		return nil, err
	}
	m.Kind = model.MetricKind(kind)
	m.Systolic = int(sys.Int64)
	m.Diastolic = int(dia.Int64)
	m.Value = value.Float64
	return &m, nil
}

// columnValues splits a reading into its nullable columns.
func columnValues(m *model.Measurement) (sql.NullInt64, sql.NullInt64, sql.NullFloat64) {
	if m.Kind == model.MetricBloodPressure {
		return sql.NullInt64{Int64: int64(m.Systolic), Valid: true},
			sql.NullInt64{Int64: int64(m.Diastolic), Valid: true},
			sql.NullFloat64{}
	}
	return sql.NullInt64{}, sql.NullInt64{}, sql.NullFloat64{Float64: m.Value, Valid: true}
}

func (r *MeasurementRepo) Insert(ctx context.Context, m *model.Measurement) error {
	sys, dia, value := columnValues(m)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO measurements (patient_id, kind, systolic, diastolic, value, measured_at, date_created, date_edited)
		 VALUES (?,?,?,?,?,?,?,?)`,
		m.PatientID, string(m.Kind), sys, dia, value, m.MeasuredAt, m.DateCreated, m.DateEdited)
	if err != nil {
		return apperr.Wrap(err, "insert measurement")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Wrap(err, "insert measurement")
	}
	m.ID = uint64(id)
	return nil
}

func (r *MeasurementRepo) FindByID(ctx context.Context, id uint64) (*model.Measurement, error) {
	m, err := scanMeasurement(r.db.QueryRowContext(ctx, "SELECT "+measurementColumns+" FROM measurements WHERE id=?", id))
	if err != nil {
		return nil, mapNoRows(err, "measurement", id)
	}
	return m, nil
}

// ListByPatient returns readings newest first, optionally of one kind.
func (r *MeasurementRepo) ListByPatient(ctx context.Context, patientID uint64, kind model.MetricKind) ([]model.Measurement, error) {
	q := "SELECT " + measurementColumns + " FROM measurements WHERE patient_id=?"
	args := []any{patientID}
	if kind != "" {
		q += " AND kind=?"
		args = append(args, string(kind))
	}
	q += " ORDER BY measured_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Wrap(err, "list measurements")
	}
	defer rows.Close()
	out := []model.Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, apperr.Wrap(err, "scan measurement")
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, "list measurements")
	}
	return out, nil
}

func (r *MeasurementRepo) Update(ctx context.Context, m *model.Measurement) error {
	sys, dia, value := columnValues(m)
	_, err := r.db.ExecContext(ctx,
		"UPDATE measurements SET systolic=?, diastolic=?, value=?, measured_at=?, date_edited=? WHERE id=?",
		sys, dia, value, m.MeasuredAt, m.DateEdited, m.ID)
	return apperr.Wrap(err, "update measurement")
}

func (r *MeasurementRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM measurements WHERE id=?", id)
	if err != nil {
		return apperr.Wrap(err, "delete measurement")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("measurement", id)
	}
	return nil
}
