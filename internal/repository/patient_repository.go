package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

const patientColumns = "id, doctor_id, first_name, last_name, date_of_birth, gender, phone_number, date_created, date_edited"

// PatientRepo provides CRUD operations for patients.
type PatientRepo struct{ db *sql.DB }

func NewPatientRepo(db *sql.DB) *PatientRepo { return &PatientRepo{db: db} }

func scanPatient(row rowScanner) (*model.Patient, error) {
	var (
		p     model.Patient
		phone sql.NullString
	)
	if err := row.Scan(&p.ID, &p.DoctorID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &phone, &p.DateCreated, &p.DateEdited); err != nil {
		return nil, err
	}
	p.PhoneNumber = phone.String
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PatientRepo) Insert(ctx context.Context, p *model.Patient) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (doctor_id, first_name, last_name, date_of_birth, gender, phone_number, date_created, date_edited)
		 VALUES (?,?,?,?,?,?,?,?)`,
		p.DoctorID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, nullString(p.PhoneNumber), p.DateCreated, p.DateEdited)
	if err != nil {
		return apperr.Wrap(err, "insert patient")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Wrap(err, "insert patient")
	}
	p.ID = uint64(id)
	return nil
}

func (r *PatientRepo) FindByID(ctx context.Context, id uint64) (*model.Patient, error) {
	p, err := scanPatient(r.db.QueryRowContext(ctx, "SELECT "+patientColumns+" FROM patients WHERE id=?", id))
	if err != nil {
		return nil, mapNoRows(err, "patient", id)
	}
	return p, nil
}

// ListByDoctor returns the doctor's patients ordered by last name.
func (r *PatientRepo) ListByDoctor(ctx context.Context, doctorID uint64) ([]model.Patient, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE doctor_id=? ORDER BY last_name, id", doctorID)
	if err != nil {
		return nil, apperr.Wrap(err, "list patients")
	}
	defer rows.Close()
	out := []model.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperr.Wrap(err, "scan patient")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, "list patients")
	}
	return out, nil
}

func (r *PatientRepo) Update(ctx context.Context, p *model.Patient) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE patients SET first_name=?, last_name=?, date_of_birth=?, gender=?, phone_number=?, date_edited=?
		 WHERE id=?`,
		p.FirstName, p.LastName, p.DateOfBirth, p.Gender, nullString(p.PhoneNumber), p.DateEdited, p.ID)
	return apperr.Wrap(err, "update patient")
}

// Delete removes the patient and its measurements in one transaction.
func (r *PatientRepo) Delete(ctx context.Context, id uint64) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM measurements WHERE patient_id=?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM patients WHERE id=?", id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return notFound("patient", id)
		}
		return nil
	})
	return apperr.Wrap(err, "delete patient")
}
