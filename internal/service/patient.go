package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
)

var doctorOnly = []model.Role{model.RoleDoctor}

// PatientService gives doctors access to their own patients.
type PatientService struct {
	patients PatientRepository
	decider  *Decider
	audit    auditor
	now      func() time.Time
}

func NewPatientService(patients PatientRepository, decider *Decider, events EventPublisher, log zerolog.Logger) *PatientService {
	return &PatientService{
		patients: patients,
		decider:  decider,
		audit:    auditor{pub: events, log: log.With().Str("component", "patients").Logger()},
		now:      time.Now,
	}
}

// ownedPatient authorizes the caller as the owning doctor of patient id
// and returns both.
func ownedPatient(ctx context.Context, d *Decider, repo PatientRepository, token string, id uint64) (*model.User, *model.Patient, error) {
	var p *model.Patient
	me, err := d.AuthorizeOwner(ctx, token, doctorOnly, func(ctx context.Context) (uint64, error) {
		var err error
		if p, err = repo.FindByID(ctx, id); err != nil {
			return 0, apperr.Wrap(err, "find patient")
		}
		return p.DoctorID, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return me, p, nil
}

// Create stores a patient owned by the calling doctor.
func (s *PatientService) Create(ctx context.Context, token string, in model.Patient) (*model.Patient, error) {
	me, err := s.decider.Authorize(ctx, token, doctorOnly...)
	if err != nil {
		return nil, err
	}
	p := in
	p.ID = 0
	p.DoctorID = me.ID
	p.Normalize()
	if err := p.Validate(s.now()); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.DateCreated, p.DateEdited = now, now
	if err := s.patients.Insert(ctx, &p); err != nil {
		return nil, apperr.Wrap(err, "insert patient")
	}
	s.audit.emit(ctx, queue.EventPatientCreated, me.ID, p.ID)
	return &p, nil
}

// List returns the calling doctor's patients.
func (s *PatientService) List(ctx context.Context, token string) ([]model.Patient, error) {
	me, err := s.decider.Authorize(ctx, token, doctorOnly...)
	if err != nil {
		return nil, err
	}
	ps, err := s.patients.ListByDoctor(ctx, me.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "list patients")
	}
	return ps, nil
}

// Get returns one of the caller's patients.
func (s *PatientService) Get(ctx context.Context, token string, id uint64) (*model.Patient, error) {
	_, p, err := ownedPatient(ctx, s.decider, s.patients, token, id)
	return p, err
}

// Update replaces the editable fields of patient id.
func (s *PatientService) Update(ctx context.Context, token string, id uint64, in model.Patient) (*model.Patient, error) {
	me, p, err := ownedPatient(ctx, s.decider, s.patients, token, id)
	if err != nil {
		return nil, err
	}
	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.DateOfBirth = in.DateOfBirth
	p.Gender = in.Gender
	p.PhoneNumber = in.PhoneNumber
	p.Normalize()
	if err := p.Validate(s.now()); err != nil {
		return nil, err
	}
	p.DateEdited = s.now().UTC()
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, apperr.Wrap(err, "update patient")
	}
	s.audit.emit(ctx, queue.EventPatientUpdated, me.ID, p.ID)
	return p, nil
}

// Delete removes patient id together with its measurements.
func (s *PatientService) Delete(ctx context.Context, token string, id uint64) error {
	me, p, err := ownedPatient(ctx, s.decider, s.patients, token, id)
	if err != nil {
		return err
	}
	if err := s.patients.Delete(ctx, p.ID); err != nil {
		return apperr.Wrap(err, "delete patient")
	}
	s.audit.emit(ctx, queue.EventPatientDeleted, me.ID, p.ID)
	return nil
}
