package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/queue"
)

// MetricService manages vital-sign measurements. Access follows the
// ownership of the patient the measurement belongs to.
type MetricService struct {
	patients PatientRepository
	metrics  MetricRepository
	decider  *Decider
	audit    auditor
	now      func() time.Time
}

func NewMetricService(patients PatientRepository, metrics MetricRepository, decider *Decider, events EventPublisher, log zerolog.Logger) *MetricService {
	return &MetricService{
		patients: patients,
		metrics:  metrics,
		decider:  decider,
		audit:    auditor{pub: events, log: log.With().Str("component", "metrics").Logger()},
		now:      time.Now,
	}
}

// Add records a measurement for one of the caller's patients.
func (s *MetricService) Add(ctx context.Context, token string, patientID uint64, in model.Measurement) (*model.Measurement, error) {
	me, p, err := ownedPatient(ctx, s.decider, s.patients, token, patientID)
	if err != nil {
		return nil, err
	}
	m := in
	m.ID = 0
	m.PatientID = p.ID
	if err := m.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m.DateCreated, m.DateEdited = now, now
	if err := s.metrics.Insert(ctx, &m); err != nil {
		return nil, apperr.Wrap(err, "insert measurement")
	}
	s.audit.emit(ctx, queue.EventMetricRecorded, me.ID, m.ID)
	return &m, nil
}

// List returns the patient's measurements, optionally of one kind.
func (s *MetricService) List(ctx context.Context, token string, patientID uint64, kind string) ([]model.Measurement, error) {
	_, p, err := ownedPatient(ctx, s.decider, s.patients, token, patientID)
	if err != nil {
		return nil, err
	}
	var k model.MetricKind
	if kind != "" {
		if k, err = model.ParseMetricKind(kind); err != nil {
			return nil, err
		}
	}
	ms, err := s.metrics.ListByPatient(ctx, p.ID, k)
	if err != nil {
		return nil, apperr.Wrap(err, "list measurements")
	}
	return ms, nil
}

// Get returns one measurement of the patient.
func (s *MetricService) Get(ctx context.Context, token string, patientID, metricID uint64) (*model.Measurement, error) {
	_, p, err := ownedPatient(ctx, s.decider, s.patients, token, patientID)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, p.ID, metricID)
}

// Update replaces the values of a measurement. Its kind cannot change.
func (s *MetricService) Update(ctx context.Context, token string, patientID, metricID uint64, in model.Measurement) (*model.Measurement, error) {
	me, p, err := ownedPatient(ctx, s.decider, s.patients, token, patientID)
	if err != nil {
		return nil, err
	}
	m, err := s.find(ctx, p.ID, metricID)
	if err != nil {
		return nil, err
	}
	if in.Kind != "" && in.Kind != m.Kind {
		return nil, apperr.New(apperr.InvalidInput, "measurement kind cannot be changed")
	}
	m.Systolic, m.Diastolic, m.Value = in.Systolic, in.Diastolic, in.Value
	if !in.MeasuredAt.IsZero() {
		m.MeasuredAt = in.MeasuredAt
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.DateEdited = s.now().UTC()
	if err := s.metrics.Update(ctx, m); err != nil {
		return nil, apperr.Wrap(err, "update measurement")
	}
	s.audit.emit(ctx, queue.EventMetricUpdated, me.ID, m.ID)
	return m, nil
}

// Delete removes a measurement of the patient.
func (s *MetricService) Delete(ctx context.Context, token string, patientID, metricID uint64) error {
	me, p, err := ownedPatient(ctx, s.decider, s.patients, token, patientID)
	if err != nil {
		return err
	}
	m, err := s.find(ctx, p.ID, metricID)
	if err != nil {
		return err
	}
	if err := s.metrics.Delete(ctx, m.ID); err != nil {
		return apperr.Wrap(err, "delete measurement")
	}
	s.audit.emit(ctx, queue.EventMetricDeleted, me.ID, m.ID)
	return nil
}

// find loads a measurement and hides ones filed under another patient.
func (s *MetricService) find(ctx context.Context, patientID, metricID uint64) (*model.Measurement, error) {
	m, err := s.metrics.FindByID(ctx, metricID)
	if err != nil {
		return nil, apperr.Wrap(err, "find measurement")
	}
	if m.PatientID != patientID {
		return nil, apperr.With(apperr.NotFound, "measurement_id", metricID).Errorf("measurement not found")
	}
	return m, nil
}
