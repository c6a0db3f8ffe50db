package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
)

func samplePatient() model.Patient {
	return model.Patient{
		FirstName:   "Ana",
		LastName:    "Lima",
		DateOfBirth: time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC),
		Gender:      model.GenderFemale,
	}
}

func TestPatientOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doctor, mine := e.register(t, "drwho", model.RoleDoctor)
	_, theirs := e.register(t, "drno", model.RoleDoctor)
	_, adminToken := e.register(t, "admin1", model.RoleAdmin)

	in := samplePatient()
	in.DoctorID = 12345
	p, err := e.patients.Create(ctx, mine, in)
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, p.DoctorID, "owner is always the caller")

	_, err = e.patients.Create(ctx, adminToken, samplePatient())
	assert.True(t, apperr.Is(err, apperr.InsufficientRole))

	got, err := e.patients.Get(ctx, mine, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lima", got.LastName)

	_, err = e.patients.Get(ctx, theirs, p.ID)
	assert.True(t, apperr.Is(err, apperr.ForbiddenOwnership))
	_, err = e.patients.Update(ctx, theirs, p.ID, samplePatient())
	assert.True(t, apperr.Is(err, apperr.ForbiddenOwnership))
	err = e.patients.Delete(ctx, theirs, p.ID)
	assert.True(t, apperr.Is(err, apperr.ForbiddenOwnership))

	_, err = e.patients.Get(ctx, mine, p.ID+100)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	list, err := e.patients.List(ctx, theirs)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = e.patients.List(ctx, mine)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPatientUpdateValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, mine := e.register(t, "drwho", model.RoleDoctor)
	p, err := e.patients.Create(ctx, mine, samplePatient())
	require.NoError(t, err)

	upd := samplePatient()
	upd.LastName = "Lima-Souza"
	upd.PhoneNumber = "+55 11 5555-0100"
	got, err := e.patients.Update(ctx, mine, p.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Lima-Souza", got.LastName)
	assert.Equal(t, p.DoctorID, got.DoctorID)

	upd.Gender = "unknown"
	_, err = e.patients.Update(ctx, mine, p.ID, upd)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	stored, err := e.patients.Get(ctx, mine, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GenderFemale, stored.Gender)
}

func TestPatientDeleteRemovesMeasurements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, mine := e.register(t, "drwho", model.RoleDoctor)
	p, err := e.patients.Create(ctx, mine, samplePatient())
	require.NoError(t, err)
	m, err := e.metrics.Add(ctx, mine, p.ID, model.Measurement{Kind: model.MetricWeight, Value: 64.2, MeasuredAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, e.patients.Delete(ctx, mine, p.ID))
	_, err = e.store.Metrics().FindByID(ctx, m.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = e.patients.Get(ctx, mine, p.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
