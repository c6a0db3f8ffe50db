package model

import (
	"time"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// MetricKind names a vital sign.
type MetricKind string

const (
	MetricBloodPressure MetricKind = "blood_pressure"
	MetricHeight        MetricKind = "height"
	MetricWeight        MetricKind = "weight"
	MetricTemperature   MetricKind = "temperature"
)

// ParseMetricKind validates a kind coming from a request.
func ParseMetricKind(s string) (MetricKind, error) {
	switch k := MetricKind(s); k {
	case MetricBloodPressure, MetricHeight, MetricWeight, MetricTemperature:
		return k, nil
	}
	return "", apperr.With(apperr.InvalidInput, "kind", s).Errorf("unknown metric kind %q", s)
}

// Measurement is one vital-sign reading of a patient. Blood pressure uses
// Systolic and Diastolic (mmHg); every other kind uses Value in its unit:
// centimetres for height, kilograms for weight, degrees Celsius for
// temperature.
type Measurement struct {
	ID          uint64     `json:"id"`
	PatientID   uint64     `json:"patient_id"`
	Kind        MetricKind `json:"kind"`
	Systolic    int        `json:"systolic,omitempty"`
	Diastolic   int        `json:"diastolic,omitempty"`
	Value       float64    `json:"value,omitempty"`
	MeasuredAt  time.Time  `json:"measured_at"`
	DateCreated time.Time  `json:"date_created"`
	DateEdited  time.Time  `json:"date_edited"`
}

type valueRange struct{ min, max float64 }

var valueRanges = map[MetricKind]valueRange{
	MetricHeight:      {20, 300},
	MetricWeight:      {0.5, 500},
	MetricTemperature: {25, 45},
}

// Validate checks the reading against physiologically plausible ranges.
func (m *Measurement) Validate() error {
	if _, err := ParseMetricKind(string(m.Kind)); err != nil {
		return err
	}
	if m.MeasuredAt.IsZero() {
		return apperr.New(apperr.InvalidInput, "measured_at is required")
	}
	if m.Kind == MetricBloodPressure {
		if m.Systolic < 50 || m.Systolic > 300 {
			return apperr.With(apperr.InvalidInput, "systolic", m.Systolic).Errorf("systolic must be between 50 and 300 mmHg")
		}
		if m.Diastolic < 20 || m.Diastolic > 200 {
			return apperr.With(apperr.InvalidInput, "diastolic", m.Diastolic).Errorf("diastolic must be between 20 and 200 mmHg")
		}
		if m.Diastolic >= m.Systolic {
			return apperr.New(apperr.InvalidInput, "diastolic must be lower than systolic")
		}
		m.Value = 0
		return nil
	}
	r := valueRanges[m.Kind]
	if m.Value < r.min || m.Value > r.max {
		return apperr.With(apperr.InvalidInput, "value", m.Value).
			Errorf("%s must be between %g and %g", m.Kind, r.min, r.max)
	}
	m.Systolic, m.Diastolic = 0, 0
	return nil
}
