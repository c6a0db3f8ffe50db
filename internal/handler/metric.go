package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/middleware"
	"github.com/iliyamo/patient-records/internal/model"
)

type metricReq struct {
	Kind       string    `json:"kind"`
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at"`
}

func (r metricReq) model() model.Measurement {
	return model.Measurement{
		Kind:       model.MetricKind(r.Kind),
		Systolic:   r.Systolic,
		Diastolic:  r.Diastolic,
		Value:      r.Value,
		MeasuredAt: r.MeasuredAt,
	}
}

// AddMetric records a reading. A missing measured_at means now.
func (h *PatientHandler) AddMetric(c echo.Context) error {
	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req metricReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in := req.model()
	if in.MeasuredAt.IsZero() {
		in.MeasuredAt = time.Now().UTC()
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	m, err := h.metrics.Add(ctx, middleware.Token(c), patientID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMetrics returns the patient's readings, newest first. ?kind= filters.
func (h *PatientHandler) ListMetrics(c echo.Context) error {
	patientID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	ms, err := h.metrics.List(ctx, middleware.Token(c), patientID, c.QueryParam("kind"))
	if err != nil {
		return err
	}
	if ms == nil {
		ms = []model.Measurement{}
	}
	return c.JSON(http.StatusOK, ms)
}

func (h *PatientHandler) GetMetric(c echo.Context) error {
	patientID, metricID, err := metricIDs(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	m, err := h.metrics.Get(ctx, middleware.Token(c), patientID, metricID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *PatientHandler) UpdateMetric(c echo.Context) error {
	patientID, metricID, err := metricIDs(c)
	if err != nil {
		return err
	}
	var req metricReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	m, err := h.metrics.Update(ctx, middleware.Token(c), patientID, metricID, req.model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *PatientHandler) DeleteMetric(c echo.Context) error {
	patientID, metricID, err := metricIDs(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.metrics.Delete(ctx, middleware.Token(c), patientID, metricID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func metricIDs(c echo.Context) (uint64, uint64, error) {
	patientID, err := pathID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	metricID, err := pathID(c, "metric_id")
	if err != nil {
		return 0, 0, err
	}
	return patientID, metricID, nil
}
