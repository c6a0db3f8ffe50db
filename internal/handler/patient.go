package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/middleware"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/service"
)

// PatientHandler serves a doctor's patients and their vital signs.
type PatientHandler struct {
	patients *service.PatientService
	metrics  *service.MetricService
}

func NewPatientHandler(patients *service.PatientService, metrics *service.MetricService) *PatientHandler {
	if patients == nil || metrics == nil {
		panic("nil service passed to NewPatientHandler")
	}
	return &PatientHandler{patients: patients, metrics: metrics}
}

type patientReq struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phone_number"`
}

func (r patientReq) model() (model.Patient, error) {
	p := model.Patient{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Gender:      r.Gender,
		PhoneNumber: r.PhoneNumber,
	}
	if dob := strings.TrimSpace(r.DateOfBirth); dob != "" {
		t, err := time.Parse(dateLayout, dob)
		if err != nil {
			return p, apperr.With(apperr.InvalidInput, "date_of_birth", dob).Errorf("date_of_birth must be YYYY-MM-DD")
		}
		p.DateOfBirth = t
	}
	return p, nil
}

func (h *PatientHandler) Create(c echo.Context) error {
	var req patientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.model()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.patients.Create(ctx, middleware.Token(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toPatientResp(p))
}

func (h *PatientHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	ps, err := h.patients.List(ctx, middleware.Token(c))
	if err != nil {
		return err
	}
	out := make([]patientResp, 0, len(ps))
	for i := range ps {
		out = append(out, toPatientResp(&ps[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PatientHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.patients.Get(ctx, middleware.Token(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPatientResp(p))
}

func (h *PatientHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req patientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.model()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.patients.Update(ctx, middleware.Token(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPatientResp(p))
}

// Delete removes the patient and every measurement filed under it.
func (h *PatientHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.patients.Delete(ctx, middleware.Token(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
