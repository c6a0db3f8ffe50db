package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/model"
	"github.com/iliyamo/patient-records/internal/service"
)

// requestTimeout bounds the store and breach calls of one request.
const requestTimeout = 5 * time.Second

// dateLayout is the wire format of a patient's date of birth.
const dateLayout = "2006-01-02"

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userResp struct {
	ID            uint64    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	IsDeactivated bool      `json:"is_deactivated"`
	DateCreated   time.Time `json:"date_created"`
	DateEdited    time.Time `json:"date_edited"`
}

func toUserResp(u *model.User) userResp {
	return userResp{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          string(u.Role),
		IsDeactivated: u.IsDeactivated,
		DateCreated:   u.DateCreated,
		DateEdited:    u.DateEdited,
	}
}

type sessionResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toSessionResp(s *service.Session) sessionResp {
	return sessionResp{
		User:    toUserResp(s.User),
		Access:  tokenPart{Token: s.AccessToken.Token, Expires: s.AccessToken.Exp},
		Refresh: tokenPart{Token: s.RefreshToken, Expires: s.RefreshExpiry},
	}
}

type patientResp struct {
	ID          uint64    `json:"id"`
	DoctorID    uint64    `json:"doctor_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	DateCreated time.Time `json:"date_created"`
	DateEdited  time.Time `json:"date_edited"`
}

func toPatientResp(p *model.Patient) patientResp {
	return patientResp{
		ID:          p.ID,
		DoctorID:    p.DoctorID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format(dateLayout),
		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
		DateCreated: p.DateCreated,
		DateEdited:  p.DateEdited,
	}
}

// bind decodes the request body. Decoding failures are InvalidInput.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.New(apperr.InvalidInput, "invalid request body")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.With(apperr.InvalidInput, "param", name, "value", raw).Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
