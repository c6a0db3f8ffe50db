package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// Gender values accepted for a patient.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Patient mirrors the `patients` table. DoctorID is the owning doctor;
// only that doctor may read or change the record and its measurements.
type Patient struct {
	ID          uint64    `json:"id"`
	DoctorID    uint64    `json:"doctor_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	DateCreated time.Time `json:"date_created"`
	DateEdited  time.Time `json:"date_edited"`
}

// Normalize trims the free-text fields and lower-cases the gender.
func (p *Patient) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.PhoneNumber = strings.TrimSpace(p.PhoneNumber)
}

// Validate checks the fields a caller may set. now bounds the date of
// birth.
func (p *Patient) Validate(now time.Time) error {
	switch {
	case p.FirstName == "" || p.LastName == "":
		return apperr.New(apperr.InvalidInput, "first_name and last_name are required")
	case utf8.RuneCountInString(p.FirstName) > 100 || utf8.RuneCountInString(p.LastName) > 100:
		return apperr.New(apperr.InvalidInput, "names must be at most 100 characters")
	case p.DateOfBirth.IsZero():
		return apperr.New(apperr.InvalidInput, "date_of_birth is required")
	case p.DateOfBirth.After(now):
		return apperr.New(apperr.InvalidInput, "date_of_birth is in the future")
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		return apperr.With(apperr.InvalidInput, "gender", p.Gender).Errorf("gender must be male, female or other")
	}
	if p.PhoneNumber != "" && !phonePattern.MatchString(p.PhoneNumber) {
		return apperr.New(apperr.InvalidInput, "phone_number is not a valid phone number")
	}
	return nil
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)
