package service

import (
	"context"

	"github.com/iliyamo/patient-records/internal/apperr"
	"github.com/iliyamo/patient-records/internal/utils"
)

// PasswordPolicy enforces minimum length, character classes and absence
// from the breach corpus.
type PasswordPolicy struct {
	MinLength int
	Leaks     LeakChecker
}

// Check returns WeakPassword or LeakedPassword, or nil.
func (p PasswordPolicy) Check(ctx context.Context, plain string) error {
	if err := utils.CheckPasswordPolicy(plain, p.MinLength); err != nil {
		return err
	}
	if p.Leaks != nil && p.Leaks.IsLeaked(ctx, plain) {
		return apperr.New(apperr.LeakedPassword, "password appears in a known data breach")
	}
	return nil
}
