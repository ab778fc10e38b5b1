package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// ValidateStaffCode redeems a code for a department. Validation consumes:
// the store's conditional update marks the code used in the same step that
// proves it was usable, so two racing validations produce exactly one
// winner. Misses fail softly in the result, not as errors.
func (e *Engine) ValidateStaffCode(ctx context.Context, code, department string) (*StaffCodeValidation, error) {
	if e == nil || e.staffCodes == nil {
		return nil, ErrEngineNotReady
	}

	code = strings.TrimSpace(code)
	department = strings.TrimSpace(department)
	if code == "" || department == "" {
		return nil, ErrInvalidRequest
	}

	consumed, err := e.staffCodes.Consume(ctx, code, department)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return &StaffCodeValidation{Valid: false, Reason: "code is invalid, already used, or not issued for this department"}, nil
	}
	return &StaffCodeValidation{Valid: true}, nil
}

// GenerateStaffCodes mints count one-time codes for a department and
// persists them unredeemed. Codes are department-prefixed; collisions on
// insert are retried with a fresh random component.
func (e *Engine) GenerateStaffCodes(ctx context.Context, department string, count int) ([]string, error) {
	if e == nil || e.staffCodes == nil {
		return nil, ErrEngineNotReady
	}

	department = strings.TrimSpace(department)
	if department == "" || count < 1 || count > e.config.StaffCode.MaxBatchSize {
		return nil, ErrInvalidRequest
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := e.insertFreshCode(ctx, department)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (e *Engine) insertFreshCode(ctx context.Context, department string) (string, error) {
	for attempt := 0; attempt < e.config.StaffCode.InsertMaxRetries; attempt++ {
		code, err := newStaffCode(department, e.config.StaffCode.DepartmentPrefix)
		if err != nil {
			return "", err
		}
		err = e.staffCodes.Insert(ctx, code, department)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrStaffCodeExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("staff code generation for %q exhausted retries", department)
}

// ListDepartments reports the departments that have codes issued.
func (e *Engine) ListDepartments(ctx context.Context) ([]string, error) {
	if e == nil || e.staffCodes == nil {
		return nil, ErrEngineNotReady
	}
	return e.staffCodes.Departments(ctx)
}

// newStaffCode builds a code of the form NNNN-PRE: four random digits in
// [1000, 9999] and the department's first prefixLen letters uppercased.
func newStaffCode(department string, prefixLen int) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%s", 1000+n.Int64(), departmentPrefix(department, prefixLen)), nil
}

func departmentPrefix(department string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(department) {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= n {
			break
		}
	}
	return b.String()
}
