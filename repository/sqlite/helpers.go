package sqlite

import (
	"errors"

	"github.com/fastygo/taskboard/domain"
)

// storeError classifies driver failures as network-class so callers retry
// or buffer them. Domain errors pass through untouched.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, op, err)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
