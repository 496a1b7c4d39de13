package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// wrapErr translates a Google API error into the domain taxonomy.
// 401 and 403 are authorization failures and fatal for the account; 404 is
// a missing resource; 429 and server errors are transient and retried on
// the next cycle.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}

	switch {
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: google api status %d", domain.ErrAuthExpired, gerr.Code)
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: google api status 404", domain.ErrNotFound)
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return fmt.Errorf("%w: google api status %d", domain.ErrTransient, gerr.Code)
	default:
		return err
	}
}

// IsRateLimited returns true for a 429 response.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests
}
