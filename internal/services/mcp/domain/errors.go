package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
)

// toolError reports a failed story operation, surfacing its error code and
// metadata so clients can branch without parsing prose.
func toolError(action string, err error) error {
	if detail := apperrors.Describe(err); detail != "" {
		return fmt.Errorf("%s failed [%s]: %w", action, detail, err)
	}
	return fmt.Errorf("%s failed: %w", action, err)
}
