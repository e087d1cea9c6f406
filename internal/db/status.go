package db

import (
	"fmt"
	"time"

	"github.com/ldi/trellis/pkg/models"
)

const dateLayout = "2006-01-02"

// resolveProgress validates a status update against the record's current
// progress and returns the progress value to store.
func resolveProgress(u models.StatusUpdate, current int) (int, error) {
	if !u.Status.Valid() {
		return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, u.Status)
	}

	progress := current
	if u.Progress != nil {
		progress = *u.Progress
	}
	if progress < 0 || progress > 100 {
		return 0, fmt.Errorf("%w: progress %d out of range 0-100", ErrInvalidStatus, progress)
	}
	if u.Status == models.StatusCompleted && progress != 100 {
		return 0, fmt.Errorf("%w: completed requires progress 100, got %d", ErrInvalidStatus, progress)
	}
	return progress, nil
}

func validateDate(value *string) error {
	if value == nil {
		return nil
	}
	if _, err := time.Parse(dateLayout, *value); err != nil {
		return fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidStatus, *value)
	}
	return nil
}
