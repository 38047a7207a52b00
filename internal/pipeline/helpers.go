package pipeline

import (
	"errors"
	"slices"

	"clipper/internal/services"
)

func isCanceled(err error) bool {
	return errors.Is(err, services.ErrCanceled)
}

func sortRuns(runs []RunInfo) {
	slices.SortFunc(runs, func(a, b RunInfo) int {
		return a.Started.Compare(b.Started)
	})
}
