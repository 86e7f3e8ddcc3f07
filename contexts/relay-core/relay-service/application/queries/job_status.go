package queries

import (
	"context"
	"fmt"
	"strings"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
)

type JobStatusQuery struct {
	JobID string
}

type JobStatusResult struct {
	Entry entities.JournalEntry
}

// JobStatusUseCase serves journal polling. Callers whose request timed out
// mid-flight read the authoritative outcome here instead of blindly retrying.
type JobStatusUseCase struct {
	Journal ports.JournalRepository
}

func (u JobStatusUseCase) Execute(ctx context.Context, query JobStatusQuery) (JobStatusResult, error) {
	jobID := strings.TrimSpace(query.JobID)
	if jobID == "" {
		return JobStatusResult{}, fmt.Errorf("%w: job id must not be empty", domainerrors.ErrMalformedRequest)
	}

	entry, err := u.Journal.Get(ctx, jobID)
	if err != nil {
		return JobStatusResult{}, err
	}
	return JobStatusResult{Entry: entry}, nil
}
