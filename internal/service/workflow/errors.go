package workflow

import (
	"errors"
	"fmt"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

var (
	ErrNotFound          = errors.New("work item not found")
	ErrAlreadyAssigned   = errors.New("work item is already assigned")
	ErrConflict          = errors.New("work item was changed by someone else")
	ErrForbidden         = errors.New("not allowed to act on this work item")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidFilter     = errors.New("invalid queue filter")
	ErrUnknownCheck      = errors.New("unknown check type")
	ErrAssigneeNotMember = errors.New("assignee is not a member of this facility")
	ErrInvalidRiskTier   = errors.New("invalid risk tier")
)

// TransitionError carries the rejected edge and what would have been allowed.
type TransitionError struct {
	From    repo.AssessmentStatus
	To      repo.AssessmentStatus
	Allowed []repo.AssessmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move assessment from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
