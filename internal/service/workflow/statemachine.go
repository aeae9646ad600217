package workflow

import "github.com/Alijeyrad/careflow_backend/internal/repo"

var allowedNext = map[repo.AssessmentStatus][]repo.AssessmentStatus{
	repo.AssessmentDraft:       {},
	repo.AssessmentNeedsReview: {repo.AssessmentInReview, repo.AssessmentCompleted},
	repo.AssessmentInReview:    {repo.AssessmentCompleted},
	repo.AssessmentCompleted:   {},
}

// AllowedNext lists the statuses reachable from s in one step.
func AllowedNext(s repo.AssessmentStatus) []repo.AssessmentStatus {
	out := make([]repo.AssessmentStatus, len(allowedNext[s]))
	copy(out, allowedNext[s])
	return out
}

func canTransition(from, to repo.AssessmentStatus) bool {
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
