package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
)

// ScoringCompleted is published by the external scoring runner on
// careflow.scoring.completed.<assessment_id>.
type ScoringCompleted struct {
	FacilityID uuid.UUID     `json:"facility_id"`
	RiskTier   repo.RiskTier `json:"risk_tier"`
}

// ParseScoringMessage extracts the assessment id from subject and decodes
// the payload.
func ParseScoringMessage(subject string, data []byte) (uuid.UUID, ScoringCompleted, error) {
	parts := strings.Split(subject, ".")
	if len(parts) < 4 {
		return uuid.Nil, ScoringCompleted{}, fmt.Errorf("unexpected subject %q", subject)
	}
	id, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		return uuid.Nil, ScoringCompleted{}, fmt.Errorf("subject %q: %w", subject, err)
	}

	var ev ScoringCompleted
	if err := json.Unmarshal(data, &ev); err != nil {
		return uuid.Nil, ScoringCompleted{}, fmt.Errorf("decode scoring payload: %w", err)
	}
	if ev.FacilityID == uuid.Nil {
		return uuid.Nil, ScoringCompleted{}, fmt.Errorf("scoring payload has no facility_id")
	}
	return id, ev, nil
}

// HandleScoringMessage applies one scoring completion. Redelivery of the
// same message is harmless: the tier is overwritten with the same value and
// the draft check no longer matches.
func HandleScoringMessage(ctx context.Context, svc Service, subject string, data []byte) (WorkItem, error) {
	id, ev, err := ParseScoringMessage(subject, data)
	if err != nil {
		return WorkItem{}, err
	}
	return svc.ApplyScore(ctx, ev.FacilityID, id, ev.RiskTier)
}
