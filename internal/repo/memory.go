package repo

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in process. A single lock serializes
// writers, which gives the conditional updates the same all-or-nothing
// behaviour the Postgres stores get from single-statement UPDATEs.
type MemoryStore struct {
	mu sync.RWMutex

	assessments map[uuid.UUID]Assessment
	fallEvents  map[uuid.UUID]FallEvent
	fallChecks  map[uuid.UUID]map[string]FallCheck
	units       map[uuid.UUID]Unit
	residents   map[uuid.UUID]Resident
	audit       []AuditEvent
	schedules   map[uuid.UUID]ExportSchedule
	logs        []ExportLog
	tokens      map[uuid.UUID]ExportToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: map[uuid.UUID]Assessment{},
		fallEvents:  map[uuid.UUID]FallEvent{},
		fallChecks:  map[uuid.UUID]map[string]FallCheck{},
		units:       map[uuid.UUID]Unit{},
		residents:   map[uuid.UUID]Resident{},
		schedules:   map[uuid.UUID]ExportSchedule{},
		tokens:      map[uuid.UUID]ExportToken{},
	}
}

// AddUnit, AddResident and AddAuditEvent seed the read-only directory tables.
func (m *MemoryStore) AddUnit(u Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
}

func (m *MemoryStore) AddResident(r Resident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.residents[r.ID] = r
}

func (m *MemoryStore) AddAuditEvent(e AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
}

func (m *MemoryStore) FacilityOf(_ context.Context, unitID uuid.UUID) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[unitID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return u.FacilityID, nil
}

func (m *MemoryStore) ListResidents(_ context.Context, q ResidentQuery) ([]Resident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Resident{}
	for _, r := range m.residents {
		if r.FacilityID != q.FacilityID {
			continue
		}
		if len(q.UnitIDs) > 0 && !containsUUID(q.UnitIDs, r.UnitID) {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (m *MemoryStore) ListAudit(_ context.Context, q AuditQuery) ([]AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []AuditEvent{}
	for _, e := range m.audit {
		if e.FacilityID != q.FacilityID || !inRange(e.CreatedAt, q.From, q.To) {
			continue
		}
		if len(q.Actions) > 0 && !slices.Contains(q.Actions, e.Action) {
			continue
		}
		if len(q.ActorIDs) > 0 && !containsUUID(q.ActorIDs, e.ActorID) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsUUID(set []uuid.UUID, v *uuid.UUID) bool {
	return v != nil && slices.Contains(set, *v)
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func byTimeThenID(ti, tj time.Time, idi, idj uuid.UUID) bool {
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return bytes.Compare(idi[:], idj[:]) < 0
}

func ptr[T any](v T) *T { return &v }

// ---- assessments ----

type memAssessments struct{ m *MemoryStore }

func (s *memAssessments) Create(_ context.Context, a Assessment) (Assessment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AssessmentDraft
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.assessments[a.ID]; exists {
		return Assessment{}, ErrConflict
	}
	s.m.assessments[a.ID] = a
	return a, nil
}

func (s *memAssessments) Get(_ context.Context, facilityID, id uuid.UUID) (Assessment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	a, ok := s.m.assessments[id]
	if !ok || a.FacilityID != facilityID {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (s *memAssessments) List(_ context.Context, f AssessmentFilter) ([]Assessment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []Assessment{}
	for _, a := range s.m.assessments {
		if a.FacilityID != f.FacilityID || !inRange(a.AssessedAt, f.From, f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		if len(f.RiskTiers) > 0 && (a.RiskTier == nil || !slices.Contains(f.RiskTiers, *a.RiskTier)) {
			continue
		}
		if len(f.UnitIDs) > 0 && !containsUUID(f.UnitIDs, a.UnitID) {
			continue
		}
		if f.AssignedTo != nil && (a.AssignedTo == nil || *a.AssignedTo != *f.AssignedTo) {
			continue
		}
		if f.AssignedTo == nil && f.Unassigned && a.AssignedTo != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return byTimeThenID(out[i].AssessedAt, out[j].AssessedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// mutate applies fn to the row under the write lock. fn returns false when
// its precondition does not hold.
func (s *memAssessments) mutate(facilityID, id uuid.UUID, fn func(*Assessment) bool) (Assessment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.assessments[id]
	if !ok || a.FacilityID != facilityID {
		return Assessment{}, ErrConflict
	}
	if !fn(&a) {
		return Assessment{}, ErrConflict
	}
	s.m.assessments[id] = a
	return a, nil
}

func (s *memAssessments) Claim(_ context.Context, facilityID, id, assignee uuid.UUID, now time.Time) (Assessment, error) {
	return s.mutate(facilityID, id, func(a *Assessment) bool {
		if a.AssignedTo != nil {
			return false
		}
		a.AssignedTo = ptr(assignee)
		a.UpdatedAt = now
		return true
	})
}

func (s *memAssessments) Unassign(_ context.Context, facilityID, id, expected uuid.UUID, now time.Time) (Assessment, error) {
	return s.mutate(facilityID, id, func(a *Assessment) bool {
		if a.AssignedTo == nil || *a.AssignedTo != expected {
			return false
		}
		a.AssignedTo = nil
		a.UpdatedAt = now
		return true
	})
}

func (s *memAssessments) Transition(_ context.Context, facilityID, id uuid.UUID, from, to AssessmentStatus, claimant *uuid.UUID, now time.Time) (Assessment, error) {
	return s.mutate(facilityID, id, func(a *Assessment) bool {
		if a.Status != from {
			return false
		}
		a.Status = to
		if claimant != nil && a.AssignedTo == nil {
			a.AssignedTo = ptr(*claimant)
		}
		if to == AssessmentCompleted {
			a.CompletedAt = ptr(now)
		}
		a.UpdatedAt = now
		return true
	})
}

func (s *memAssessments) ApplyScore(_ context.Context, facilityID, id uuid.UUID, tier RiskTier, now time.Time) (Assessment, error) {
	a, err := s.mutate(facilityID, id, func(a *Assessment) bool {
		a.RiskTier = ptr(tier)
		if a.Status == AssessmentDraft {
			a.Status = AssessmentNeedsReview
		}
		a.UpdatedAt = now
		return true
	})
	if err == ErrConflict {
		return Assessment{}, ErrNotFound
	}
	return a, err
}

// ---- fall events ----

type memFallEvents struct{ m *MemoryStore }

func (s *memFallEvents) Create(_ context.Context, e FallEvent) (FallEvent, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.fallEvents[e.ID]; exists {
		return FallEvent{}, ErrConflict
	}
	s.m.fallEvents[e.ID] = e
	return e, nil
}

func (s *memFallEvents) Get(_ context.Context, facilityID, id uuid.UUID) (FallEvent, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	e, ok := s.m.fallEvents[id]
	if !ok || e.FacilityID != facilityID {
		return FallEvent{}, ErrNotFound
	}
	return e, nil
}

func (s *memFallEvents) List(_ context.Context, f FallEventFilter) ([]FallEvent, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []FallEvent{}
	for _, e := range s.m.fallEvents {
		if e.FacilityID != f.FacilityID || !inRange(e.OccurredAt, f.From, f.To) {
			continue
		}
		if len(f.UnitIDs) > 0 && !containsUUID(f.UnitIDs, e.UnitID) {
			continue
		}
		if f.Open != nil && e.Open() != *f.Open {
			continue
		}
		if f.AssignedTo != nil && (e.AssignedTo == nil || *e.AssignedTo != *f.AssignedTo) {
			continue
		}
		if f.AssignedTo == nil && f.Unassigned && e.AssignedTo != nil {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return byTimeThenID(out[i].OccurredAt, out[j].OccurredAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *memFallEvents) Checks(_ context.Context, eventID uuid.UUID) ([]FallCheck, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []FallCheck{}
	for _, c := range s.m.fallChecks[eventID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckType < out[j].CheckType })
	return out, nil
}

func (s *memFallEvents) SetCheck(_ context.Context, facilityID uuid.UUID, c FallCheck) (FallEvent, FallCheck, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.fallEvents[c.FallEventID]
	if !ok || e.FacilityID != facilityID {
		return FallEvent{}, FallCheck{}, ErrNotFound
	}
	checks := s.m.fallChecks[e.ID]
	if checks == nil {
		checks = map[string]FallCheck{}
		s.m.fallChecks[e.ID] = checks
	}
	if prev, exists := checks[c.CheckType]; exists {
		c.ID = prev.ID
	} else if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	checks[c.CheckType] = c

	completed := 0
	for _, ch := range checks {
		if ch.Completed {
			completed++
		}
	}
	e.CompletedChecks = completed
	e.UpdatedAt = c.UpdatedAt
	s.m.fallEvents[e.ID] = e
	return e, c, nil
}
