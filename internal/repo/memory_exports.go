package repo

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

type memSchedules struct{ m *MemoryStore }

func (s *memSchedules) Create(_ context.Context, sc ExportSchedule) (ExportSchedule, error) {
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, exists := s.m.schedules[sc.ID]; exists {
		return ExportSchedule{}, ErrConflict
	}
	s.m.schedules[sc.ID] = sc
	return sc, nil
}

func (s *memSchedules) Get(_ context.Context, facilityID, id uuid.UUID) (ExportSchedule, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	sc, ok := s.m.schedules[id]
	if !ok || sc.FacilityID != facilityID {
		return ExportSchedule{}, ErrNotFound
	}
	return sc, nil
}

func (s *memSchedules) List(_ context.Context, facilityID uuid.UUID) ([]ExportSchedule, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []ExportSchedule{}
	for _, sc := range s.m.schedules {
		if sc.FacilityID == facilityID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (s *memSchedules) Update(_ context.Context, sc ExportSchedule, expectedNextRun *time.Time) (ExportSchedule, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cur, ok := s.m.schedules[sc.ID]
	if !ok || cur.FacilityID != sc.FacilityID {
		return ExportSchedule{}, ErrNotFound
	}
	if !sameInstant(cur.NextRunAt, expectedNextRun) {
		return ExportSchedule{}, ErrConflict
	}
	// identity and run bookkeeping are not writable here
	sc.CreatedAt = cur.CreatedAt
	sc.CreatedBy = cur.CreatedBy
	sc.LastRunAt = cur.LastRunAt
	s.m.schedules[sc.ID] = sc
	return sc, nil
}

func (s *memSchedules) ListDue(_ context.Context, now time.Time, limit int) ([]ExportSchedule, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []ExportSchedule{}
	for _, sc := range s.m.schedules {
		if sc.Status == ScheduleActive && sc.NextRunAt != nil && !sc.NextRunAt.After(now) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return byTimeThenID(*out[i].NextRunAt, *out[j].NextRunAt, out[i].ID, out[j].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memSchedules) ClaimRun(_ context.Context, id uuid.UUID, expected, next, ranAt time.Time) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sc, ok := s.m.schedules[id]
	if !ok || sc.Status != ScheduleActive || sc.NextRunAt == nil || !sc.NextRunAt.Equal(expected) {
		return false, nil
	}
	sc.NextRunAt = ptr(next)
	sc.LastRunAt = ptr(ranAt)
	sc.UpdatedAt = ranAt
	s.m.schedules[id] = sc
	return true, nil
}

func (s *memSchedules) TouchLastRun(_ context.Context, facilityID, id uuid.UUID, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sc, ok := s.m.schedules[id]
	if !ok || sc.FacilityID != facilityID {
		return ErrNotFound
	}
	sc.LastRunAt = ptr(at)
	sc.UpdatedAt = at
	s.m.schedules[id] = sc
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type memExportLogs struct{ m *MemoryStore }

func (s *memExportLogs) Append(_ context.Context, l ExportLog) (ExportLog, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.logs = append(s.m.logs, l)
	return l, nil
}

func (s *memExportLogs) List(_ context.Context, f ExportLogFilter) ([]ExportLog, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []ExportLog{}
	// walk backwards so equal timestamps keep newest-appended first
	for i := len(s.m.logs) - 1; i >= 0; i-- {
		l := s.m.logs[i]
		if l.FacilityID != f.FacilityID {
			continue
		}
		if f.ScheduleID != nil && (l.ScheduleID == nil || *l.ScheduleID != *f.ScheduleID) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.ExportType != "" && l.ExportType != f.ExportType {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := ClampLogLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTokens struct{ m *MemoryStore }

func (s *memTokens) Create(_ context.Context, t ExportToken) (ExportToken, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.tokens {
		if existing.SecretHash == t.SecretHash {
			return ExportToken{}, ErrConflict
		}
	}
	s.m.tokens[t.ID] = t
	return t, nil
}

func (s *memTokens) GetByHash(_ context.Context, secretHash string) (ExportToken, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, t := range s.m.tokens {
		if t.SecretHash == secretHash {
			return t, nil
		}
	}
	return ExportToken{}, ErrNotFound
}

func (s *memTokens) Delete(_ context.Context, facilityID, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.tokens[id]
	if !ok || t.FacilityID != facilityID {
		return ErrNotFound
	}
	delete(s.m.tokens, id)
	return nil
}

func (s *memTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, t := range s.m.tokens {
		if !t.ExpiresAt.After(before) {
			delete(s.m.tokens, id)
			n++
		}
	}
	return n, nil
}
