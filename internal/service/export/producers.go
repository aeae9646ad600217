package export

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/careflow_backend/internal/repo"
	"github.com/Alijeyrad/careflow_backend/internal/service/exportparams"
	"github.com/Alijeyrad/careflow_backend/internal/service/policy"
	"github.com/Alijeyrad/careflow_backend/internal/service/sla"
)

// Table is one sheet of an export.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any
}

// Producer queries one kind of data with resolved params.
type Producer interface {
	Produce(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error)
}

type ProducerFunc func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error)

func (f ProducerFunc) Produce(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
	return f(ctx, facilityID, p, now)
}

// Producers routes each export type to its producer.
type Producers map[exportparams.Type]Producer

// NewProducers wires the five producers to the data stores. The bundle
// producer dispatches back into the same set.
func NewProducers(db *repo.Client, policies policy.Lookup) Producers {
	ps := Producers{
		exportparams.TypeResidents:      ProducerFunc(residentsProducer(db.Residents)),
		exportparams.TypeAssessments:    ProducerFunc(assessmentsProducer(db.Assessments, policies)),
		exportparams.TypeAudit:          ProducerFunc(auditProducer(db.Audit)),
		exportparams.TypePostFallRollup: ProducerFunc(rollupProducer(db.FallEvents, policies)),
	}
	ps[exportparams.TypeBundle] = ProducerFunc(bundleProducer(ps))
	return ps
}

func (ps Producers) Produce(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
	prod, ok := ps[p.Type()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, p.Type())
	}
	tables, err := prod.Produce(ctx, facilityID, p, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProducer, p.Type(), err)
	}
	return tables, nil
}

// ---------------------------------------------------------------------------
// residents
// ---------------------------------------------------------------------------

func residentsProducer(src repo.ResidentReader) func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
	return func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, _ time.Time) ([]Table, error) {
		rp := p.(*exportparams.ResidentsParams)
		residents, err := src.ListResidents(ctx, repo.ResidentQuery{
			FacilityID: facilityID,
			UnitIDs:    rp.UnitIDs,
			Status:     rp.Status,
		})
		if err != nil {
			return nil, err
		}
		t := Table{Sheet: "Residents", Header: []string{"Resident ID", "Name", "Unit ID", "Status", "Admitted At"}}
		for _, r := range residents {
			t.Rows = append(t.Rows, []any{r.ID.String(), r.FullName, optUUID(r.UnitID), r.Status, r.AdmittedAt})
		}
		return []Table{t}, nil
	}
}

// ---------------------------------------------------------------------------
// assessments
// ---------------------------------------------------------------------------

func assessmentsProducer(src repo.AssessmentStore, policies policy.Lookup) func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
	return func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
		ap := p.(*exportparams.AssessmentsParams)
		pol, err := policies.Get(ctx, facilityID)
		if err != nil {
			return nil, err
		}
		from, to := ap.Bounds(now)
		rows, err := src.List(ctx, repo.AssessmentFilter{
			FacilityID: facilityID,
			Statuses:   ap.Statuses,
			RiskTiers:  ap.RiskTiers,
			UnitIDs:    ap.UnitIDs,
			From:       from,
			To:         to,
		})
		if err != nil {
			return nil, err
		}
		t := Table{Sheet: "Assessments", Header: []string{
			"Assessment ID", "Resident ID", "Unit ID", "Status", "Risk Tier",
			"Assigned To", "Assessed At", "Report Due", "SLA", "Completed At",
		}}
		for _, a := range rows {
			due := sla.ReportDue(a.AssessedAt, pol.ReportTurnaroundHours)
			status := sla.None
			if a.Status != repo.AssessmentCompleted {
				status = sla.Classify(due, now, pol.WarningWindow())
			}
			tier := ""
			if a.RiskTier != nil {
				tier = string(*a.RiskTier)
			}
			t.Rows = append(t.Rows, []any{
				a.ID.String(), a.ResidentID.String(), optUUID(a.UnitID), string(a.Status), tier,
				optUUID(a.AssignedTo), a.AssessedAt, due, string(status), optTime(a.CompletedAt),
			})
		}
		return []Table{t}, nil
	}
}

// ---------------------------------------------------------------------------
// audit
// ---------------------------------------------------------------------------

func auditProducer(src repo.AuditReader) func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
	return func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
		ap := p.(*exportparams.AuditParams)
		from, to := ap.Bounds(now)
		events, err := src.ListAudit(ctx, repo.AuditQuery{
			FacilityID: facilityID,
			From:       from,
			To:         to,
			Actions:    ap.Actions,
			ActorIDs:   ap.ActorIDs,
		})
		if err != nil {
			return nil, err
		}
		t := Table{Sheet: "Audit", Header: []string{"Event ID", "At", "Actor ID", "Action", "Entity Type", "Entity ID"}}
		for _, e := range events {
			t.Rows = append(t.Rows, []any{e.ID.String(), e.CreatedAt, optUUID(e.ActorID), e.Action, e.EntityType, e.EntityID})
		}
		return []Table{t}, nil
	}
}

// ---------------------------------------------------------------------------
// post-fall rollup
// ---------------------------------------------------------------------------

type rollupRow struct {
	group   string
	falls   int
	closed  int
	overdue int
}

func rollupProducer(src repo.FallEventStore, policies policy.Lookup) func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
	return func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
		rp := p.(*exportparams.PostFallRollupParams)
		pol, err := policies.Get(ctx, facilityID)
		if err != nil {
			return nil, err
		}
		from, to := rp.Bounds(now)
		events, err := src.List(ctx, repo.FallEventFilter{
			FacilityID: facilityID,
			UnitIDs:    rp.UnitIDs,
			From:       from,
			To:         to,
		})
		if err != nil {
			return nil, err
		}

		groups := map[string]*rollupRow{}
		for _, e := range events {
			key := e.Severity
			if rp.GroupBy == exportparams.GroupByUnit {
				key = optUUID(e.UnitID)
				if key == "" {
					key = "unassigned"
				}
			}
			row, ok := groups[key]
			if !ok {
				row = &rollupRow{group: key}
				groups[key] = row
			}
			row.falls++
			if !e.Open() {
				row.closed++
			} else if sla.Classify(sla.FollowupDue(e.OccurredAt, pol.FollowupDays), now, pol.WarningWindow()) == sla.Overdue {
				row.overdue++
			}
		}

		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		header := "Unit ID"
		if rp.GroupBy == exportparams.GroupBySeverity {
			header = "Severity"
		}
		t := Table{Sheet: "Post-Fall Rollup", Header: []string{header, "Falls", "Closed", "Open", "Overdue", "Completion %"}}
		for _, k := range keys {
			r := groups[k]
			t.Rows = append(t.Rows, []any{r.group, r.falls, r.closed, r.falls - r.closed, r.overdue, CompletionRate(r.closed, r.falls).String()})
		}
		return []Table{t}, nil
	}
}

// CompletionRate is closed/total as a percentage with one decimal place.
func CompletionRate(closed, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero.Round(1)
	}
	return decimal.NewFromInt(int64(closed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
}

// ---------------------------------------------------------------------------
// bundle
// ---------------------------------------------------------------------------

func bundleProducer(ps Producers) func(context.Context, uuid.UUID, exportparams.Params, time.Time) ([]Table, error) {
	return func(ctx context.Context, facilityID uuid.UUID, p exportparams.Params, now time.Time) ([]Table, error) {
		bp := p.(*exportparams.BundleParams)
		var out []Table
		for _, kind := range bp.Include {
			if kind == exportparams.TypeBundle || !slices.Contains(exportparams.Types, kind) {
				continue
			}
			prod, ok := ps[kind]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
			}
			tables, err := prod.Produce(ctx, facilityID, bp.Part(kind), now)
			if err != nil {
				return nil, fmt.Errorf("bundle part %s: %w", kind, err)
			}
			out = append(out, tables...)
		}
		return out, nil
	}
}

func optUUID(u *uuid.UUID) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func optTime(t *time.Time) any {
	if t == nil {
		return ""
	}
	return *t
}
