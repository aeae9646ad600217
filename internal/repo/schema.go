package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	TableAssessments     = "assessments"
	TableFallEvents      = "fall_events"
	TableFallEventChecks = "fall_event_checks"
	TableUnits           = "units"
	TableResidents       = "residents"
	TableAuditEvents     = "audit_events"
	TableExportSchedules = "export_schedules"
	TableExportLogs      = "export_logs"
	TableExportTokens    = "export_tokens"
)

var (
	// AssessmentsColumns holds the columns for the "assessments" table.
	AssessmentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "resident_id", Type: field.TypeUUID},
		{Name: "unit_id", Type: field.TypeUUID, Nullable: true},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"draft", "needs_review", "in_review", "completed"}, Default: "draft"},
		{Name: "risk_tier", Type: field.TypeEnum, Nullable: true, Enums: []string{"low", "moderate", "high"}},
		{Name: "assigned_to", Type: field.TypeUUID, Nullable: true},
		{Name: "assessed_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// AssessmentsTable holds the schema information for the "assessments" table.
	AssessmentsTable = &schema.Table{
		Name:       TableAssessments,
		Columns:    AssessmentsColumns,
		PrimaryKey: []*schema.Column{AssessmentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "assessment_facility_id_status", Columns: []*schema.Column{AssessmentsColumns[1], AssessmentsColumns[4]}},
			{Name: "assessment_assigned_to", Columns: []*schema.Column{AssessmentsColumns[6]}},
		},
	}
	// FallEventsColumns holds the columns for the "fall_events" table.
	FallEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "resident_id", Type: field.TypeUUID},
		{Name: "unit_id", Type: field.TypeUUID, Nullable: true},
		{Name: "severity", Type: field.TypeString, Size: 32},
		{Name: "occurred_at", Type: field.TypeTime},
		{Name: "assigned_to", Type: field.TypeUUID, Nullable: true},
		{Name: "required_checks", Type: field.TypeInt, Default: 7},
		{Name: "completed_checks", Type: field.TypeInt, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// FallEventsTable holds the schema information for the "fall_events" table.
	FallEventsTable = &schema.Table{
		Name:       TableFallEvents,
		Columns:    FallEventsColumns,
		PrimaryKey: []*schema.Column{FallEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "fallevent_facility_id_occurred_at", Columns: []*schema.Column{FallEventsColumns[1], FallEventsColumns[5]}},
		},
	}
	// FallEventChecksColumns holds the columns for the "fall_event_checks" table.
	FallEventChecksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "fall_event_id", Type: field.TypeUUID},
		{Name: "check_type", Type: field.TypeString, Size: 64},
		{Name: "completed", Type: field.TypeBool, Default: false},
		{Name: "completed_by", Type: field.TypeUUID, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// FallEventChecksTable holds the schema information for the "fall_event_checks" table.
	FallEventChecksTable = &schema.Table{
		Name:       TableFallEventChecks,
		Columns:    FallEventChecksColumns,
		PrimaryKey: []*schema.Column{FallEventChecksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "fall_event_checks_fall_events_checks",
				Columns:    []*schema.Column{FallEventChecksColumns[1]},
				RefColumns: []*schema.Column{FallEventsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "falleventcheck_fall_event_id_check_type", Unique: true, Columns: []*schema.Column{FallEventChecksColumns[1], FallEventChecksColumns[2]}},
		},
	}
	// UnitsColumns holds the columns for the "units" table.
	UnitsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Size: 128},
	}
	// UnitsTable holds the schema information for the "units" table.
	UnitsTable = &schema.Table{
		Name:       TableUnits,
		Columns:    UnitsColumns,
		PrimaryKey: []*schema.Column{UnitsColumns[0]},
	}
	// ResidentsColumns holds the columns for the "residents" table.
	ResidentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "unit_id", Type: field.TypeUUID, Nullable: true},
		{Name: "full_name", Type: field.TypeString, Size: 256},
		{Name: "status", Type: field.TypeString, Size: 32, Default: "active"},
		{Name: "admitted_at", Type: field.TypeTime},
	}
	// ResidentsTable holds the schema information for the "residents" table.
	ResidentsTable = &schema.Table{
		Name:       TableResidents,
		Columns:    ResidentsColumns,
		PrimaryKey: []*schema.Column{ResidentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "resident_facility_id", Columns: []*schema.Column{ResidentsColumns[1]}},
		},
	}
	// AuditEventsColumns holds the columns for the "audit_events" table.
	AuditEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "actor_id", Type: field.TypeUUID, Nullable: true},
		{Name: "action", Type: field.TypeString, Size: 64},
		{Name: "entity_type", Type: field.TypeString, Size: 64},
		{Name: "entity_id", Type: field.TypeString, Size: 64},
		{Name: "created_at", Type: field.TypeTime},
	}
	// AuditEventsTable holds the schema information for the "audit_events" table.
	AuditEventsTable = &schema.Table{
		Name:       TableAuditEvents,
		Columns:    AuditEventsColumns,
		PrimaryKey: []*schema.Column{AuditEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "auditevent_facility_id_created_at", Columns: []*schema.Column{AuditEventsColumns[1], AuditEventsColumns[6]}},
		},
	}
	// ExportSchedulesColumns holds the columns for the "export_schedules" table.
	ExportSchedulesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Size: 128},
		{Name: "export_type", Type: field.TypeEnum, Enums: []string{"residents", "assessments", "audit", "bundle", "post_fall_rollup"}},
		{Name: "frequency", Type: field.TypeEnum, Enums: []string{"daily", "weekly"}},
		{Name: "day_of_week", Type: field.TypeInt, Nullable: true},
		{Name: "hour", Type: field.TypeInt},
		{Name: "minute", Type: field.TypeInt},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"active", "paused"}, Default: "active"},
		{Name: "params", Type: field.TypeJSON},
		{Name: "expires_hours", Type: field.TypeInt, Default: 72},
		{Name: "last_run_at", Type: field.TypeTime, Nullable: true},
		{Name: "next_run_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_by", Type: field.TypeUUID, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ExportSchedulesTable holds the schema information for the "export_schedules" table.
	ExportSchedulesTable = &schema.Table{
		Name:       TableExportSchedules,
		Columns:    ExportSchedulesColumns,
		PrimaryKey: []*schema.Column{ExportSchedulesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "exportschedule_facility_id", Columns: []*schema.Column{ExportSchedulesColumns[1]}},
			{Name: "exportschedule_status_next_run_at", Columns: []*schema.Column{ExportSchedulesColumns[8], ExportSchedulesColumns[12]}},
		},
	}
	// ExportLogsColumns holds the columns for the "export_logs" table.
	ExportLogsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "schedule_id", Type: field.TypeUUID, Nullable: true},
		{Name: "export_type", Type: field.TypeString, Size: 32},
		{Name: "params", Type: field.TypeJSON},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"success", "failed"}},
		{Name: "error", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "token_id", Type: field.TypeUUID, Nullable: true},
		{Name: "row_count", Type: field.TypeInt, Default: 0},
		{Name: "duration_ms", Type: field.TypeInt64, Default: 0},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ExportLogsTable holds the schema information for the "export_logs" table.
	ExportLogsTable = &schema.Table{
		Name:       TableExportLogs,
		Columns:    ExportLogsColumns,
		PrimaryKey: []*schema.Column{ExportLogsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "export_logs_export_schedules_logs",
				Columns:    []*schema.Column{ExportLogsColumns[2]},
				RefColumns: []*schema.Column{ExportSchedulesColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "exportlog_facility_id_created_at", Columns: []*schema.Column{ExportLogsColumns[1], ExportLogsColumns[10]}},
		},
	}
	// ExportTokensColumns holds the columns for the "export_tokens" table.
	ExportTokensColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "facility_id", Type: field.TypeUUID},
		{Name: "export_type", Type: field.TypeString, Size: 32},
		{Name: "params", Type: field.TypeJSON},
		{Name: "secret_hash", Type: field.TypeString, Size: 64},
		{Name: "artifact_key", Type: field.TypeString, Nullable: true, Size: 512},
		{Name: "schedule_id", Type: field.TypeUUID, Nullable: true},
		{Name: "created_by", Type: field.TypeUUID, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "expires_at", Type: field.TypeTime},
	}
	// ExportTokensTable holds the schema information for the "export_tokens" table.
	ExportTokensTable = &schema.Table{
		Name:       TableExportTokens,
		Columns:    ExportTokensColumns,
		PrimaryKey: []*schema.Column{ExportTokensColumns[0]},
		Indexes: []*schema.Index{
			{Name: "exporttoken_secret_hash", Unique: true, Columns: []*schema.Column{ExportTokensColumns[4]}},
			{Name: "exporttoken_expires_at", Columns: []*schema.Column{ExportTokensColumns[9]}},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		AssessmentsTable,
		FallEventsTable,
		FallEventChecksTable,
		UnitsTable,
		ResidentsTable,
		AuditEventsTable,
		ExportSchedulesTable,
		ExportLogsTable,
		ExportTokensTable,
	}
)

func init() {
	FallEventChecksTable.ForeignKeys[0].RefTable = FallEventsTable
	ExportLogsTable.ForeignKeys[0].RefTable = ExportSchedulesTable
}

// Schema runs migrations for the Postgres driver. It is a no-op for the
// in-memory client.
type Schema struct {
	drv dialect.Driver
}

// Create creates all schema resources.
func (s *Schema) Create(ctx context.Context, opts ...schema.MigrateOption) error {
	if s == nil || s.drv == nil {
		return nil
	}
	migrate, err := schema.NewMigrate(s.drv, opts...)
	if err != nil {
		return fmt.Errorf("repo/migrate: %w", err)
	}
	return migrate.Create(ctx, Tables...)
}
