// Package changelog appends audit entries for company-scoped mutations.
// Writes are best-effort: the primary mutation never fails because the
// audit insert did.
package changelog

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

// Store persists change-log entries.
type Store interface {
	Insert(ctx context.Context, entry models.ChangeLogEntry) error
}

// Field pairs a tracked field's human-readable label with its old and new
// values. Fields without a Field entry are never logged.
type Field struct {
	Label string
	Old   any
	New   any
}

// Recorder diffs tracked fields and appends one entry per changed field.
type Recorder struct {
	store  Store
	logger ectologger.Logger
}

func NewRecorder(store Store, logger ectologger.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// RecordIfChanged appends one entry per field whose stringified old and new
// values differ. Failures are logged and swallowed.
func (r *Recorder) RecordIfChanged(ctx context.Context, companyID int64, entityType string, entityID *int64, userID *string, fields []Field) {
	for _, f := range fields {
		oldVal := stringify(f.Old)
		newVal := stringify(f.New)
		if oldVal == newVal {
			continue
		}
		r.append(ctx, models.ChangeLogEntry{
			CompanyID:  companyID,
			EntityType: entityType,
			EntityID:   entityID,
			Action:     models.ChangeActionUpdated,
			Label:      f.Label,
			OldValue:   &oldVal,
			NewValue:   &newVal,
		}, userID)
	}
}

// RecordStatusChange appends a single entry for a task status transition.
// No-op when the status did not change.
func (r *Recorder) RecordStatusChange(ctx context.Context, companyID, taskID int64, userID *string, oldStatus, newStatus string) {
	if oldStatus == newStatus {
		return
	}
	r.append(ctx, models.ChangeLogEntry{
		CompanyID:  companyID,
		EntityType: models.ChangeEntityTask,
		EntityID:   &taskID,
		Action:     models.ChangeActionUpdated,
		Label:      "Status geändert",
		OldValue:   &oldStatus,
		NewValue:   &newStatus,
	}, userID)
}

// RecordAction appends a created/deleted style entry with no value diff.
func (r *Recorder) RecordAction(ctx context.Context, companyID int64, entityType string, entityID *int64, userID *string, action, label string) {
	r.append(ctx, models.ChangeLogEntry{
		CompanyID:  companyID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Label:      label,
	}, userID)
}

func (r *Recorder) append(ctx context.Context, entry models.ChangeLogEntry, userID *string) {
	entry.UserID = userID
	if err := r.store.Insert(ctx, entry); err != nil {
		metrics.ChangeLogWriteFailures.Inc()
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"company_id":  entry.CompanyID,
			"entity_type": entry.EntityType,
			"label":       entry.Label,
		}).Error("Failed to write change log entry")
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case *int64:
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%d", *val)
	case *int:
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%d", *val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
