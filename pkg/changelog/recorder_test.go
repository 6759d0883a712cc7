package changelog

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeStore struct {
	entries []models.ChangeLogEntry
	err     error
}

func (f *fakeStore) Insert(_ context.Context, entry models.ChangeLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func newRecorder(store *fakeStore) *Recorder {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewRecorder(store, logger)
}

func strPtr(s string) *string { return &s }

func TestRecordIfChanged_OnlyChangedFields(t *testing.T) {
	store := &fakeStore{}
	r := newRecorder(store)
	user := "user-1"

	r.RecordIfChanged(context.Background(), 42, models.ChangeEntityCompany, nil, &user, []Field{
		{Label: "Firmenname geändert", Old: "Alt GmbH", New: "Neu GmbH"},
		{Label: "Branche geändert", Old: "IT", New: "IT"},
		{Label: "Telefon geändert", Old: (*string)(nil), New: strPtr("+49 151")},
	})

	require.Len(t, store.entries, 2)
	assert.Equal(t, "Firmenname geändert", store.entries[0].Label)
	assert.Equal(t, "Alt GmbH", *store.entries[0].OldValue)
	assert.Equal(t, "Neu GmbH", *store.entries[0].NewValue)
	assert.Equal(t, "Telefon geändert", store.entries[1].Label)
	assert.Equal(t, "", *store.entries[1].OldValue)
	for _, e := range store.entries {
		assert.Equal(t, int64(42), e.CompanyID)
		assert.Equal(t, models.ChangeActionUpdated, e.Action)
		require.NotNil(t, e.UserID)
		assert.Equal(t, "user-1", *e.UserID)
	}
}

func TestRecordIfChanged_NilOldAndEmptyNewAreEqual(t *testing.T) {
	store := &fakeStore{}
	r := newRecorder(store)

	r.RecordIfChanged(context.Background(), 1, models.ChangeEntityCompany, nil, nil, []Field{
		{Label: "Webseite geändert", Old: (*string)(nil), New: ""},
	})

	assert.Empty(t, store.entries)
}

func TestRecordStatusChange(t *testing.T) {
	store := &fakeStore{}
	r := newRecorder(store)

	r.RecordStatusChange(context.Background(), 42, 7, nil, models.TaskStatusUntouched, models.TaskStatusDone)
	require.Len(t, store.entries, 1)
	assert.Equal(t, models.ChangeEntityTask, store.entries[0].EntityType)
	assert.Equal(t, models.TaskStatusUntouched, *store.entries[0].OldValue)
	assert.Equal(t, models.TaskStatusDone, *store.entries[0].NewValue)

	// Same status is a no-op, not an entry.
	r.RecordStatusChange(context.Background(), 42, 7, nil, models.TaskStatusDone, models.TaskStatusDone)
	assert.Len(t, store.entries, 1)
}

func TestRecord_SwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("relation does not exist")}
	r := newRecorder(store)

	assert.NotPanics(t, func() {
		r.RecordIfChanged(context.Background(), 1, models.ChangeEntityCompany, nil, nil, []Field{
			{Label: "Firmenname geändert", Old: "a", New: "b"},
		})
		r.RecordAction(context.Background(), 1, models.ChangeEntityNote, nil, nil, models.ChangeActionCreated, "Notizen erstellt")
	})
}
