package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julianb233/acre-notebook-lm/internal/airtable"
	"github.com/Julianb233/acre-notebook-lm/internal/model"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/testutil"
)

// fakeSource serves canned tables and records with offset pagination.
type fakeSource struct {
	tables    []airtable.Table
	records   map[string][]airtable.Record // keyed by table id
	pageSize  int
	listCalls map[string]int
	listErr   map[string]error
	created   []map[string]any
	updated   []string
	pushErr   error
}

func newFakeSource(tables ...airtable.Table) *fakeSource {
	return &fakeSource{
		tables:    tables,
		records:   make(map[string][]airtable.Record),
		pageSize:  100,
		listCalls: make(map[string]int),
		listErr:   make(map[string]error),
	}
}

func (f *fakeSource) ListTables(ctx context.Context, baseID string) ([]airtable.Table, error) {
	return f.tables, nil
}

func (f *fakeSource) ListRecords(ctx context.Context, baseID, tableID, offset string) (*airtable.RecordPage, error) {
	f.listCalls[tableID]++
	if err := f.listErr[tableID]; err != nil {
		return nil, err
	}

	all := f.records[tableID]
	start := 0
	if offset != "" {
		start, _ = strconv.Atoi(offset)
	}

	end := start + f.pageSize
	if end > len(all) {
		end = len(all)
	}

	page := &airtable.RecordPage{Records: all[start:end]}
	if end < len(all) {
		page.Offset = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeSource) CreateRecord(ctx context.Context, baseID, tableID string, fields map[string]any) (*airtable.Record, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.created = append(f.created, fields)
	return &airtable.Record{ID: "rec-created", Fields: fields}, nil
}

func (f *fakeSource) UpdateRecord(ctx context.Context, baseID, tableID, recordID string, fields map[string]any) (*airtable.Record, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.updated = append(f.updated, recordID)
	return &airtable.Record{ID: recordID, Fields: fields}, nil
}

// fakeEmbedder fails for any content containing the poison marker.
type fakeEmbedder struct {
	poison string
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.poison != "" && strings.Contains(text, f.poison) {
		return nil, errors.New("embedding provider rejected input")
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-model" }

func makeRecords(n int) []airtable.Record {
	records := make([]airtable.Record, n)
	for i := range records {
		records[i] = airtable.Record{
			ID:     fmt.Sprintf("rec-%03d", i),
			Fields: map[string]any{"Name": fmt.Sprintf("row %d", i)},
		}
	}
	return records
}

func TestSyncBaseDrainsAllPages(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = makeRecords(120)

	engine := NewEngine(db, source, nil, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 120, result.TotalRecords)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Tables, 1)
	assert.Equal(t, TableStatusCompleted, result.Tables[0].Status)

	// 120 records at page size 100 means exactly two fetches.
	assert.Equal(t, 2, source.listCalls["tbl-1"])

	var count int64
	require.NoError(t, db.Model(&model.SyncedRecord{}).Count(&count).Error)
	assert.EqualValues(t, 120, count)
}

func TestSyncBaseIsIdempotent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = makeRecords(10)

	engine := NewEngine(db, source, nil, nil, nil)

	_, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	// Second run over the same data updates in place.
	source.records["tbl-1"][3].Fields["Name"] = "renamed"
	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)
	assert.Equal(t, 10, result.TotalRecords)

	var count int64
	require.NoError(t, db.Model(&model.SyncedRecord{}).Count(&count).Error)
	assert.EqualValues(t, 10, count)

	var row model.SyncedRecord
	require.NoError(t, db.Where("external_id = ?", "rec-003").First(&row).Error)
	assert.Contains(t, row.Content, "renamed")
}

func TestSyncBaseIsolatesMalformedRecord(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(
		airtable.Table{ID: "tbl-1", Name: "Deals"},
		airtable.Table{ID: "tbl-2", Name: "Contacts"},
	)
	records := makeRecords(5)
	records[2].Fields = nil // malformed
	source.records["tbl-1"] = records
	source.records["tbl-2"] = makeRecords(3)

	engine := NewEngine(db, source, nil, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.TotalRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Deals/rec-002")

	require.Len(t, result.Tables, 2)
	assert.Equal(t, TableStatusPartial, result.Tables[0].Status)
	assert.Equal(t, 4, result.Tables[0].SyncedCount)
	assert.Equal(t, TableStatusCompleted, result.Tables[1].Status)
	assert.Equal(t, 3, result.Tables[1].SyncedCount)
}

func TestSyncBaseFetchFailureDoesNotAbortOtherTables(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(
		airtable.Table{ID: "tbl-1", Name: "Deals"},
		airtable.Table{ID: "tbl-2", Name: "Contacts"},
	)
	source.listErr["tbl-1"] = errors.New("upstream 503")
	source.records["tbl-2"] = makeRecords(4)

	engine := NewEngine(db, source, nil, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, TableStatusFailed, result.Tables[0].Status)
	assert.Equal(t, TableStatusCompleted, result.Tables[1].Status)
}

func TestSyncBaseReportsFailureWhenNothingSynced(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.listErr["tbl-1"] = errors.New("upstream down")

	engine := NewEngine(db, source, nil, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.TotalRecords)
	require.Len(t, result.Errors, 1)
}

func TestSyncBaseFiltersTables(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(
		airtable.Table{ID: "tbl-1", Name: "Deals"},
		airtable.Table{ID: "tbl-2", Name: "Contacts"},
	)
	source.records["tbl-1"] = makeRecords(2)
	source.records["tbl-2"] = makeRecords(3)

	engine := NewEngine(db, source, nil, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1", "Contacts")
	require.NoError(t, err)

	require.Len(t, result.Tables, 1)
	assert.Equal(t, "Contacts", result.Tables[0].Name)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Zero(t, source.listCalls["tbl-1"])
}

func TestSyncBaseRejectsUnknownTableFilter(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})

	engine := NewEngine(db, source, nil, nil, nil)

	_, err := engine.SyncBase(context.Background(), "p1", "base-1", "Nope")
	assert.Error(t, err)
}

func TestSyncBaseRequiresPartnerAndBase(t *testing.T) {
	db := testutil.OpenTestDB(t)
	engine := NewEngine(db, newFakeSource(), nil, nil, nil)

	_, err := engine.SyncBase(context.Background(), "", "base-1")
	assert.Error(t, err)

	_, err = engine.SyncBase(context.Background(), "p1", "")
	assert.Error(t, err)
}

func TestSyncBaseOverwritesStatusRow(t *testing.T) {
	db := testutil.OpenTestDB(t)
	statusSvc := service.NewSyncStatusService(db)

	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = makeRecords(5)

	engine := NewEngine(db, source, nil, statusSvc, nil)

	_, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	source.records["tbl-1"] = makeRecords(8)
	_, err = engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.SyncStatus{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	status, err := statusSvc.Get("p1", "base-1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Success)
	assert.Equal(t, 8, status.TotalRecords)
	assert.Equal(t, 1, status.TableCount)
}

func TestSyncBaseEmbedsRecords(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = makeRecords(3)

	embedder := &fakeEmbedder{}
	engine := NewEngine(db, source, embedder, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, 3, embedder.calls)

	var row model.SyncedRecord
	require.NoError(t, db.Where("external_id = ?", "rec-000").First(&row).Error)
	assert.Equal(t, "[0.1,0.2,0.3]", row.Embedding)
	assert.Equal(t, "fake-model", row.EmbeddingModel)
}

func TestSyncBaseEmbeddingFailureFailsOnlyThatRecord(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = []airtable.Record{
		{ID: "rec-a", Fields: map[string]any{"Name": "fine"}},
		{ID: "rec-b", Fields: map[string]any{"Name": "poison pill"}},
		{ID: "rec-c", Fields: map[string]any{"Name": "also fine"}},
	}

	engine := NewEngine(db, source, &fakeEmbedder{poison: "poison"}, nil, nil)

	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rec-b")

	// The failed record's data is still stored, just without a vector.
	var count int64
	require.NoError(t, db.Model(&model.SyncedRecord{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	var row model.SyncedRecord
	require.NoError(t, db.Where("external_id = ?", "rec-b").First(&row).Error)
	assert.Empty(t, row.Embedding)
	assert.Contains(t, row.Content, "poison pill")

	// ReembedTable repairs it once the provider recovers.
	engine = NewEngine(db, source, &fakeEmbedder{}, nil, nil)
	reembed, err := engine.ReembedTable(context.Background(), "p1", "base-1", "Deals")
	require.NoError(t, err)
	assert.Equal(t, 3, reembed.Updated)

	require.NoError(t, db.Where("external_id = ?", "rec-b").First(&row).Error)
	assert.Equal(t, "[0.1,0.2,0.3]", row.Embedding)
}

func TestSyncBaseEmbeddingFailureKeepsPriorEmbedding(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = []airtable.Record{
		{ID: "rec-a", Fields: map[string]any{"Name": "poison later"}},
	}

	engine := NewEngine(db, source, &fakeEmbedder{}, nil, nil)
	_, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	// Re-sync with a failing provider must not wipe the stored vector.
	engine = NewEngine(db, source, &fakeEmbedder{poison: "poison"}, nil, nil)
	result, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	var row model.SyncedRecord
	require.NoError(t, db.Where("external_id = ?", "rec-a").First(&row).Error)
	assert.Equal(t, "[0.1,0.2,0.3]", row.Embedding)
}

func TestReembedTable(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = []airtable.Record{
		{ID: "rec-a", Fields: map[string]any{"Name": "fine"}},
		{ID: "rec-b", Fields: map[string]any{"Name": "poison pill"}},
	}

	// Initial sync without an embedder leaves embeddings empty.
	engine := NewEngine(db, source, nil, nil, nil)
	_, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	engine = NewEngine(db, source, &fakeEmbedder{poison: "poison"}, nil, nil)
	result, err := engine.ReembedTable(context.Background(), "p1", "base-1", "Deals")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rec-b")

	var row model.SyncedRecord
	require.NoError(t, db.Where("external_id = ?", "rec-a").First(&row).Error)
	assert.Equal(t, "[0.1,0.2,0.3]", row.Embedding)
	assert.Equal(t, "fake-model", row.EmbeddingModel)
}

func TestReembedTableRequiresEmbedder(t *testing.T) {
	db := testutil.OpenTestDB(t)
	engine := NewEngine(db, newFakeSource(), nil, nil, nil)

	_, err := engine.ReembedTable(context.Background(), "p1", "base-1", "Deals")
	assert.Error(t, err)
}

func TestPushRecordCreatesOrUpdates(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource()
	engine := NewEngine(db, source, nil, nil, nil)

	created := engine.PushRecord(context.Background(), &PushRequest{
		BaseID:  "base-1",
		TableID: "tbl-1",
		Fields:  map[string]any{"Name": "new row"},
	})
	assert.True(t, created.Success)
	assert.Equal(t, "rec-created", created.RecordID)
	assert.Len(t, source.created, 1)

	updated := engine.PushRecord(context.Background(), &PushRequest{
		BaseID:   "base-1",
		TableID:  "tbl-1",
		RecordID: "rec-xyz",
		Fields:   map[string]any{"Name": "edited"},
	})
	assert.True(t, updated.Success)
	assert.Equal(t, "rec-xyz", updated.RecordID)
	assert.Equal(t, []string{"rec-xyz"}, source.updated)
}

func TestPushRecordReportsFailure(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource()
	source.pushErr = errors.New("422 unprocessable")
	engine := NewEngine(db, source, nil, nil, nil)

	result := engine.PushRecord(context.Background(), &PushRequest{
		BaseID:  "base-1",
		TableID: "tbl-1",
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "422")
}

func TestDeleteTableRecords(t *testing.T) {
	db := testutil.OpenTestDB(t)
	source := newFakeSource(airtable.Table{ID: "tbl-1", Name: "Deals"})
	source.records["tbl-1"] = makeRecords(6)

	engine := NewEngine(db, source, nil, nil, nil)
	_, err := engine.SyncBase(context.Background(), "p1", "base-1")
	require.NoError(t, err)

	deleted, err := engine.DeleteTableRecords(context.Background(), "p1", "base-1", "Deals")
	require.NoError(t, err)
	assert.EqualValues(t, 6, deleted)

	var count int64
	require.NoError(t, db.Model(&model.SyncedRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFlattenFieldsIsSortedAndStable(t *testing.T) {
	fields := map[string]any{"Zeta": 1, "Alpha": "x", "Mid": true}

	first := flattenFields(fields)
	second := flattenFields(fields)

	assert.Equal(t, first, second)
	assert.Equal(t, "Alpha: x\nMid: true\nZeta: 1", first)
}
