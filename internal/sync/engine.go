// Package sync keeps the external tabular source consistent with the local
// store: paginated pull with idempotent upsert, re-embedding, push-back, and
// per-record failure isolation.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Julianb233/acre-notebook-lm/internal/airtable"
	"github.com/Julianb233/acre-notebook-lm/internal/model"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/webhook"
)

// TabularSource is the external tabular API dependency.
type TabularSource interface {
	ListTables(ctx context.Context, baseID string) ([]airtable.Table, error)
	ListRecords(ctx context.Context, baseID, tableID, offset string) (*airtable.RecordPage, error)
	CreateRecord(ctx context.Context, baseID, tableID string, fields map[string]any) (*airtable.Record, error)
	UpdateRecord(ctx context.Context, baseID, tableID, recordID string, fields map[string]any) (*airtable.Record, error)
}

// Embedder is the embedding dependency (narrow interface, avoids a package cycle).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	GetModel() string
}

// Engine runs sync operations against one tabular source.
type Engine struct {
	db         *gorm.DB
	source     TabularSource
	embedder   Embedder // nil skips embedding; records stay retrievable after ReembedTable
	status     *service.SyncStatusService
	dispatcher *webhook.Dispatcher // optional, notifies automations after a run
}

// NewEngine creates a sync engine.
func NewEngine(db *gorm.DB, source TabularSource, embedder Embedder, status *service.SyncStatusService, dispatcher *webhook.Dispatcher) *Engine {
	return &Engine{
		db:         db,
		source:     source,
		embedder:   embedder,
		status:     status,
		dispatcher: dispatcher,
	}
}

// SyncBase pulls every table of one base (or the named subset) into the local
// store. Each record is upserted independently: one record's failure is
// recorded in the table's error list and never aborts the remaining records
// or tables. After the run the last-sync-status row for the source is
// overwritten with the aggregate outcome.
func (e *Engine) SyncBase(ctx context.Context, partnerID, baseID string, tables ...string) (*SyncResult, error) {
	if partnerID == "" {
		return nil, fmt.Errorf("partner id is required for synced records")
	}
	if baseID == "" {
		return nil, fmt.Errorf("base id is required")
	}

	schema, err := e.source.ListTables(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("failed to discover schema: %w", err)
	}

	selected := filterTables(schema, tables)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no matching tables in base %s", baseID)
	}

	result := &SyncResult{}
	for _, table := range selected {
		tableResult, tableErrors := e.syncTable(ctx, partnerID, baseID, table)
		result.Tables = append(result.Tables, tableResult)
		result.TotalRecords += tableResult.SyncedCount
		result.Errors = append(result.Errors, tableErrors...)
	}

	result.Success = result.TotalRecords > 0

	e.persistStatus(partnerID, baseID, result)
	e.notify(ctx, partnerID, baseID, result)

	logx.Info("✅ Sync run finished: base=%s, tables=%d, records=%d, errors=%d",
		baseID, len(result.Tables), result.TotalRecords, len(result.Errors))

	return result, nil
}

// syncTable drains all pages of one table into memory, then upserts records
// one by one.
func (e *Engine) syncTable(ctx context.Context, partnerID, baseID string, table airtable.Table) (TableResult, []string) {
	records, err := e.drainTable(ctx, baseID, table.ID)
	if err != nil {
		logx.Error("Failed to fetch records for table %s: %v", table.Name, err)
		return TableResult{
			Name:   table.Name,
			Status: TableStatusFailed,
			Error:  err.Error(),
		}, []string{fmt.Sprintf("%s: %v", table.Name, err)}
	}

	var (
		synced int
		errs   []string
	)

	for _, record := range records {
		if err := e.upsertRecord(ctx, partnerID, baseID, table, record); err != nil {
			errs = append(errs, fmt.Sprintf("%s/%s: %v", table.Name, record.ID, err))
			continue
		}
		synced++
	}

	result := TableResult{
		Name:        table.Name,
		SyncedCount: synced,
	}
	switch {
	case len(errs) == 0:
		result.Status = TableStatusCompleted
	case synced > 0:
		result.Status = TableStatusPartial
		result.Error = errs[0]
	default:
		result.Status = TableStatusFailed
		result.Error = errs[0]
	}

	logx.Info("Table %s synced: records=%d, errors=%d", table.Name, synced, len(errs))
	return result, errs
}

// drainTable follows the opaque offset token until the source reports no
// further pages.
func (e *Engine) drainTable(ctx context.Context, baseID, tableID string) ([]airtable.Record, error) {
	var (
		records []airtable.Record
		offset  string
	)

	for {
		page, err := e.source.ListRecords(ctx, baseID, tableID, offset)
		if err != nil {
			return nil, err
		}

		records = append(records, page.Records...)

		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// upsertRecord stores one external record, keyed by the composite natural key
// so repeated syncs update in place instead of duplicating.
func (e *Engine) upsertRecord(ctx context.Context, partnerID, baseID string, table airtable.Table, record airtable.Record) error {
	if record.ID == "" {
		return fmt.Errorf("record has no external id")
	}
	if len(record.Fields) == 0 {
		return fmt.Errorf("record has no fields")
	}

	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	content := flattenFields(record.Fields)

	row := &model.SyncedRecord{
		PartnerID:       partnerID,
		ExternalID:      record.ID,
		BaseID:          baseID,
		TableID:         table.ID,
		SourceTableName: table.Name,
		Fields:          string(fieldsJSON),
		Content:         content,
		CreatedAtSource: record.CreatedTime,
		SyncedAt:        time.Now(),
	}

	// An embedding failure does not discard the fetched data: the row is
	// stored without a vector and reported as a record error, and
	// ReembedTable can fill the vector in later.
	var embedErr error
	if e.embedder != nil {
		vector, err := e.embedder.Embed(ctx, content)
		if err != nil {
			embedErr = fmt.Errorf("failed to embed record: %w", err)
		} else if embJSON, err := json.Marshal(vector); err != nil {
			embedErr = fmt.Errorf("failed to encode embedding: %w", err)
		} else {
			row.Embedding = string(embJSON)
			row.EmbeddingModel = e.embedder.GetModel()
		}
	}

	// Without a fresh vector, leave any previously stored embedding in place.
	assigned := []string{"partner_id", "table_name", "fields", "content", "synced_at", "updated_at"}
	if row.Embedding != "" {
		assigned = append(assigned, "embedding", "embedding_model")
	}

	err = e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}, {Name: "base_id"}, {Name: "table_id"}},
		DoUpdates: clause.AssignmentColumns(assigned),
	}).Create(row).Error
	if err != nil {
		return err
	}
	return embedErr
}

// ReembedTable regenerates embeddings for every already-synced record of one
// table, in place. Used after an embedding model change or when embeddings
// were skipped on initial sync. Record failures are isolated, same as sync.
func (e *Engine) ReembedTable(ctx context.Context, partnerID, baseID, tableName string) (*ReembedResult, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	var records []model.SyncedRecord
	if err := e.db.WithContext(ctx).
		Where("partner_id = ? AND base_id = ? AND table_name = ?", partnerID, baseID, tableName).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load synced records: %w", err)
	}

	result := &ReembedResult{}
	for i := range records {
		vector, err := e.embedder.Embed(ctx, records[i].Content)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", tableName, records[i].ExternalID, err))
			continue
		}

		embJSON, err := json.Marshal(vector)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", tableName, records[i].ExternalID, err))
			continue
		}

		err = e.db.WithContext(ctx).Model(&model.SyncedRecord{}).
			Where("id = ?", records[i].ID).
			Updates(map[string]any{
				"embedding":       string(embJSON),
				"embedding_model": e.embedder.GetModel(),
			}).Error
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", tableName, records[i].ExternalID, err))
			continue
		}

		result.Updated++
	}

	logx.Info("✅ Re-embedded table %s: updated=%d, errors=%d", tableName, result.Updated, len(result.Errors))
	return result, nil
}

// PushRecord creates or updates one external record. Expected to be called
// interactively, so it reports the outcome instead of returning an error.
func (e *Engine) PushRecord(ctx context.Context, req *PushRequest) *PushResult {
	if req.BaseID == "" || req.TableID == "" {
		return &PushResult{Success: false, Error: "base id and table id are required"}
	}

	var (
		record *airtable.Record
		err    error
	)

	if req.RecordID == "" {
		record, err = e.source.CreateRecord(ctx, req.BaseID, req.TableID, req.Fields)
	} else {
		record, err = e.source.UpdateRecord(ctx, req.BaseID, req.TableID, req.RecordID, req.Fields)
	}

	if err != nil {
		logx.Warn("Push to tabular source failed: %v", err)
		return &PushResult{Success: false, Error: err.Error()}
	}

	return &PushResult{Success: true, RecordID: record.ID}
}

// DeleteTableRecords removes every synced record of one table and returns the
// count removed.
func (e *Engine) DeleteTableRecords(ctx context.Context, partnerID, baseID, tableName string) (int64, error) {
	result := e.db.WithContext(ctx).
		Where("partner_id = ? AND base_id = ? AND table_name = ?", partnerID, baseID, tableName).
		Delete(&model.SyncedRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete synced records: %w", result.Error)
	}

	logx.Info("Deleted %d synced records from table %s", result.RowsAffected, tableName)
	return result.RowsAffected, nil
}

// persistStatus overwrites the single last-sync-status row for the source.
func (e *Engine) persistStatus(partnerID, baseID string, result *SyncResult) {
	if e.status == nil {
		return
	}

	firstError := ""
	if len(result.Errors) > 0 {
		firstError = result.Errors[0]
	}

	err := e.status.Upsert(&model.SyncStatus{
		PartnerID:    partnerID,
		BaseID:       baseID,
		Success:      result.Success,
		TotalRecords: result.TotalRecords,
		TableCount:   len(result.Tables),
		FirstError:   firstError,
		FinishedAt:   time.Now(),
	})
	if err != nil {
		logx.Error("Failed to persist sync status: %v", err)
	}
}

// notify tells downstream automations the source changed.
func (e *Engine) notify(ctx context.Context, partnerID, baseID string, result *SyncResult) {
	if e.dispatcher == nil {
		return
	}

	res := e.dispatcher.Trigger(ctx, &webhook.Event{
		Type:      webhook.EventAirtableUpdated,
		PartnerID: partnerID,
		Data: webhook.AirtableUpdatedData{
			BaseID:      baseID,
			TableCount:  len(result.Tables),
			RecordCount: result.TotalRecords,
			Success:     result.Success,
		},
	})
	if !res.Success {
		logx.Warn("Sync notification webhook failed: %s", res.Error)
	}
}

// filterTables restricts the run to a subset of tables by name or id.
func filterTables(schema []airtable.Table, names []string) []airtable.Table {
	if len(names) == 0 {
		return schema
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var selected []airtable.Table
	for _, t := range schema {
		if wanted[t.Name] || wanted[t.ID] {
			selected = append(selected, t)
		}
	}
	return selected
}

// flattenFields renders a field map as sorted "key: value" lines, the text
// that gets embedded and excerpted for tabular records.
func flattenFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	content := ""
	for i, k := range keys {
		if i > 0 {
			content += "\n"
		}
		content += fmt.Sprintf("%s: %v", k, fields[k])
	}
	return content
}
