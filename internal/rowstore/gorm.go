package rowstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stashkeeper/internal/models"
)

// requestRow is the wide single-table schema backing the request table when a
// real database replaces the spreadsheet. Every cell stays a string so the
// primitive semantics (exact string match, append-order row numbers) are
// identical across backends.
type requestRow struct {
	RowNumber         int64  `gorm:"column:row_number;primaryKey;autoIncrement"`
	ID                string `gorm:"column:id;index"`
	RequesterID       string `gorm:"column:requester_id;index"`
	RequesterDisplay  string `gorm:"column:requester_display"`
	CharacterName     string `gorm:"column:character_name"`
	ResourceClass     string `gorm:"column:resource_class"`
	ResourceKey       string `gorm:"column:resource_key;index"`
	QuantityRequested string `gorm:"column:quantity_requested"`
	QuantityIssued    string `gorm:"column:quantity_issued"`
	QuantityRemaining string `gorm:"column:quantity_remaining"`
	Priority          string `gorm:"column:priority"`
	SubmittedAt       string `gorm:"column:submitted_at"`
	QueuePosition     string `gorm:"column:queue_position"`
	Status            string `gorm:"column:status;index"`
	ApprovalState     string `gorm:"column:approval_state"`
	EvidenceReference string `gorm:"column:evidence_reference"`
	Notes             string `gorm:"column:notes"`
	ChannelRef        string `gorm:"column:channel_ref"`
	MessageRef        string `gorm:"column:message_ref"`
}

func (requestRow) TableName() string { return "request_rows" }

func (r *requestRow) fields() Fields {
	return Fields{
		models.ColID:                r.ID,
		models.ColRequesterID:       r.RequesterID,
		models.ColRequesterDisplay:  r.RequesterDisplay,
		models.ColCharacterName:     r.CharacterName,
		models.ColResourceClass:     r.ResourceClass,
		models.ColResourceKey:       r.ResourceKey,
		models.ColQuantityRequested: r.QuantityRequested,
		models.ColQuantityIssued:    r.QuantityIssued,
		models.ColQuantityRemaining: r.QuantityRemaining,
		models.ColPriority:          r.Priority,
		models.ColSubmittedAt:       r.SubmittedAt,
		models.ColQueuePosition:     r.QueuePosition,
		models.ColStatus:            r.Status,
		models.ColApprovalState:     r.ApprovalState,
		models.ColEvidenceReference: r.EvidenceReference,
		models.ColNotes:             r.Notes,
		models.ColChannelRef:        r.ChannelRef,
		models.ColMessageRef:        r.MessageRef,
	}
}

var knownColumns = func() map[string]struct{} {
	set := make(map[string]struct{}, len(models.Columns))
	for _, c := range models.Columns {
		set[c] = struct{}{}
	}
	return set
}()

// GormTable implements Table over a relational database through GORM.
type GormTable struct {
	db *gorm.DB
}

// OpenGormTable connects to the configured database and migrates the request
// table. driver is "sqlite" or "postgres".
func OpenGormTable(driver, dsn string) (*GormTable, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported row store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to row store database: %w", err)
	}
	if err := db.AutoMigrate(&requestRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate request table: %w", err)
	}
	return &GormTable{db: db}, nil
}

// NewGormTable wraps an existing GORM connection. The caller is responsible
// for migration.
func NewGormTable(db *gorm.DB) *GormTable {
	return &GormTable{db: db}
}

// DB exposes the underlying connection for shutdown.
func (t *GormTable) DB() *gorm.DB { return t.db }

func (t *GormTable) AppendRow(ctx context.Context, fields Fields) error {
	row := requestRow{
		ID:                fields[models.ColID],
		RequesterID:       fields[models.ColRequesterID],
		RequesterDisplay:  fields[models.ColRequesterDisplay],
		CharacterName:     fields[models.ColCharacterName],
		ResourceClass:     fields[models.ColResourceClass],
		ResourceKey:       fields[models.ColResourceKey],
		QuantityRequested: fields[models.ColQuantityRequested],
		QuantityIssued:    fields[models.ColQuantityIssued],
		QuantityRemaining: fields[models.ColQuantityRemaining],
		Priority:          fields[models.ColPriority],
		SubmittedAt:       fields[models.ColSubmittedAt],
		QueuePosition:     fields[models.ColQueuePosition],
		Status:            fields[models.ColStatus],
		ApprovalState:     fields[models.ColApprovalState],
		EvidenceReference: fields[models.ColEvidenceReference],
		Notes:             fields[models.ColNotes],
		ChannelRef:        fields[models.ColChannelRef],
		MessageRef:        fields[models.ColMessageRef],
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Transient(err)
	}
	return nil
}

func (t *GormTable) GetRow(ctx context.Context, number int) (Fields, error) {
	var row requestRow
	err := t.db.WithContext(ctx).First(&row, "row_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRowNotFound
		}
		return nil, Transient(err)
	}
	return row.fields(), nil
}

func (t *GormTable) UpdateFields(ctx context.Context, number int, fields Fields) error {
	updates := make(map[string]any, len(fields))
	for col, val := range fields {
		if _, ok := knownColumns[col]; !ok {
			// forward-compatibility: unknown columns are skipped, not errors
			continue
		}
		updates[col] = val
	}
	if len(updates) == 0 {
		return nil
	}
	res := t.db.WithContext(ctx).Model(&requestRow{}).
		Where("row_number = ?", number).
		Updates(updates)
	if res.Error != nil {
		return Transient(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	return nil
}

func (t *GormTable) FindRowsByColumn(ctx context.Context, column, value string) ([]int, error) {
	if _, ok := knownColumns[column]; !ok {
		return nil, nil
	}
	var numbers []int64
	err := t.db.WithContext(ctx).Model(&requestRow{}).
		Where(fmt.Sprintf("%s = ?", column), value).
		Order("row_number").
		Pluck("row_number", &numbers).Error
	if err != nil {
		return nil, Transient(err)
	}
	out := make([]int, len(numbers))
	for i, n := range numbers {
		out[i] = int(n)
	}
	return out, nil
}

func (t *GormTable) ScanAll(ctx context.Context) ([]NumberedRow, error) {
	var rows []requestRow
	if err := t.db.WithContext(ctx).Order("row_number").Find(&rows).Error; err != nil {
		return nil, Transient(err)
	}
	out := make([]NumberedRow, 0, len(rows))
	for i := range rows {
		out = append(out, NumberedRow{Number: int(rows[i].RowNumber), Fields: rows[i].fields()})
	}
	return out, nil
}
