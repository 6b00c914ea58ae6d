package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// createBatchSize bounds the rows per INSERT statement so a single chunk
// stays under the PostgreSQL bind parameter limit.
const createBatchSize = 1000

// Ensure Store implements the interface.
var _ driven.MessageStore = (*Store)(nil)

// messageRow maps the messages table.
type messageRow struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Filename string `gorm:"type:text;not null;index:idx_messages_filename"`
	Message  string `gorm:"type:text;not null"`
}

func (messageRow) TableName() string { return "messages" }

// summaryProbRow maps the summary_probs table.
type summaryProbRow struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	MessageID int64      `gorm:"not null;uniqueIndex:idx_summary_probs_message_lang"`
	Lang      string     `gorm:"type:text;not null;uniqueIndex:idx_summary_probs_message_lang"`
	Prob      float32    `gorm:"type:real;not null"`
	Message   messageRow `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (summaryProbRow) TableName() string { return "summary_probs" }

// Store is a PostgreSQL-backed message sink.
type Store struct {
	db *gorm.DB
}

// NewStore connects to dsn and migrates the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&messageRow{}, &summaryProbRow{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertMessages writes a batch of messages in one transaction.
func (s *Store) InsertMessages(ctx context.Context, batch []domain.NewMessage) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([]messageRow, len(batch))
	for i, m := range batch {
		rows[i] = messageRow{Filename: m.GroupID, Message: m.Text}
	}
	return s.create(ctx, &rows, len(rows))
}

// InsertSummaryProbs writes a batch of scores in one transaction.
func (s *Store) InsertSummaryProbs(ctx context.Context, batch []domain.SummaryProb) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([]summaryProbRow, len(batch))
	for i, p := range batch {
		rows[i] = summaryProbRow{MessageID: p.MessageID, Lang: p.Lang, Prob: p.Prob}
	}
	return s.create(ctx, &rows, len(rows))
}

func (s *Store) create(ctx context.Context, rows any, n int) (int, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).CreateInBatches(rows, createBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inserting rows: %w", err)
	}
	return n, nil
}

// ListGroupIDs returns distinct file names in ascending order.
func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&messageRow{}).
		Distinct("filename").Order("filename").Pluck("filename", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	return ids, nil
}

// LoadMessagesByGroup returns a group's messages in id order.
func (s *Store) LoadMessagesByGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).Where("filename = ?", groupID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	msgs := make([]domain.Message, len(rows))
	for i, r := range rows {
		msgs[i] = domain.Message{ID: r.ID, GroupID: r.Filename, Text: r.Message}
	}
	return msgs, nil
}

// DeleteSummaryProbs removes every score for lang.
func (s *Store) DeleteSummaryProbs(ctx context.Context, lang string) (int, error) {
	result := s.db.WithContext(ctx).Where("lang = ?", lang).Delete(&summaryProbRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting scores: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Counts summarises the sink contents.
func (s *Store) Counts(ctx context.Context) (*domain.StoreCounts, error) {
	db := s.db.WithContext(ctx)
	counts := &domain.StoreCounts{SummaryProbs: make(map[string]int)}

	var messages, groups int64
	if err := db.Model(&messageRow{}).Count(&messages).Error; err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}
	if err := db.Model(&messageRow{}).Distinct("filename").Count(&groups).Error; err != nil {
		return nil, fmt.Errorf("counting groups: %w", err)
	}
	counts.Messages = int(messages)
	counts.Groups = int(groups)

	var perLang []struct {
		Lang  string
		Total int64
	}
	err := db.Model(&summaryProbRow{}).Select("lang, COUNT(*) AS total").Group("lang").Scan(&perLang).Error
	if err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}
	for _, row := range perLang {
		counts.SummaryProbs[row.Lang] = int(row.Total)
	}
	return counts, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
