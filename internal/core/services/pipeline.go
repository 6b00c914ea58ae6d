package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driving"
	"github.com/custodia-labs/summaryprobs/internal/logger"
)

// Ensure PipelineDriver implements the interface.
var _ driving.Pipeline = (*PipelineDriver)(nil)

// PipelineDriver ingests messages and scores them once per language.
//
// Work is strictly sequential: one group at a time, one language at a time,
// on the calling goroutine. The sink and the embedder provider are owned by
// the driver for the duration of a run.
type PipelineDriver struct {
	langs     []string
	batchSize int
	corpus    driven.CorpusReader
	store     driven.MessageStore
	embedders driven.EmbedderProvider
	engine    *ScoringEngine

	// Status tracking
	mu     sync.RWMutex
	status driving.PipelineStatus
}

// NewPipelineDriver creates a pipeline driver.
// The corpus reader is only needed for Ingest and may be nil otherwise;
// the embedder provider is only needed for Score.
func NewPipelineDriver(
	settings domain.Settings,
	corpus driven.CorpusReader,
	store driven.MessageStore,
	embedders driven.EmbedderProvider,
	engine *ScoringEngine,
) *PipelineDriver {
	if engine == nil {
		engine = NewScoringEngine(nil)
	}
	batchSize := settings.BatchSize
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	return &PipelineDriver{
		langs:     slices.Clone(settings.Langs),
		batchSize: batchSize,
		corpus:    corpus,
		store:     store,
		embedders: embedders,
		engine:    engine,
		status:    driving.PipelineStatus{State: domain.StateIdle},
	}
}

// Ingest reads the corpus and writes every message to the sink.
func (d *PipelineDriver) Ingest(ctx context.Context) (*domain.RunReport, error) {
	report := d.begin()
	err := d.ingest(ctx, report)
	return d.finish(report, err)
}

// Score runs one scoring pass per configured language.
func (d *PipelineDriver) Score(ctx context.Context) (*domain.RunReport, error) {
	report := d.begin()
	err := d.score(ctx, report)
	return d.finish(report, err)
}

// Run ingests the corpus and then scores it for every language.
func (d *PipelineDriver) Run(ctx context.Context) (*domain.RunReport, error) {
	report := d.begin()
	err := d.ingest(ctx, report)
	if err == nil {
		err = d.score(ctx, report)
	}
	return d.finish(report, err)
}

// Status returns a snapshot of the current run.
func (d *PipelineDriver) Status() driving.PipelineStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *PipelineDriver) ingest(ctx context.Context, report *domain.RunReport) error {
	if d.corpus == nil {
		return fmt.Errorf("%w: corpus reader not configured", domain.ErrIngestion)
	}
	d.setState(domain.StateIngesting)

	corpus, err := d.corpus.Read(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrIngestion) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrIngestion, err)
	}

	groupIDs := make([]string, 0, len(corpus))
	total := 0
	for id, msgs := range corpus {
		groupIDs = append(groupIDs, id)
		total += len(msgs)
	}
	// Map order is random; sorting keeps chunk boundaries reproducible.
	sort.Strings(groupIDs)

	logger.Info("Inserting %d messages from %d groups", total, len(groupIDs))

	writer := NewBatchWriter(BatchConfig{
		Size:  d.batchSize,
		Table: "messages",
		Progress: func(committed int) {
			d.update(func(s *driving.PipelineStatus) { s.MessagesWritten = committed })
		},
	}, d.store.InsertMessages)

	seq := func(yield func(domain.NewMessage) bool) {
		for _, id := range groupIDs {
			for _, text := range corpus[id] {
				if text == "" {
					continue
				}
				if !yield(domain.NewMessage{GroupID: id, Text: text}) {
					return
				}
			}
		}
	}

	committed, err := writer.WriteAll(ctx, seq)
	report.MessagesWritten += committed
	if err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}

	logger.Info("Inserted %d messages in %d chunks", committed, writer.Chunks())
	return nil
}

func (d *PipelineDriver) score(ctx context.Context, report *domain.RunReport) error {
	if d.embedders == nil {
		return fmt.Errorf("%w: embedder provider not configured", domain.ErrEmbeddingUnavailable)
	}

	// Languages that may already have rows from an earlier pass of this run.
	written := make(map[string]bool, len(d.langs))

	for _, lang := range d.langs {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Section("Processing language: " + strings.ToUpper(lang))
		d.update(func(s *driving.PipelineStatus) {
			s.Lang = lang
			s.GroupID = ""
			s.GroupsDone = 0
			s.GroupsTotal = 0
		})

		embedder, err := d.embedders.Acquire(ctx, lang)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			d.skipLang(report, lang, err)
			continue
		}

		if written[lang] {
			if err := d.clearLang(ctx, report, lang); err != nil {
				return err
			}
		}
		written[lang] = true

		err = d.scoreLang(ctx, report, lang, embedder)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			d.skipLang(report, lang, err)
			continue
		}
		if err != nil {
			return err
		}

		if !slices.Contains(report.LangsScored, lang) {
			report.LangsScored = append(report.LangsScored, lang)
		}
	}

	return nil
}

// clearLang removes the scores an earlier pass of this run wrote for lang,
// so a language listed twice is scored again instead of hitting the
// unique (message_id, lang) constraint.
func (d *PipelineDriver) clearLang(ctx context.Context, report *domain.RunReport, lang string) error {
	removed, err := d.store.DeleteSummaryProbs(ctx, lang)
	if err != nil {
		return fmt.Errorf("clear scores for %s: %w", lang, err)
	}
	report.ScoresWritten -= removed
	d.update(func(s *driving.PipelineStatus) { s.ScoresWritten = report.ScoresWritten })
	logger.Info("Language %s listed again: replaced %d scores from the earlier pass", lang, removed)
	return nil
}

func (d *PipelineDriver) scoreLang(
	ctx context.Context,
	report *domain.RunReport,
	lang string,
	embedder driven.Embedder,
) error {
	groupIDs, err := d.store.ListGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	d.update(func(s *driving.PipelineStatus) { s.GroupsTotal = len(groupIDs) })
	logger.Info("Scoring %d groups with %s (%s)", len(groupIDs), embedder.ModelName(), d.engine.Policy().Name())

	for _, groupID := range groupIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.update(func(s *driving.PipelineStatus) {
			s.State = domain.StateLoadingMessages
			s.GroupID = groupID
		})

		messages, err := d.store.LoadMessagesByGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("load group %s: %w", groupID, err)
		}

		d.setState(domain.StateEmbedding)
		embedded, err := d.engine.Embed(ctx, embedder, groupID, messages)
		if err != nil {
			return err
		}

		d.setState(domain.StateScoring)
		var probs []domain.SummaryProb
		scores, err := d.engine.Rank(embedded)
		if err != nil {
			report.SkippedGroups = append(report.SkippedGroups, domain.GroupSkip{Lang: lang, GroupID: groupID, Err: err})
			logger.Warn("Skipping group %s for %s: %v", groupID, lang, err)
		} else {
			probs = scores.SummaryProbs(lang)
			report.UndefinedScores += len(scores.Undefined)
			if len(scores.Undefined) > 0 {
				logger.Debug("Group %s: %d messages have undefined scores", groupID, len(scores.Undefined))
			}
		}
		report.FailedEmbeddings += len(embedded.Failed)

		d.setState(domain.StateWriting)
		base := report.ScoresWritten
		writer := NewBatchWriter(BatchConfig{
			Size:    d.batchSize,
			Table:   "summary_probs",
			Lang:    lang,
			GroupID: groupID,
			Progress: func(committed int) {
				d.update(func(s *driving.PipelineStatus) { s.ScoresWritten = base + committed })
			},
		}, d.store.InsertSummaryProbs)

		committed, err := writer.WriteAll(ctx, slices.Values(probs))
		report.ScoresWritten += committed
		if err != nil {
			return fmt.Errorf("write scores: %w", err)
		}

		d.update(func(s *driving.PipelineStatus) { s.GroupsDone++ })
	}

	return nil
}

func (d *PipelineDriver) skipLang(report *domain.RunReport, lang string, err error) {
	report.SkippedLangs = append(report.SkippedLangs, domain.LangSkip{Lang: lang, Err: err})
	logger.Warn("Skipping language %s: %v", lang, err)
}

// begin starts a new run and resets status tracking.
func (d *PipelineDriver) begin() *domain.RunReport {
	report := &domain.RunReport{
		RunID: uuid.New().String(),
		State: domain.StateIdle,
	}

	d.mu.Lock()
	d.status = driving.PipelineStatus{RunID: report.RunID, State: domain.StateIdle}
	d.mu.Unlock()

	logger.Debug("Starting run %s", report.RunID)
	return report
}

// finish moves the run into a terminal state.
func (d *PipelineDriver) finish(report *domain.RunReport, err error) (*domain.RunReport, error) {
	report.State = domain.StateDone
	if err != nil {
		report.State = domain.StateFailed
	}
	d.setState(report.State)

	logger.Debug("Run %s %s: %d messages, %d scores, %d warnings",
		report.RunID, report.State, report.MessagesWritten, report.ScoresWritten, report.Warnings())
	return report, err
}

func (d *PipelineDriver) setState(state domain.PipelineState) {
	d.update(func(s *driving.PipelineStatus) { s.State = state })
}

func (d *PipelineDriver) update(fn func(s *driving.PipelineStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
}
