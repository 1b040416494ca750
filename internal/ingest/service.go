// Package ingest turns uploaded backtest exports into stored report groups.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/metrics"
	"github.com/newthinker/stratboard/internal/report"
	"github.com/newthinker/stratboard/internal/storage/archive"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
	"go.uber.org/zap"
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// UploadRequest creates a strategy from a set of export documents.
type UploadRequest struct {
	Name        string
	Description string
	Files       []File
}

// Skipped names an uploaded file that was not ingested.
type Skipped struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// UploadResult summarizes an upload. Processed counts committed documents.
type UploadResult struct {
	StrategyID string    `json:"strategy_id"`
	Processed  int       `json:"count"`
	ReportIDs  []string  `json:"report_ids"`
	Skipped    []Skipped `json:"skipped"`
}

// BatchReport is one entry of a batch submission against existing
// strategies. Symbol, Exchange and Timeframe override what the file name
// yields.
type BatchReport struct {
	StrategyID       string          `json:"strategy_id"`
	FileName         string          `json:"file_name"`
	Symbol           string          `json:"symbol,omitempty"`
	Exchange         string          `json:"exchange,omitempty"`
	Timeframe        string          `json:"timeframe,omitempty"`
	TimeframeMinutes int             `json:"timeframe_minutes,omitempty"`
	RawData          json.RawMessage `json:"raw_data"`
}

// Service runs the ingestion pipeline. Documents are processed one at a time
// in submission order; nothing is retried.
type Service struct {
	store     reportdb.Store
	archive   archive.Storage
	metrics   *metrics.Registry
	timeframe report.Timeframe
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithArchive keeps the raw bytes of every stored document.
func WithArchive(a archive.Storage) Option {
	return func(s *Service) { s.archive = a }
}

// WithMetrics records ingestion outcomes.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeframe sets the timeframe assigned to reports.
func WithTimeframe(tf report.Timeframe) Option {
	return func(s *Service) { s.timeframe = tf }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an ingestion service on store.
func NewService(store reportdb.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		timeframe: report.DefaultTimeframe,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type parsedFile struct {
	name string
	data []byte
	doc  *report.Document
}

// Upload validates the request, creates the strategy and ingests every
// parseable document. It stops at the first document that cannot be stored;
// documents committed before that stay.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, core.WrapError(core.ErrInvalidInput, errors.New("strategy name is required"))
	}
	if len(req.Files) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, errors.New("at least one file is required"))
	}

	var parsed []parsedFile
	skipped := []Skipped{}
	for _, f := range req.Files {
		if !strings.EqualFold(filepath.Ext(f.Name), ".json") {
			skipped = append(skipped, Skipped{FileName: f.Name, Reason: "not a JSON file"})
			s.recordDocument(metrics.OutcomeSkipped)
			continue
		}
		doc, err := report.Parse(f.Data)
		if err != nil {
			s.logger.Warn("skipping unparseable document", zap.String("file", f.Name), zap.Error(err))
			skipped = append(skipped, Skipped{FileName: f.Name, Reason: err.Error()})
			s.recordDocument(metrics.OutcomeSkipped)
			continue
		}
		parsed = append(parsed, parsedFile{name: f.Name, data: f.Data, doc: doc})
	}

	if len(parsed) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("none of %d files could be parsed", len(req.Files)))
	}

	strategy := &core.Strategy{Name: name}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		strategy.Description = &desc
	}
	if err := s.store.CreateStrategy(ctx, strategy); err != nil {
		return nil, storeError(err)
	}
	if s.metrics != nil {
		s.metrics.RecordStrategyCreated()
	}

	s.logger.Info("strategy created",
		zap.String("strategy_id", strategy.ID),
		zap.String("name", strategy.Name),
		zap.Int("documents", len(parsed)),
		zap.Int("skipped", len(skipped)))

	result := &UploadResult{StrategyID: strategy.ID, ReportIDs: []string{}, Skipped: skipped}
	for _, p := range parsed {
		b, err := s.Ingest(ctx, strategy.ID, p.name, p.data, p.doc)
		if err != nil {
			return result, err
		}
		result.Processed++
		result.ReportIDs = append(result.ReportIDs, b.Report.ID)
	}

	return result, nil
}

// Ingest stores one parsed document under an existing strategy. The
// document's own file_name takes precedence over the uploaded name for
// identification.
func (s *Service) Ingest(ctx context.Context, strategyID, fileName string, raw []byte, doc *report.Document) (*core.ReportBundle, error) {
	if doc.FileName != "" {
		fileName = doc.FileName
	}
	id := report.Identify(fileName, s.timeframe)
	b := report.Bundle(strategyID, doc, id)

	start := time.Now()
	if err := s.store.SaveReport(ctx, b); err != nil {
		s.recordDocument(metrics.OutcomeFailed)
		s.logger.Error("storing report failed",
			zap.String("strategy_id", strategyID),
			zap.String("file", fileName),
			zap.Error(err))
		return nil, storeError(fmt.Errorf("document %q: %w", fileName, err))
	}
	if s.metrics != nil {
		s.metrics.RecordIngest(time.Since(start).Seconds())
	}

	s.logger.Debug("report stored",
		zap.String("report_id", b.Report.ID),
		zap.String("symbol", b.Report.Symbol.Name),
		zap.String("exchange", b.Report.Symbol.Exchange),
		zap.Int("trades", len(b.Trades)))

	s.archiveRaw(ctx, b, raw)
	return b, nil
}

// IngestBatch normalizes every entry with the same rules as Upload and
// stores them all in one transaction. It returns the number stored.
func (s *Service) IngestBatch(ctx context.Context, reports []BatchReport) (int, error) {
	if len(reports) == 0 {
		return 0, core.WrapError(core.ErrInvalidInput, errors.New("reports array is required"))
	}

	bundles := make([]*core.ReportBundle, 0, len(reports))
	for i, br := range reports {
		b, err := s.batchBundle(br)
		if err != nil {
			s.recordBatch("rejected")
			return 0, core.WrapError(core.ErrInvalidInput, fmt.Errorf("report %d: %w", i, err))
		}
		bundles = append(bundles, b)
	}

	if err := s.store.SaveReports(ctx, bundles); err != nil {
		s.recordBatch("failed")
		if errors.Is(err, core.ErrNotFound) {
			// an unknown strategy is the caller's mistake
			return 0, core.WrapError(core.ErrInvalidInput, err)
		}
		return 0, storeError(err)
	}
	s.recordBatch("success")

	for i, b := range bundles {
		s.archiveRaw(ctx, b, reports[i].RawData)
	}

	s.logger.Info("report batch stored", zap.Int("count", len(bundles)))
	return len(bundles), nil
}

func (s *Service) batchBundle(br BatchReport) (*core.ReportBundle, error) {
	if strings.TrimSpace(br.StrategyID) == "" {
		return nil, errors.New("strategy_id is required")
	}
	if len(br.RawData) == 0 {
		return nil, errors.New("raw_data is required")
	}

	doc, err := report.Parse(br.RawData)
	if err != nil {
		return nil, err
	}

	fileName := br.FileName
	if fileName == "" {
		fileName = doc.FileName
	}
	id := report.Identify(fileName, s.timeframe)
	if br.Symbol != "" {
		id.Symbol = br.Symbol
	}
	if br.Exchange != "" {
		id.Exchange = br.Exchange
	}
	if br.Timeframe != "" {
		if br.TimeframeMinutes <= 0 {
			return nil, errors.New("timeframe_minutes is required with timeframe")
		}
		id.Timeframe = report.Timeframe{Name: br.Timeframe, Minutes: br.TimeframeMinutes}
	}

	return report.Bundle(br.StrategyID, doc, id), nil
}

// RawDocument returns the archived source document of a report.
func (s *Service) RawDocument(ctx context.Context, reportID string) ([]byte, error) {
	if s.archive == nil {
		return nil, core.WrapError(core.ErrNotFound, errors.New("document archive is disabled"))
	}

	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	// archiving is best effort, so a stored report may have no document
	key := archive.ReportKey(r.StrategyID, r.ID)
	ok, err := s.archive.Exists(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("no archived document for report %q", r.ID))
	}

	data, err := s.archive.Read(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}
	return data, nil
}

// archiveRaw keeps the source bytes. The report is already committed, so a
// failure here is only logged.
func (s *Service) archiveRaw(ctx context.Context, b *core.ReportBundle, raw []byte) {
	if s.archive == nil || len(raw) == 0 {
		return
	}
	key := archive.ReportKey(b.Report.StrategyID, b.Report.ID)
	if err := s.archive.Write(ctx, key, raw); err != nil {
		s.logger.Warn("archiving document failed", zap.String("key", key), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordArchiveFailure()
		}
	}
}

func (s *Service) recordDocument(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDocument(outcome)
	}
}

func (s *Service) recordBatch(status string) {
	if s.metrics != nil {
		s.metrics.RecordBatch(status)
	}
}

// storeError keeps coded errors and classifies everything else as a store
// failure.
func storeError(err error) error {
	var coded *core.Error
	if errors.As(err, &coded) {
		return err
	}
	return core.WrapError(core.ErrStoreFailed, err)
}
