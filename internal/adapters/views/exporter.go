package views

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"penguinboard/internal/blob"
	"penguinboard/internal/charts"
	"penguinboard/internal/dataset"
	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/logging"
	platformotel "penguinboard/internal/platform/otel"
	"penguinboard/pkg/penguins"
)

// Format names an export or response encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

var exportFormats = []Format{FormatJSON, FormatCSV, FormatHTML, FormatPNG}

// ParseFormat validates an export format name.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range exportFormats {
		if candidate == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

func (f Format) contentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPNG:
		return "image/png"
	default:
		return "application/json"
	}
}

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// DefaultQueueSize is the export queue capacity when none is configured.
const DefaultQueueSize = 32

// ErrQueueFull is returned when the export queue cannot take another request.
var ErrQueueFull = errors.New("export queue full")

// ErrExportNotFound is returned for unknown export ids or formats.
var ErrExportNotFound = errors.New("export not found")

// Charts rendered as separate PNG artifacts. The species histogram is the
// primary PNG and is stored as view.png.
const (
	ChartHistogram = "histogram"
	ChartMass      = "mass"
	ChartScatter   = "scatter"
)

// ExportArtifact describes one stored rendering of an export.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	Chart       string    `json:"chart,omitempty"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Size        string    `json:"size"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string             `json:"id"`
	SessionID   string             `json:"session_id"`
	Selection   penguins.Selection `json:"selection"`
	Formats     []Format           `json:"formats"`
	Rows        int                `json:"rows"`
	Status      ExportStatus       `json:"status"`
	Error       string             `json:"error,omitempty"`
	Artifacts   []ExportArtifact   `json:"artifacts,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ExportInput is the view snapshot an export renders. Records are copied at
// enqueue time, so later selection changes do not affect the export.
type ExportInput struct {
	SessionID string
	Selection penguins.Selection
	Records   []penguins.Record
	Formats   []Format
}

// ExportScheduler queues exports and exposes their status and artifacts.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
	OpenArtifact(ctx context.Context, id string, format Format, chart string) (ExportArtifact, io.ReadCloser, error)
}

// WorkerConfig configures NewWorker.
type WorkerConfig struct {
	Store     blob.Store
	QueueSize int
	Logger    logging.Logger
	Recorder  metrics.Recorder
}

// Worker renders exports asynchronously on a single goroutine.
type Worker struct {
	store    blob.Store
	logger   logging.Logger
	recorder metrics.Recorder

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id      string
	records []penguins.Record
}

type renderedArtifact struct {
	Artifact ExportArtifact
	Payload  []byte
}

// NewWorker constructs an export worker. Call Start to begin processing.
func NewWorker(cfg WorkerConfig) *Worker {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:    cfg.Store,
		logger:   logging.OrNop(cfg.Logger),
		recorder: metrics.OrNop(cfg.Recorder),
		queue:    make(chan exportTask, size),
		jobs:     make(map[string]*ExportRecord),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Run starts the worker and blocks until ctx is done, then stops it.
func (w *Worker) Run(ctx context.Context) error {
	w.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

// Stop signals the worker to halt and waits for the loop to exit.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport records the request and queues it. Formats default to JSON
// and CSV; duplicates are dropped.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return ExportRecord{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := time.Now().UTC()
	record := ExportRecord{
		ID:        uuid.NewString(),
		SessionID: input.SessionID,
		Selection: input.Selection.Clone(),
		Formats:   uniq,
		Rows:      len(input.Records),
		Status:    ExportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	task := exportTask{id: record.ID, records: append([]penguins.Record(nil), input.Records...)}

	w.mu.Lock()
	select {
	case w.queue <- task:
	default:
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	w.logger.Info("export queued", "export_id", record.ID, "session_id", input.SessionID, "formats", len(uniq), "rows", record.Rows)
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// OpenArtifact streams the stored artifact of a succeeded export. An empty
// chart selects the first artifact of format.
func (w *Worker) OpenArtifact(ctx context.Context, id string, format Format, chart string) (ExportArtifact, io.ReadCloser, error) {
	record, ok := w.GetExport(id)
	if !ok {
		return ExportArtifact{}, nil, ErrExportNotFound
	}
	for _, a := range record.Artifacts {
		if a.Format != format || (chart != "" && a.Chart != chart) {
			continue
		}
		if w.store == nil {
			return ExportArtifact{}, nil, fmt.Errorf("export store not configured")
		}
		_, rc, err := w.store.Get(ctx, a.Key)
		if err != nil {
			return ExportArtifact{}, nil, fmt.Errorf("open artifact: %w", err)
		}
		return a, rc, nil
	}
	return ExportArtifact{}, nil, ErrExportNotFound
}

func (w *Worker) process(task exportTask) {
	ctx, span := platformotel.Tracer().Start(w.ctx, "views.export.process")
	defer span.End()
	span.SetAttributes(attribute.String("export.id", task.id), attribute.Int("export.rows", len(task.records)))

	start := time.Now()
	err := w.run(ctx, task)
	w.recorder.Observe(ctx, metrics.OpExport, err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.fail(task.id, err.Error())
		w.logger.Warn("export failed", "export_id", task.id, "error", err)
		return
	}
	w.logger.Info("export succeeded", "export_id", task.id, "duration", time.Since(start))
}

func (w *Worker) run(ctx context.Context, task exportTask) error {
	record, ok := w.GetExport(task.id)
	if !ok {
		return ErrExportNotFound
	}
	w.updateStatus(task.id, ExportStatusRunning)

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		batch, err := materialize(ctx, format, record, task.records)
		if err != nil {
			return err
		}
		for _, rendered := range batch {
			artifact, err := w.persist(ctx, record, rendered)
			if err != nil {
				return err
			}
			artifacts = append(artifacts, artifact)
		}
	}
	w.complete(task.id, artifacts)
	return nil
}

func artifactKey(id string, format Format, chart string) string {
	if chart == "" || chart == ChartHistogram {
		return fmt.Sprintf("exports/%s/view.%s", id, format)
	}
	return fmt.Sprintf("exports/%s/view-%s.%s", id, chart, format)
}

func (w *Worker) persist(ctx context.Context, record ExportRecord, rendered renderedArtifact) (ExportArtifact, error) {
	artifact := rendered.Artifact
	artifact.Key = artifactKey(record.ID, artifact.Format, artifact.Chart)
	if w.store == nil {
		return artifact, nil
	}
	info, err := w.store.Put(ctx, artifact.Key, bytes.NewReader(rendered.Payload), blob.PutOptions{
		ContentType: artifact.ContentType,
		Metadata: map[string]string{
			"export-id":  record.ID,
			"session-id": record.SessionID,
			"rows":       fmt.Sprint(record.Rows),
		},
	})
	if err != nil {
		return artifact, fmt.Errorf("store artifact failed: %w", err)
	}
	artifact.ETag = info.ETag
	if !info.LastModified.IsZero() {
		artifact.CreatedAt = info.LastModified.UTC()
	}
	if url, err := w.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{}); err == nil {
		artifact.URL = url
	}
	return artifact, nil
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
}

func materialize(ctx context.Context, format Format, record ExportRecord, records []penguins.Record) ([]renderedArtifact, error) {
	sel := record.Selection
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(viewPayload{Selection: sel, Rows: len(records), Records: records})
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return []renderedArtifact{newArtifact(format, "", payload)}, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		if err := dataset.WriteCSV(buf, records); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}
		return []renderedArtifact{newArtifact(format, "", buf.Bytes())}, nil
	case FormatHTML:
		buf := &bytes.Buffer{}
		if err := exportPage(record, records).Render(ctx, buf); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return []renderedArtifact{newArtifact(format, "", buf.Bytes())}, nil
	case FormatPNG:
		histogram, err := charts.HistogramPNG(charts.SpeciesHistogram(records, sel.Attribute, sel.PlotlyBins), charts.DefaultFrame)
		if err != nil {
			return nil, fmt.Errorf("render histogram png: %w", err)
		}
		mass, err := charts.HistogramPNG(charts.MassHistogram(records, sel.SeabornBins), charts.DefaultFrame)
		if err != nil {
			return nil, fmt.Errorf("render mass png: %w", err)
		}
		scatter, err := charts.ScatterPNG(charts.NewScatter(records), charts.DefaultFrame)
		if err != nil {
			return nil, fmt.Errorf("render scatter png: %w", err)
		}
		return []renderedArtifact{
			newArtifact(format, ChartHistogram, histogram),
			newArtifact(format, ChartMass, mass),
			newArtifact(format, ChartScatter, scatter),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func newArtifact(format Format, chart string, payload []byte) renderedArtifact {
	size := int64(len(payload))
	return renderedArtifact{
		Artifact: ExportArtifact{
			Format:      format,
			Chart:       chart,
			ContentType: format.contentType(),
			SizeBytes:   size,
			Size:        humanize.Bytes(uint64(size)),
			CreatedAt:   time.Now().UTC(),
		},
		Payload: payload,
	}
}

// exportPage is a standalone HTML report: the rows plus both histograms and
// the scatter for the exported selection.
func exportPage(record ExportRecord, records []penguins.Record) templ.Component {
	sel := record.Selection
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Nollettecs Penguins export `+
			templ.EscapeString(record.ID)+`</title></head><body><h1>Nollettecs Penguins</h1><p>`+
			templ.EscapeString(humanize.Comma(int64(len(records))))+` rows, species: `+
			templ.EscapeString(strings.Join(sel.Species.Strings(), ", "))+`</p>`); err != nil {
			return err
		}
		parts := []templ.Component{
			charts.HistogramSVG(charts.SpeciesHistogram(records, sel.Attribute, sel.PlotlyBins), charts.DefaultFrame),
			charts.HistogramSVG(charts.MassHistogram(records, sel.SeabornBins), charts.DefaultFrame),
			charts.ScatterSVG(charts.NewScatter(records), charts.DefaultFrame, sel.ShowSex),
		}
		for _, c := range parts {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		var b strings.Builder
		b.WriteString(`<table><thead><tr>`)
		cols := penguins.Columns()
		for _, c := range cols {
			b.WriteString(`<th>` + templ.EscapeString(c.Name) + `</th>`)
		}
		b.WriteString(`</tr></thead><tbody>`)
		for _, r := range records {
			b.WriteString(`<tr>`)
			for _, c := range cols {
				b.WriteString(`<td>` + templ.EscapeString(formatValue(r.Cell(c.Name))) + `</td>`)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Selection = r.Selection.Clone()
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}
