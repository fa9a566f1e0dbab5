// Package importer loads legacy litigation registers. Each row yields a
// case plus the officer assignment events reconstructed from its
// free-text history column. Bad rows are reported, never fatal.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseline/internal/config"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/parse"
)

// Row is one register row keyed by normalized header name.
type Row map[string]string

// RowSource yields rows until io.EOF.
type RowSource interface {
	Next() (Row, error)
}

type Importer struct {
	Engine engine.Engine
	Config *config.Config
}

// RowResult reports what happened to a single register row.
type RowResult struct {
	Line       int      `json:"line"`
	CaseNumber string   `json:"case_number,omitempty"`
	CaseID     string   `json:"case_id,omitempty"`
	Events     int      `json:"events"`
	Remainder  []string `json:"remainder,omitempty"`
	Skipped    bool     `json:"skipped"`
	Error      string   `json:"error,omitempty"`
}

type Summary struct {
	Imported int         `json:"imported"`
	Skipped  int         `json:"skipped"`
	Failed   int         `json:"failed"`
	Rows     []RowResult `json:"rows"`
}

// Run consumes the source to exhaustion. Rows without a recognizable
// case number are skipped; duplicate case numbers are skipped; parser
// leftovers land in the row's remainder for manual review.
func (imp Importer) Run(ctx context.Context, src RowSource, actorID string) (Summary, error) {
	cfg := imp.Config
	if cfg == nil {
		cfg = config.Default()
	}
	var sum Summary
	for line := 1; ; line++ {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, err
		}
		res := imp.importRow(ctx, cfg, row, actorID)
		res.Line = line
		switch {
		case res.Error != "":
			sum.Failed++
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Imported++
		}
		sum.Rows = append(sum.Rows, res)
	}
	return sum, nil
}

func (imp Importer) importRow(ctx context.Context, cfg *config.Config, row Row, actorID string) RowResult {
	caseNumber := probe(row, cfg.Import.CaseNumberColumns)
	if caseNumber == "" {
		return RowResult{Skipped: true}
	}
	res := RowResult{CaseNumber: caseNumber}

	c, _, err := imp.Engine.RegisterCase(ctx, engine.CaseRegisterOptions{
		CaseNumber: caseNumber,
		Title:      probe(row, cfg.Import.TitleColumns),
		ActorID:    actorID,
	})
	var vErr engine.ValidationError
	if errors.As(err, &vErr) && strings.Contains(vErr.Msg, "already registered") {
		res.Skipped = true
		return res
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.CaseID = c.ID

	historyText := probe(row, cfg.Import.HistoryColumns)
	if historyText == "" {
		return res
	}
	parsed := parse.ReassignmentHistory(historyText)
	res.Remainder = parsed.Remainder
	if len(parsed.Events) == 0 {
		return res
	}

	now := imp.now().UTC().Format(time.RFC3339)
	tx, err := imp.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer tx.Rollback()
	for i, ev := range parsed.Events {
		m := domain.OfficerReassignment{
			ID:             uuid.NewString(),
			CaseID:         c.ID,
			AssignmentDate: ev.Date,
			OfficerName:    ev.Officer,
			Kind:           string(ev.Kind),
			Position:       i,
			CreatedAt:      now,
		}
		if err := imp.Engine.Repo.InsertReassignmentTx(ctx, tx, m); err != nil {
			res.Error = err.Error()
			return res
		}
	}
	if err := tx.Commit(); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Events = len(parsed.Events)
	return res
}

// now tolerates engines built without a clock.
func (imp Importer) now() time.Time {
	if imp.Engine.Now != nil {
		return imp.Engine.Now()
	}
	return time.Now()
}

// probe returns the first non-empty cell among the candidate columns.
func probe(row Row, columns []string) string {
	for _, col := range columns {
		if v := strings.TrimSpace(row[normalizeHeader(col)]); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return h
}

// CSVSource adapts a CSV stream to a RowSource. The first record is the
// header row.
type CSVSource struct {
	reader  *csv.Reader
	headers []string
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVSource{reader: cr}
}

func (s *CSVSource) Next() (Row, error) {
	if s.headers == nil {
		record, err := s.reader.Read()
		if err != nil {
			return nil, err
		}
		for _, h := range record {
			s.headers = append(s.headers, normalizeHeader(h))
		}
	}
	record, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	row := Row{}
	for i, v := range record {
		if i < len(s.headers) {
			row[s.headers[i]] = v
		}
	}
	return row, nil
}
