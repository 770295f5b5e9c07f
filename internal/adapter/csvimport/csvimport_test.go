package csvimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/service"
)

const header = "JWL Part,Customer Part,Description,UOM,Batch,MFG Date,EXP Date,QTY,Weight (Kg)\n"

func TestParse(t *testing.T) {
	input := "\ufeff" + header +
		"JW-1,C-1,Hinge,PCS,B1,01-01-2024,2025-01-01,10,1.5\n" +
		"JW-2,C-2,Latch,PCS,B2,2024/13/40,01-01-2025,5,\n" +
		"\n" +
		"JW-3,C-3,Bolt,PCS,B3,01-02-2024,01-02-2025,ten,0\n" +
		"JW-4,C-4,Nut,PCS,B4,01-03-2024,01-03-2025,3,0.25\n"

	parsed, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if parsed.Total != 4 {
		t.Errorf("expected 4 data rows, got %d", parsed.Total)
	}
	if len(parsed.Rows) != 2 {
		t.Fatalf("expected 2 good rows, got %d", len(parsed.Rows))
	}

	first := parsed.Rows[0]
	if first.Part != "JW-1" || first.Line != 2 || first.Qty != 10 {
		t.Errorf("unexpected first row: %+v", first)
	}
	if !first.Weight.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected weight 1.5, got %s", first.Weight)
	}
	if first.MfgDate.Format("2006-01-02") != "2024-01-01" {
		t.Errorf("unexpected mfg date %v", first.MfgDate)
	}
	if parsed.Rows[1].Line != 6 {
		t.Errorf("expected line 6 for last row, got %d", parsed.Rows[1].Line)
	}

	if len(parsed.Rejected) != 2 || parsed.Rejected[0].Line != 3 || parsed.Rejected[1].Line != 5 {
		t.Fatalf("unexpected rejects: %+v", parsed.Rejected)
	}
	if !strings.Contains(parsed.Rejected[0].Error, "2024/13/40") {
		t.Errorf("expected offending date in message, got %q", parsed.Rejected[0].Error)
	}
}

func TestParse_ReorderedColumns(t *testing.T) {
	input := "QTY,Batch,JWL Part,Customer Part,Description,UOM,MFG Date,EXP Date,Weight (Kg)\n" +
		"7,B1,JW-1,C-1,Hinge,PCS,01-01-2024,01-01-2025,2\n"

	parsed, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(parsed.Rows) != 1 || parsed.Rows[0].Qty != 7 || parsed.Rows[0].Batch != "B1" {
		t.Errorf("unexpected rows: %+v", parsed.Rows)
	}
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("JWL Part,QTY\nJW-1,3\n"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Batch") {
		t.Errorf("expected missing column named, got %q", err.Error())
	}

	if _, err := Parse(strings.NewReader("")); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty file, got: %v", err)
	}
}

func TestParse_NegativeQuantity(t *testing.T) {
	parsed, err := Parse(strings.NewReader(header + "JW-1,C-1,Hinge,PCS,B1,01-01-2024,01-01-2025,-1,0\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(parsed.Rejected) != 1 || !strings.Contains(parsed.Rejected[0].Error, "qty") {
		t.Errorf("expected qty reject, got %+v", parsed.Rejected)
	}
}

type recordingImporter struct {
	records []service.ImportRecord
}

func (r *recordingImporter) Import(ctx context.Context, records []service.ImportRecord) service.ImportResult {
	r.records = records
	return service.ImportResult{
		Inserted:  len(records) - 1,
		TotalRows: len(records),
		Skipped:   []service.RowError{{Line: records[0].Line, Error: "could not be saved"}},
	}
}

func TestLoad(t *testing.T) {
	input := header +
		"JW-1,C-1,Hinge,PCS,B1,01-01-2024,01-01-2025,1,0\n" +
		"JW-2,C-2,Latch,PCS,B2,bad,01-01-2025,1,0\n" +
		"JW-3,C-3,Bolt,PCS,B3,01-01-2024,01-01-2025,1,0\n"

	importer := &recordingImporter{}
	result, err := Load(context.Background(), strings.NewReader(input), importer)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(importer.records) != 2 {
		t.Errorf("expected 2 records imported, got %d", len(importer.records))
	}
	if result.TotalRows != 3 || result.Inserted != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Skipped) != 2 || result.Skipped[0].Line != 2 || result.Skipped[1].Line != 3 {
		t.Errorf("expected skipped sorted by line, got %+v", result.Skipped)
	}
}

func TestLoad_NoValidRows(t *testing.T) {
	input := header + "JW-1,C-1,Hinge,PCS,B1,nope,01-01-2025,1,0\n"

	_, err := Load(context.Background(), strings.NewReader(input), &recordingImporter{})
	if !errors.Is(err, ErrNoValidRows) {
		t.Errorf("expected ErrNoValidRows, got: %v", err)
	}
}
