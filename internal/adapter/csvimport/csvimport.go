// Package csvimport reads inventory spreadsheets exported as CSV.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/service"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
)

const (
	ColPart         = "JWL Part"
	ColCustomerPart = "Customer Part"
	ColDescription  = "Description"
	ColUOM          = "UOM"
	ColBatch        = "Batch"
	ColMfgDate      = "MFG Date"
	ColExpDate      = "EXP Date"
	ColQty          = "QTY"
	ColWeight       = "Weight (Kg)"
)

// Headers is the column order written by the export template.
var Headers = []string{ColPart, ColCustomerPart, ColDescription, ColUOM, ColBatch, ColMfgDate, ColExpDate, ColQty, ColWeight}

var ErrNoValidRows = fmt.Errorf("%w: no valid data found in CSV file", domain.ErrValidation)

// Row is one data line with typed fields.
type Row struct {
	Line         int
	Part         string
	CustomerPart string
	Description  string
	UOM          string
	Batch        string
	MfgDate      time.Time
	ExpDate      time.Time
	Qty          int
	Weight       decimal.Decimal
}

func (r Row) Lot() domain.Lot {
	return domain.Lot{
		Part:         r.Part,
		CustomerPart: r.CustomerPart,
		Description:  r.Description,
		UOM:          r.UOM,
		Batch:        r.Batch,
		MfgDate:      r.MfgDate,
		ExpDate:      r.ExpDate,
		Quantity:     r.Qty,
		Weight:       r.Weight,
	}
}

type Parsed struct {
	Rows     []Row
	Rejected []service.RowError
	Total    int
}

func (p Parsed) Records() []service.ImportRecord {
	out := make([]service.ImportRecord, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, service.ImportRecord{Line: r.Line, Lot: r.Lot()})
	}
	return out
}

// Parse reads a header line followed by data lines. A leading UTF-8 BOM is
// dropped. Rows that fail to parse are collected in Rejected with their
// 1-based line number; only a missing header or unreadable input is an error.
func Parse(r io.Reader) (Parsed, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Parsed{}, fmt.Errorf("%w: empty CSV file", domain.ErrValidation)
	}
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: read header: %v", domain.ErrValidation, err)
	}

	index, err := headerIndex(header)
	if err != nil {
		return Parsed{}, err
	}

	var parsed Parsed
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				parsed.Total++
				parsed.Rejected = append(parsed.Rejected, service.RowError{Line: perr.StartLine, Error: perr.Err.Error()})
				continue
			}
			return Parsed{}, fmt.Errorf("read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		parsed.Total++
		row, rowErr := parseRow(line, record, index)
		if rowErr != nil {
			parsed.Rejected = append(parsed.Rejected, service.RowError{Line: line, Error: rowErr.Error()})
			continue
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	return parsed, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, h := range Headers {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return index, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(line int, record []string, index map[string]int) (Row, error) {
	get := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := Row{
		Line:         line,
		Part:         get(ColPart),
		CustomerPart: get(ColCustomerPart),
		Description:  get(ColDescription),
		UOM:          get(ColUOM),
		Batch:        get(ColBatch),
	}

	v := domain.ValidationErrors{}
	var err error

	if row.MfgDate, err = shelflife.ParseDate(get(ColMfgDate)); err != nil {
		v.Add("mfg_date", err.Error())
	}
	if row.ExpDate, err = shelflife.ParseDate(get(ColExpDate)); err != nil {
		v.Add("exp_date", err.Error())
	}

	if row.Qty, err = strconv.Atoi(get(ColQty)); err != nil {
		v.Add("qty", "quantity must be an integer")
	}

	if w := get(ColWeight); w != "" {
		if row.Weight, err = decimal.NewFromString(w); err != nil {
			v.Add("weight", "weight must be a number")
		}
	}

	if err := v.Err(); err != nil {
		return Row{}, err
	}
	if err := row.Lot().Validate(); err != nil {
		return Row{}, err
	}
	return row, nil
}

// Importer stores parsed records.
type Importer interface {
	Import(ctx context.Context, records []service.ImportRecord) service.ImportResult
}

// Load parses r and imports every valid row. The result counts every data
// line, and Skipped lists parse rejects and store failures in line order.
func Load(ctx context.Context, r io.Reader, importer Importer) (service.ImportResult, error) {
	parsed, err := Parse(r)
	if err != nil {
		return service.ImportResult{}, err
	}
	if len(parsed.Rows) == 0 {
		return service.ImportResult{TotalRows: parsed.Total, Skipped: parsed.Rejected}, ErrNoValidRows
	}

	result := importer.Import(ctx, parsed.Records())
	result.TotalRows = parsed.Total
	result.Skipped = append(parsed.Rejected, result.Skipped...)
	sort.SliceStable(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].Line < result.Skipped[j].Line
	})
	return result, nil
}
