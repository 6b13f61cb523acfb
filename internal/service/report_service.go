package service

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	rawSheet   = "Raw Data"
	dailySheet = "Daily Data"
	dateLayout = "2006-01-02"
)

var dailyHeader = []string{"Date", "Parameter", "Unit", "Average", "Maximum", "Minimum", "Samples"}

// ReportService builds XLSX exports of a device's readings
type ReportService struct {
	readings ReadingStore
	logger   *zap.Logger
}

func NewReportService(readings ReadingStore, logger *zap.Logger) *ReportService {
	return &ReportService{readings: readings, logger: logger}
}

// ParseReportWindow turns YYYY-MM-DD bounds into whole days in loc, from 00:00 to
// the last microsecond of to
func ParseReportWindow(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
	}
	end, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Microsecond), nil
}

// DeviceReport returns the workbook bytes. An empty window is ErrNoData.
func (s *ReportService) DeviceReport(ctx context.Context, deviceID string, from, to time.Time) ([]byte, error) {
	if _, err := s.readings.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	readings, err := s.readings.GetReadings(ctx, deviceID, from, to)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrNoData)
	}

	data, err := buildReportWorkbook(readings, from.Location())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Device report generated",
		zap.String("device_id", deviceID),
		zap.Int("readings", len(readings)),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

type dailyAggregate struct {
	sum, min, max float64
	n             int
}

func (a *dailyAggregate) add(v float64) {
	if a.n == 0 {
		a.min, a.max = v, v
	}
	a.sum += v
	a.min = math.Min(a.min, v)
	a.max = math.Max(a.max, v)
	a.n++
}

func buildReportWorkbook(readings []models.Reading, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(rawSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(rawSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	catalog := models.Catalog()
	rawHeader := make([]string, 0, len(catalog)+1)
	rawHeader = append(rawHeader, "Time")
	for _, p := range catalog {
		info, _ := p.Info()
		if info.Unit != "" {
			rawHeader = append(rawHeader, fmt.Sprintf("%s (%s)", info.Name, info.Unit))
		} else {
			rawHeader = append(rawHeader, info.Name)
		}
	}

	if err := writeHeader(f, rawSheet, rawHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f, dailySheet, dailyHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	days := make([]string, 0)
	daily := make(map[string]map[models.Parameter]*dailyAggregate)

	for i, r := range readings {
		row := i + 2
		ts := r.Timestamp.In(loc)
		if err := setCellValue(f, rawSheet, 1, row, ts.Format("2006-01-02 15:04:05")); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set cell value at row %d: %w", row, err)
		}

		day := ts.Format(dateLayout)
		aggs, ok := daily[day]
		if !ok {
			aggs = make(map[models.Parameter]*dailyAggregate)
			daily[day] = aggs
			days = append(days, day)
		}

		for col, p := range catalog {
			raw, ok := r.Values[p]
			if !ok {
				continue
			}
			v, err := evaluator.Normalize(p, raw)
			if err != nil {
				continue
			}
			if err := setCellValue(f, rawSheet, col+2, row, evaluator.RoundForDisplay(p, v)); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+2, err)
			}
			agg, ok := aggs[p]
			if !ok {
				agg = &dailyAggregate{}
				aggs[p] = agg
			}
			agg.add(v)
		}
	}

	// readings come back ordered by time so days are already sorted
	row := 2
	for _, day := range days {
		for _, p := range catalog {
			agg, ok := daily[day][p]
			if !ok {
				continue
			}
			info, _ := p.Info()
			values := []any{
				day,
				info.Name,
				info.Unit,
				evaluator.RoundForDisplay(p, agg.sum/float64(agg.n)),
				evaluator.RoundForDisplay(p, agg.max),
				evaluator.RoundForDisplay(p, agg.min),
				agg.n,
			}
			for col, v := range values {
				if err := setCellValue(f, dailySheet, col+1, row, v); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
				}
			}
			row++
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// writeHeader styles row 1 and freezes it
func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
