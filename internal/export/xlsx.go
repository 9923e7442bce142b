package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
	"github.com/tworjaga/flipper-rf-lab/internal/fingerprint"
)

// Листы книги отчета
const (
	SheetSummary  = "Summary"
	SheetClusters = "Clusters"
	SheetDevices  = "Devices"
)

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// WriteXLSX книга из трех листов: сводка отчета, центроиды кластеров и база устройств
func WriteXLSX(w io.Writer, r analytics.Report, devices []fingerprint.Device) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := sheet{
		name:    SheetSummary,
		headers: []string{"Section", "Field", "Value"},
		widths:  []float64{15, 22, 70},
	}
	for _, row := range Rows(r) {
		summary.rows = append(summary.rows, []any{row.Section, row.Field, row.Value})
	}

	clusters := sheet{
		name:    SheetClusters,
		headers: []string{"Cluster", "Mark (us)", "Space (us)", "Points", "Inertia"},
		widths:  []float64{10, 14, 14, 10, 14},
	}
	for i, c := range r.Clusters.Centroids {
		clusters.rows = append(clusters.rows, []any{i, c.X.Float(), c.Y.Float(), c.PointCount, c.Inertia.Float()})
	}

	devs := sheet{
		name:    SheetDevices,
		headers: []string{"ID", "Name", "Match Count", "Last Seen", "Fingerprint"},
		widths:  []float64{6, 18, 12, 22, 70},
	}
	for i, d := range devices {
		lastSeen := ""
		if !d.LastSeen.IsZero() {
			lastSeen = d.LastSeen.UTC().Format(time.RFC3339)
		}
		devs.rows = append(devs.rows, []any{i, d.Name, d.MatchCount, lastSeen, d.Fingerprint.String()})
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range []sheet{summary, clusters, devs} {
		if err := writeSheet(f, s, headerStyle); err != nil {
			return err
		}
		if i == 0 {
			idx, err := f.GetSheetIndex(s.name)
			if err != nil {
				return fmt.Errorf("failed to find sheet %s: %w", s.name, err)
			}
			f.SetActiveSheet(idx)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if _, err := f.NewSheet(s.name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
	}
	for col, h := range s.headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(s.name, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(s.name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if col < len(s.widths) {
			if err := f.SetColWidth(s.name, name, name, s.widths[col]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
