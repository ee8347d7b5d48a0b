package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	reports "ridership-pipeline/internal/reports/domain"
)

// BuildMonthlyReportPDF renders a minimal PDF for a monthly report.
func BuildMonthlyReportPDF(report *reports.MonthlyReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Monthly Ridership Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", report.Month.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entities: %d", len(report.Rows)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	// Entity summary table
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(38, 6, "Entity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Entries", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Exits", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Daily Mean In", "1", 0, "C", false, 0, "")
	pdf.CellFormat(18, 6, "Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "AM Peak In", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "AM Peak Out", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range report.Rows {
		pdf.CellFormat(38, 6, row.EntityID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.0f", row.EntriesSum), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.0f", row.ExitsSum), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.1f", row.MeanDailyEntries), "1", 0, "R", false, 0, "")
		pdf.CellFormat(18, 6, fmt.Sprintf("%d", row.ContributingDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.0f", row.MorningPeakEntries), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.0f", row.MorningPeakExits), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMonthlyReportXLSX renders a minimal XLSX for a monthly report.
func BuildMonthlyReportXLSX(report *reports.MonthlyReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	dailySheet := "daily"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(dailySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Monthly Ridership Report")
	_ = f.SetCellValue(summarySheet, "A2", "Month")
	_ = f.SetCellValue(summarySheet, "B2", report.Month.Format("2006-01"))
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", report.GeneratedAt.Format(time.RFC3339))

	_ = f.SetCellValue(summarySheet, "A5", "Entity")
	_ = f.SetCellValue(summarySheet, "B5", "Entries")
	_ = f.SetCellValue(summarySheet, "C5", "Exits")
	_ = f.SetCellValue(summarySheet, "D5", "Mean Daily Entries")
	_ = f.SetCellValue(summarySheet, "E5", "Mean Daily Exits")
	_ = f.SetCellValue(summarySheet, "F5", "Contributing Days")
	_ = f.SetCellValue(summarySheet, "G5", "Morning Peak Entries")
	_ = f.SetCellValue(summarySheet, "H5", "Morning Peak Exits")
	for i, row := range report.Rows {
		line := i + 6
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", line), row.EntityID)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", line), row.EntriesSum)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", line), row.ExitsSum)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", line), row.MeanDailyEntries)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", line), row.MeanDailyExits)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("F%d", line), row.ContributingDays)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("G%d", line), row.MorningPeakEntries)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("H%d", line), row.MorningPeakExits)
	}

	_ = f.SetCellValue(dailySheet, "A1", "Entity")
	_ = f.SetCellValue(dailySheet, "B1", "Day")
	_ = f.SetCellValue(dailySheet, "C1", "Entries")
	_ = f.SetCellValue(dailySheet, "D1", "Exits")
	for i, row := range report.Daily {
		line := i + 2
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("A%d", line), row.EntityID)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("B%d", line), row.Day.Format("2006-01-02"))
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("C%d", line), row.Entries)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("D%d", line), row.Exits)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
