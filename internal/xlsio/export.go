package xlsio

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"prop_survey/core-go/internal/sqlcgen"
)

const exportSheet = "Survey Report"

var exportHeader = []string{
	"Parcel No",
	"Owner",
	"Address",
	"Zone",
	"Usage",
	"Status",
	"Assignee",
	"Respondent",
	"Respondent Phone",
	"Latitude",
	"Longitude",
	"Photos",
	"Submitted At",
	"Reviewed At",
}

// BuildSurveyReport renders one workbook row per property, survey fields
// joined in where a survey exists.
func BuildSurveyReport(rows []sqlcgen.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return nil, err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", endHeader, headerStyle); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(exportSheet, "A", "N", 18)

	for i, r := range rows {
		values := []any{
			r.ParcelNo,
			r.OwnerName,
			r.Address,
			textOrEmpty(r.Zone),
			textOrEmpty(r.UsageType),
			r.Status,
			textOrEmpty(r.AssigneeName),
			textOrEmpty(r.RespondentName),
			textOrEmpty(r.RespondentPhone),
			coordOrEmpty(r.Lat),
			coordOrEmpty(r.Lng),
			r.PhotoCount,
			timeOrEmpty(r.SubmittedAt),
			timeOrEmpty(r.ReviewedAt),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func textOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func coordOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func timeOrEmpty(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format("2006-01-02 15:04:05")
}
