// Package xlsio parses uploaded property workbooks and builds survey-report
// exports. Modern .xlsx files go through excelize; legacy .xls files go
// through extrame/xls.
package xlsio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"prop_survey/core-go/internal/geo"
)

const maxWorkbookRows = 100000

// ParseWorkbook returns the raw cell grid of the first sheet.
func ParseWorkbook(filename string, data []byte) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		if workbook.NumSheets() > 1 {
			return nil, fmt.Errorf("multiple worksheets found; please upload a file with a single sheet")
		}
		rows := workbook.ReadAllCells(maxWorkbookRows)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}

		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

// PropertyRow is one importable property record.
type PropertyRow struct {
	ParcelNo  string
	OwnerName string
	Address   string
	Zone      *string
	UsageType *string
	Lat       *float64
	Lng       *float64
}

type columnMap struct {
	parcelNo  int
	ownerName int
	address   int
	zone      int
	usageType int
	lat       int
	lng       int
}

var headerAliases = map[string]string{
	"parcel_no":     "parcel",
	"parcel no":     "parcel",
	"parcel":        "parcel",
	"parcel number": "parcel",
	"survey no":     "parcel",
	"owner":         "owner",
	"owner_name":    "owner",
	"owner name":    "owner",
	"address":       "address",
	"property address": "address",
	"zone":          "zone",
	"ward":          "zone",
	"usage":         "usage",
	"usage_type":    "usage",
	"usage type":    "usage",
	"property type": "usage",
	"lat":           "lat",
	"latitude":      "lat",
	"lng":           "lng",
	"lon":           "lng",
	"long":          "lng",
	"longitude":     "lng",
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func mapHeader(row []string) (columnMap, error) {
	cm := columnMap{parcelNo: -1, ownerName: -1, address: -1, zone: -1, usageType: -1, lat: -1, lng: -1}
	for idx, cell := range row {
		key, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		switch key {
		case "parcel":
			if cm.parcelNo < 0 {
				cm.parcelNo = idx
			}
		case "owner":
			if cm.ownerName < 0 {
				cm.ownerName = idx
			}
		case "address":
			if cm.address < 0 {
				cm.address = idx
			}
		case "zone":
			if cm.zone < 0 {
				cm.zone = idx
			}
		case "usage":
			if cm.usageType < 0 {
				cm.usageType = idx
			}
		case "lat":
			if cm.lat < 0 {
				cm.lat = idx
			}
		case "lng":
			if cm.lng < 0 {
				cm.lng = idx
			}
		}
	}
	if cm.parcelNo < 0 || cm.ownerName < 0 || cm.address < 0 {
		return cm, fmt.Errorf("header row must include parcel, owner and address columns")
	}
	return cm, nil
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optionalText(row []string, idx int) *string {
	v := cellValue(row, idx)
	if v == "" {
		return nil
	}
	return &v
}

func optionalCoord(row []string, idx int, valid func(float64) bool) *float64 {
	v := cellValue(row, idx)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(f) {
		return nil
	}
	return &f
}

// ParseProperties maps a raw cell grid into property records. The first
// non-empty row is treated as the header. Rows missing any of the required
// columns are skipped and counted, not fatal.
func ParseProperties(rows [][]string) ([]PropertyRow, int, error) {
	headerIdx := -1
	for i, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				headerIdx = i
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx < 0 {
		return nil, 0, fmt.Errorf("worksheet is empty")
	}

	cm, err := mapHeader(rows[headerIdx])
	if err != nil {
		return nil, 0, err
	}

	var out []PropertyRow
	skipped := 0
	for _, row := range rows[headerIdx+1:] {
		parcel := cellValue(row, cm.parcelNo)
		owner := cellValue(row, cm.ownerName)
		address := cellValue(row, cm.address)
		if parcel == "" && owner == "" && address == "" {
			continue
		}
		if parcel == "" || owner == "" || address == "" {
			skipped++
			continue
		}

		p := PropertyRow{
			ParcelNo:  parcel,
			OwnerName: owner,
			Address:   address,
			Zone:      optionalText(row, cm.zone),
			UsageType: optionalText(row, cm.usageType),
			Lat:       optionalCoord(row, cm.lat, geo.ValidLat),
			Lng:       optionalCoord(row, cm.lng, geo.ValidLng),
		}
		// A half-specified fix is useless to the field app.
		if (p.Lat == nil) != (p.Lng == nil) {
			p.Lat = nil
			p.Lng = nil
		}
		out = append(out, p)
	}
	return out, skipped, nil
}
