// Package export renders menu data as spreadsheets.
//
// ItemsWorkbook lays out one row per item (ID, code, name, category, price)
// under a styled header, followed by a summary row with the item count and
// the price total. Prices are stored in thousands of the display currency and
// are written as full amounts.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tbourn/go-restaurant-backend/internal/domain"
)

const (
	// SheetName is the worksheet holding the menu.
	SheetName = "Menu"
	// ContentType is the MIME type of an xlsx document.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// PriceUnit converts stored prices to display amounts.
	PriceUnit = 1000
)

var headers = []string{"ID", "Code", "Name", "Category", "Price"}

func border() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
}

// ItemsWorkbook builds a workbook for items. The caller owns the returned
// file and must Close it.
func ItemsWorkbook(items []domain.Item) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := fill(f, items); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WriteItems writes the items workbook to w.
func WriteItems(w io.Writer, items []domain.Item) error {
	f, err := ItemsWorkbook(items)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func fill(f *excelize.File, items []domain.Item) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border(),
	})
	if err != nil {
		return err
	}
	dataStyle, err := f.NewStyle(&excelize.Style{Border: border()})
	if err != nil {
		return err
	}
	// #,##0
	priceStyle, err := f.NewStyle(&excelize.Style{Border: border(), NumFmt: 3})
	if err != nil {
		return err
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border(),
		NumFmt: 3,
	})
	if err != nil {
		return err
	}

	widths := map[string]float64{"A": 8, "B": 14, "C": 32, "D": 18, "E": 14}
	for col, w := range widths {
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", headerStyle); err != nil {
		return err
	}

	var total int64
	for i, it := range items {
		row := i + 2
		category := ""
		if it.Category != nil {
			category = it.Category.Name
		}
		price := it.Price * PriceUnit
		total += price
		values := []any{it.ID, it.Code, it.Name, category, price}
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), dataStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), priceStyle); err != nil {
			return err
		}
	}

	sum := len(items) + 2
	if err := f.SetCellValue(SheetName, fmt.Sprintf("A%d", sum), "Total"); err != nil {
		return err
	}
	if err := f.MergeCell(SheetName, fmt.Sprintf("A%d", sum), fmt.Sprintf("C%d", sum)); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, fmt.Sprintf("D%d", sum), fmt.Sprintf("%d items", len(items))); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, fmt.Sprintf("E%d", sum), total); err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, fmt.Sprintf("A%d", sum), fmt.Sprintf("E%d", sum), summaryStyle)
}
