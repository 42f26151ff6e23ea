package bulkimport

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
)

const (
	ordersSheet = "Orders"
	itemsSheet  = "OrderProduct"

	ordersColumns = 7
	itemsColumns  = 5
)

// OrderRow is one raw Orders-sheet row. Line is the 1-based sheet row for
// error messages.
type OrderRow struct {
	Line            int
	OrderID         string
	UserDNI         string
	Status          string
	DiscountApplied string
	DiscountType    string
	DiscountValue   string
	ShippingCost    string
}

// ItemRow is one raw OrderProduct-sheet row.
type ItemRow struct {
	Line       int
	OrderID    string
	ProductSKU string
	Price      string
	Quantity   string
	UnitID     string
}

// File is the parsed workbook, still untyped.
type File struct {
	Orders []OrderRow
	Items  []ItemRow
}

// Parse reads the two-sheet workbook. The header row and fully empty rows are
// skipped; cell values stay raw strings for the validation pass.
func Parse(r io.Reader) (*File, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cannot open workbook")
	}
	defer workbook.Close()

	orderRows, err := workbook.GetRows(ordersSheet)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing sheet %q", ordersSheet))
	}
	itemRows, err := workbook.GetRows(itemsSheet)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing sheet %q", itemsSheet))
	}

	file := &File{}

	for i, cells := range orderRows {
		if i == 0 || rowEmpty(cells) {
			continue
		}
		cells = padRow(cells, ordersColumns)
		file.Orders = append(file.Orders, OrderRow{
			Line:            i + 1,
			OrderID:         strings.TrimSpace(cells[0]),
			UserDNI:         strings.TrimSpace(cells[1]),
			Status:          strings.TrimSpace(cells[2]),
			DiscountApplied: strings.TrimSpace(cells[3]),
			DiscountType:    strings.TrimSpace(cells[4]),
			DiscountValue:   strings.TrimSpace(cells[5]),
			ShippingCost:    strings.TrimSpace(cells[6]),
		})
	}

	for i, cells := range itemRows {
		if i == 0 || rowEmpty(cells) {
			continue
		}
		cells = padRow(cells, itemsColumns)
		file.Items = append(file.Items, ItemRow{
			Line:       i + 1,
			OrderID:    strings.TrimSpace(cells[0]),
			ProductSKU: strings.TrimSpace(cells[1]),
			Price:      strings.TrimSpace(cells[2]),
			Quantity:   strings.TrimSpace(cells[3]),
			UnitID:     strings.TrimSpace(cells[4]),
		})
	}

	return file, nil
}

func rowEmpty(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(cells []string, width int) []string {
	for len(cells) < width {
		cells = append(cells, "")
	}
	return cells
}
