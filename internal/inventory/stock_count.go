package inventory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bakery-inventory/internal/auth"
	"bakery-inventory/internal/ledger"
	"bakery-inventory/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	stockSheet       = "Stock"
	stockCountReason = "Stock count"
)

var stockSheetHeader = []any{"Barcode", "Name", "Category", "Quantity", "Min Quantity", "Expiry Date"}

// CountRow is one counted line of an uploaded stock sheet.
type CountRow struct {
	Row      int
	Barcode  string
	Quantity int
}

// WriteStockSheet renders products as a count sheet. The Quantity column is
// what staff overwrite during a count.
func WriteStockSheet(w io.Writer, products []models.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(stockSheet, "A1", &stockSheetHeader); err != nil {
		return err
	}
	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.Barcode, p.Name, p.Category, p.Quantity, p.MinQuantity, p.ExpiryDate.String()}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// ParseStockCount reads barcode and quantity from the first sheet. When a
// header row is present the quantity comes from its "Quantity" column;
// without one the first two columns are used. Blank lines are ignored. Row
// numbers are 1-based as shown in spreadsheet software.
func ParseStockCount(r io.Reader) ([]CountRow, FieldErrors, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	start, header := 0, -1
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "barcode") {
		start = 1
		header = quantityColumn(rows[0])
	}

	var out []CountRow
	errs := FieldErrors{}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		line := i + 1
		barcode := strings.TrimSpace(row[0])

		col := header
		if col < 0 {
			// Without a header, wide rows keep the quantity in column D.
			col = 1
			if len(row) > 3 {
				col = 3
			}
		}
		if len(row) <= col {
			errs[fmt.Sprintf("row %d", line)] = "quantity is missing"
			continue
		}
		q, err := strconv.Atoi(strings.TrimSpace(row[col]))
		if err != nil || q < 0 {
			errs[fmt.Sprintf("row %d", line)] = "quantity must be a whole number greater than or equal to 0"
			continue
		}
		out = append(out, CountRow{Row: line, Barcode: barcode, Quantity: q})
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	return out, nil, nil
}

// quantityColumn returns the index of the "Quantity" header cell, or -1.
func quantityColumn(header []string) int {
	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), "quantity") {
			return i
		}
	}
	return -1
}

// GET /api/products/export
func ExportStockSheetHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		products, err := store.Products(c.UserContext())
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := WriteStockSheet(&buf, products); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="stock.xlsx"`)
		return c.Send(buf.Bytes())
	}
}

// POST /api/products/stock-count
// Multipart upload of an .xlsx count sheet. Every matched row is applied as a
// single batch update; rows whose barcode matches no product are reported
// and skipped.
func StockCountHandler(store *ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const msg = "Invalid stock count sheet"

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return invalid(c, msg, FieldErrors{"file": "is required"})
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return invalid(c, msg, FieldErrors{"file": "must be an .xlsx file"})
		}

		file, err := fileHeader.Open()
		if err != nil {
			return err
		}
		defer file.Close()

		rows, rowErrs, err := ParseStockCount(file)
		if err != nil {
			return invalid(c, msg, FieldErrors{"file": err.Error()})
		}
		if rowErrs != nil {
			return invalid(c, msg, rowErrs)
		}

		items := make([]ledger.BatchItem, 0, len(rows))
		unmatched := make([]string, 0)
		for _, r := range rows {
			p, err := store.ProductByBarcode(c.UserContext(), r.Barcode)
			if err != nil {
				if errors.Is(err, ledger.ErrNotFound) {
					unmatched = append(unmatched, r.Barcode)
					continue
				}
				return err
			}
			items = append(items, ledger.BatchItem{ID: p.ID, Quantity: r.Quantity, Reason: stockCountReason})
		}

		updated := []models.Product{}
		if len(items) > 0 {
			updated, err = store.BatchUpdateQuantity(c.UserContext(), items, auth.Actor(c))
			if err != nil {
				return storeError(c, err, msg, "")
			}
		}

		zap.S().Infow("stock count applied", "matched", len(items), "unmatched", len(unmatched), "actor", auth.Actor(c))
		return c.JSON(fiber.Map{
			"updated":   updated,
			"unmatched": unmatched,
			"message":   fmt.Sprintf("%d products counted, %d barcodes not found", len(items), len(unmatched)),
		})
	}
}
