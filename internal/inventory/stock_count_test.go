package inventory

import (
	"bytes"
	"testing"

	"bakery-inventory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sheet(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestExportedSheetParsesBack(t *testing.T) {
	products := []models.Product{
		{Barcode: "123456789", Name: "Sourdough Bread", Category: "Bread", Quantity: 15, MinQuantity: 10, ExpiryDate: models.NewDate(2026, 3, 12)},
		{Barcode: "987654321", Name: "Chocolate Croissant", Category: "Pastries", Quantity: 8, MinQuantity: 15, ExpiryDate: models.NewDate(2026, 3, 11)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStockSheet(&buf, products))

	rows, errs, err := ParseStockCount(&buf)
	require.NoError(t, err)
	require.Nil(t, errs)
	assert.Equal(t, []CountRow{
		{Row: 2, Barcode: "123456789", Quantity: 15},
		{Row: 3, Barcode: "987654321", Quantity: 8},
	}, rows)
}

func TestParseStockCountTwoColumns(t *testing.T) {
	buf := sheet(t,
		[]any{"111", 4},
		[]any{},
		[]any{" 222 ", "0"},
	)

	rows, errs, err := ParseStockCount(buf)
	require.NoError(t, err)
	require.Nil(t, errs)
	assert.Equal(t, []CountRow{
		{Row: 1, Barcode: "111", Quantity: 4},
		{Row: 3, Barcode: "222", Quantity: 0},
	}, rows)
}

func TestParseStockCountUsesQuantityHeader(t *testing.T) {
	t.Run("trailing notes column", func(t *testing.T) {
		buf := sheet(t,
			[]any{"Barcode", "Quantity"},
			[]any{"111", 4, "", "", "recounted"},
		)

		rows, errs, err := ParseStockCount(buf)
		require.NoError(t, err)
		require.Nil(t, errs)
		assert.Equal(t, []CountRow{{Row: 2, Barcode: "111", Quantity: 4}}, rows)
	})

	t.Run("quantity in third column", func(t *testing.T) {
		buf := sheet(t,
			[]any{"barcode", "Name", " QUANTITY "},
			[]any{"222", "Rye Loaf", 7},
		)

		rows, errs, err := ParseStockCount(buf)
		require.NoError(t, err)
		require.Nil(t, errs)
		assert.Equal(t, []CountRow{{Row: 2, Barcode: "222", Quantity: 7}}, rows)
	})
}

func TestParseStockCountRejectsBadQuantities(t *testing.T) {
	buf := sheet(t,
		[]any{"Barcode", "Quantity"},
		[]any{"111", "-1"},
		[]any{"222", "lots"},
		[]any{"333"},
		[]any{"444", 2},
	)

	rows, errs, err := ParseStockCount(buf)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "row 2")
	assert.Contains(t, errs, "row 3")
	assert.Equal(t, "quantity is missing", errs["row 4"])
}

func TestParseStockCountRejectsNonWorkbook(t *testing.T) {
	_, _, err := ParseStockCount(bytes.NewBufferString("barcode,quantity\n1,2\n"))
	assert.Error(t, err)
}
