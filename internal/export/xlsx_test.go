package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gemini-extract/internal/model"
)

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestColumns_FirstSeenOrder(t *testing.T) {
	records := []model.Record{
		model.NewRecord(
			model.Field{Name: "Name", Value: model.StringValue("Widget")},
			model.Field{Name: "Qty", Value: model.NumberValue("3")},
		),
		model.NewRecord(
			model.Field{Name: "Price", Value: model.NumberValue("2.5")},
			model.Field{Name: "Name", Value: model.StringValue("Bolt")},
		),
	}
	assert.Equal(t, []string{"Name", "Qty", "Price"}, Columns(records))
	assert.Empty(t, Columns(nil))
}

func TestEncodeXLSX(t *testing.T) {
	records := []model.Record{
		model.NewRecord(
			model.Field{Name: "Name", Value: model.StringValue("Widget")},
			model.Field{Name: "Qty", Value: model.NumberValue("3")},
			model.Field{Name: "InStock", Value: model.BoolValue(true)},
		),
		model.NewRecord(
			model.Field{Name: "Name", Value: model.StringValue("Bolt")},
			model.Field{Name: "Price", Value: model.NumberValue("1.5")},
		),
	}

	data, err := EncodeXLSX(records)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Qty", "InStock", "Price"}, rows[0])
	assert.Equal(t, []string{"Widget", "3", "TRUE"}, rows[1])
	assert.Equal(t, []string{"Bolt", "", "", "1.5"}, rows[2])
}

func TestEncodeXLSX_NumberCellsAreNumeric(t *testing.T) {
	data, err := EncodeXLSX([]model.Record{
		model.NewRecord(model.Field{Name: "Qty", Value: model.NumberValue("42")}),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	typ, err := f.GetCellType(SheetName, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
}

func TestEncodeXLSX_NoRecords(t *testing.T) {
	data, err := EncodeXLSX(nil)
	require.NoError(t, err)
	assert.Empty(t, readRows(t, data))
}
