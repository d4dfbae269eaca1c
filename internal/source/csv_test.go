package source

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/ir"
)

func defaultMapping() Mapping {
	return Mapping{Core: DefaultCore}
}

func TestReadCSV_DefaultColumns(t *testing.T) {
	input := `symbol,timestamp,side,quantity,price,order_id
600000,93000000,Buy,100,10.5,A1
600000,93000500,Sell,100,10.6,A2
`
	table, err := ReadCSV(strings.NewReader(input), defaultMapping())
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, []string{"order_id"}, table.Columns)

	rec := table.Records[1]
	assert.Equal(t, "600000", rec.GroupKey)
	assert.Equal(t, int64(93000500), rec.Time)
	assert.Equal(t, ir.Side("Sell"), rec.Side)
	assert.Equal(t, int64(100), rec.Quantity)
	assert.True(t, decimal.RequireFromString("10.6").Equal(rec.Price))
	assert.Equal(t, 1, rec.OriginalIndex)
	assert.Equal(t, "A2", rec.Columns["order_id"])
}

func TestReadCSV_PresetRenameAndRecordTypeDrop(t *testing.T) {
	input := `#HFTORD,symbol,lastExchangeTs,orderSide,fillQty,fillPrice,orderId
ORD,600000,1,B,200,5.01,X
`
	p, ok := LookupPreset("YLIN_V20251204")
	require.True(t, ok)

	table, err := ReadCSV(strings.NewReader(input), FromPreset(p, nil))
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, "600000", rec.GroupKey)
	assert.Equal(t, ir.Side("B"), rec.Side)
	assert.Equal(t, int64(200), rec.Quantity)
	assert.Equal(t, []string{"order_id"}, table.Columns)
	_, hasRecordType := rec.Columns[RecordTypeColumn]
	assert.False(t, hasRecordType)
}

func TestReadCSV_CustomRenameOverridesPreset(t *testing.T) {
	p, ok := LookupPreset("ylin_v20251204")
	require.True(t, ok)

	m := FromPreset(p, map[string]string{"orderId": "client_order_id"})
	assert.Equal(t, "client_order_id", m.Rename["orderId"])
	assert.Equal(t, "fill_price", m.Rename["fillPrice"])

	again, _ := LookupPreset("ylin_v20251204")
	assert.Equal(t, "order_id", again.Rename["orderId"], "preset table must not be mutated")
}

func TestReadCSV_FractionalQuantityCast(t *testing.T) {
	input := `symbol,timestamp,side,quantity,price
X,1,Buy,1.00000002,1
`
	table, err := ReadCSV(strings.NewReader(input), defaultMapping())
	require.NoError(t, err)
	assert.Equal(t, int64(1), table.Records[0].Quantity)

	bad := `symbol,timestamp,side,quantity,price
X,1,Buy,1.5,1
`
	_, err = ReadCSV(strings.NewReader(bad), defaultMapping())
	assert.Error(t, err)
}

func TestReadCSV_MissingCoreColumn(t *testing.T) {
	input := `symbol,timestamp,side,quantity
X,1,Buy,1
`
	_, err := ReadCSV(strings.NewReader(input), defaultMapping())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"price"`)
}

func TestReadCSV_IndexColumn(t *testing.T) {
	input := `symbol,timestamp,side,quantity,price,row
X,1,Buy,1,1,42
`
	m := defaultMapping()
	m.Index = "row"
	table, err := ReadCSV(strings.NewReader(input), m)
	require.NoError(t, err)
	assert.Equal(t, 42, table.Records[0].OriginalIndex)
	assert.Empty(t, table.Columns)
}

func TestMapping_Validate(t *testing.T) {
	m := defaultMapping()
	m.Core.Price = m.Core.Quantity
	assert.Error(t, m.Validate())

	m = defaultMapping()
	m.Core.Side = ""
	assert.Error(t, m.Validate())
}

func TestWriteCSV(t *testing.T) {
	rec := ir.NewRecord(ir.Event{
		GroupKey:      "X",
		Time:          3,
		Side:          "Buy",
		Quantity:      5,
		Price:         decimal.RequireFromString("1.25"),
		OriginalIndex: 0,
	})
	rec.Columns["holding_period"] = math.Inf(1)
	rec.Columns["exit_index"] = nil
	rec.Columns["order_id"] = "A1"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []ir.Record{rec}, []string{"order_id", "exit_index", "holding_period"}))

	want := "group_key,time,side,quantity,price,original_index,order_id,exit_index,holding_period\n" +
		"X,3,Buy,5,1.25,0,A1,,inf\n"
	assert.Equal(t, want, buf.String())
}

func TestParseIntegral(t *testing.T) {
	v, err := ParseIntegral(" 0.9999999 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = ParseIntegral("-3")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	_, err = ParseIntegral("abc")
	assert.Error(t, err)
}

func TestPresetNames(t *testing.T) {
	assert.Equal(t, []string{"jyao_v20251114", "ylin_v20251204"}, PresetNames())
}
