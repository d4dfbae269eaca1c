package source

import (
	"maps"
	"slices"
	"strings"
)

// Preset is a known upstream file format: how its raw columns are renamed
// and which renamed columns hold the event fields.
type Preset struct {
	Name   string
	Rename map[string]string
	Core   Core
}

// Core names the columns that hold the event fields, after renaming.
type Core struct {
	GroupKey string `yaml:"group_key" json:"group_key"`
	Time     string `yaml:"time" json:"time"`
	Side     string `yaml:"side" json:"side"`
	Quantity string `yaml:"quantity" json:"quantity"`
	Price    string `yaml:"price" json:"price"`
}

// DefaultCore is used when neither a preset nor the caller names a column.
var DefaultCore = Core{
	GroupKey: "symbol",
	Time:     "timestamp",
	Side:     "side",
	Quantity: "quantity",
	Price:    "price",
}

// RecordTypeColumn is the record-type prefix column some exports carry.
// It is dropped on read.
const RecordTypeColumn = "#HFTORD"

// ylinV20251204 is the order/fill export format of 2025-12-04.
var ylinV20251204 = map[string]string{
	// Order columns
	"symbol":            "ukey",
	"orderId":           "order_id",
	"orderSide":         "order_side",
	"orderQty":          "order_qty",
	"orderPrice":        "order_price",
	"priceType":         "order_price_type",
	"fillQty":           "order_filled_qty",
	"fillPrice":         "fill_price",
	"lastExchangeTs":    "update_exchange_ts",
	"createdTs":         "create_exchange_ts",
	"localTs":           "create_local_ts",
	"qtyAhead":          "qty_ahead",
	"qtyBehind":         "qty_behind",
	"orderStatus":       "order_curr_state",
	"orderTposType":     "order_tpos_type",
	"alphaTs":           "alpha_ts",
	"event":             "event_type",
	"cumFilledNotional": "order_filled_notional",
	// Quote columns
	"bid":            "bid_px0",
	"bid2":           "bid_px1",
	"bid3":           "bid_px2",
	"bid4":           "bid_px3",
	"bid5":           "bid_px4",
	"ask":            "ask_px0",
	"ask2":           "ask_px1",
	"ask3":           "ask_px2",
	"ask4":           "ask_px3",
	"ask5":           "ask_px4",
	"bsize":          "bid_size0",
	"bsize2":         "bid_size1",
	"bsize3":         "bid_size2",
	"bsize4":         "bid_size3",
	"bsize5":         "bid_size4",
	"asize":          "ask_size0",
	"asize2":         "ask_size1",
	"asize3":         "ask_size2",
	"asize4":         "ask_size3",
	"asize5":         "ask_size4",
	"isRebasedQuote": "is_rebased",
	"quoteSeqNum":    "seq_num",
	"quoteTs":        "timestamp",
	// Position columns
	"startPos":              "init_net_pos",
	"pos":                   "current_net_pos",
	"realizedPos":           "current_realized_net_pos",
	"openBuyPos":            "open_buy",
	"openSellPos":           "open_sell",
	"cumBuy":                "cum_buy",
	"cumSell":               "cum_sell",
	"cashFlow":              "cash_flow",
	"frozenCash":            "frozen_cash",
	"globalCumBuyNotional":  "cum_buy_filled_notional",
	"globalCumSellNotional": "cum_sell_filled_notional",
}

// jyaoV20251114 is the alpha export format of 2025-11-14.
var jyaoV20251114 = map[string]string{
	"BidPrice1":    "bid_px0",
	"AskPrice1":    "ask_px0",
	"BidVolume1":   "bid_size0",
	"AskVolume1":   "ask_size0",
	"TimeStamp":    "timestamp",
	"GlobalExTime": "global_exchange_ts",
	"DataDate":     "data_date",
	"Volume":       "volume",
	"x10s":         "x_10s",
	"x60s":         "x_60s",
	"alpha1":       "x_3m",
	"alpha2":       "x_30m",
}

var presets = map[string]Preset{
	"ylin_v20251204": {
		Name:   "ylin_v20251204",
		Rename: ylinV20251204,
		Core: Core{
			GroupKey: "ukey",
			Time:     "update_exchange_ts",
			Side:     "order_side",
			Quantity: "order_filled_qty",
			Price:    "fill_price",
		},
	},
	"jyao_v20251114": {
		Name:   "jyao_v20251114",
		Rename: jyaoV20251114,
		Core:   DefaultCore,
	},
}

// LookupPreset finds a preset by case-insensitive name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, false
	}
	p.Rename = maps.Clone(p.Rename)
	return p, true
}

// PresetNames lists the known presets, sorted.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}
