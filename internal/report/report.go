package report

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradesmart-bot-go/internal/backtest"
	"tradesmart-bot-go/internal/market"
)

const (
	colorBull   = "#34d399"
	colorBear   = "#f87171"
	colorBuy    = "#3b82f6"
	colorSell   = "#fbbf24"
	colorVolume = "#a78bfa"

	chartWidth   = "1400px"
	klineHeight  = "600px"
	volumeHeight = "220px"
	axisLayout   = "01-02 15:04"
)

// ErrNoBars is returned when there is nothing to plot.
var ErrNoBars = errors.New("no bars to plot")

// RenderBacktest writes an HTML page plotting bars, given newest first, with a
// marker at the bar of every BUY and SELL in entries.
func RenderBacktest(w io.Writer, title string, barsDesc []market.CandleStick, entries []backtest.Entry) error {
	if len(barsDesc) == 0 {
		return ErrNoBars
	}
	bars := make([]market.CandleStick, len(barsDesc))
	for i, b := range barsDesc {
		bars[len(bars)-1-i] = b
	}

	xAxis := make([]string, len(bars))
	klineData := make([]opts.KlineData, len(bars))
	volumes := make([]opts.BarData, len(bars))
	for i, b := range bars {
		xAxis[i] = b.OpenTime.UTC().Format(axisLayout)
		klineData[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
		color := colorBear
		if b.Close >= b.Open {
			color = colorBull
		}
		volumes[i] = opts.BarData{Value: b.Volume, ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)}}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: chartWidth, Height: klineHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", klineData, charts.WithItemStyleOpts(opts.ItemStyle{
		Color:        colorBull,
		Color0:       colorBear,
		BorderColor:  colorBull,
		BorderColor0: colorBear,
	}))

	buys, sells := markers(bars, entries)
	scatter := charts.NewScatter()
	scatter.SetXAxis(xAxis)
	scatter.AddSeries("BUY", buys, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuy}))
	scatter.AddSeries("SELL", sells, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorSell}))
	kline.Overlap(scatter)

	volume := charts.NewBar()
	volume.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: chartWidth, Height: volumeHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
	)
	volume.SetXAxis(xAxis)
	volume.AddSeries("Volume", volumes, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorVolume}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(kline, volume)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("could not render report: %w", err)
	}
	return nil
}

// markers places every BUY and SELL entry on the bar it happened in. bars are
// oldest first; entries before the first bar are dropped.
func markers(bars []market.CandleStick, entries []backtest.Entry) (buys, sells []opts.ScatterData) {
	buys = make([]opts.ScatterData, len(bars))
	sells = make([]opts.ScatterData, len(bars))
	for i := range bars {
		buys[i] = opts.ScatterData{Value: nil}
		sells[i] = opts.ScatterData{Value: nil}
	}

	for _, e := range entries {
		if e.Action != backtest.ActionBuy && e.Action != backtest.ActionSell {
			continue
		}
		// index of the last bar opening at or before e.At
		i := sort.Search(len(bars), func(i int) bool { return bars[i].OpenTime.After(e.At) }) - 1
		if i < 0 {
			continue
		}
		if e.Action == backtest.ActionBuy {
			buys[i] = opts.ScatterData{Value: e.Price, Symbol: "triangle", SymbolSize: 14}
		} else {
			sells[i] = opts.ScatterData{Value: e.Price, Symbol: "pin", SymbolSize: 18}
		}
	}
	return buys, sells
}
