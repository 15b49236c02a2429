package render

import (
	"strconv"

	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Chart titles.
const (
	TitleFiveMinute   = "5-Minute Interval Pro Purchase in Fair Day"
	TitleHourly       = "Hourly Pro Purchase in Fair Day"
	TitleNoData       = "No Data Available"
	TitleTransactions = "Transaction Amounts Over Time"
)

var pieColors = []string{"#FFA500", "#1E90FF"}

type palette struct {
	theme      string
	background string
}

func paletteFor(theme models.Theme) palette {
	if theme == models.ThemeDark {
		return palette{theme: "dark", background: "#1e1e1e"}
	}
	return palette{theme: "white", background: "#eee0dd"}
}

func (r *Renderer) init(theme models.Theme, title, height string) charts.GlobalOpts {
	p := paletteFor(theme)
	return charts.WithInitializationOpts(opts.Initialization{
		Width:           r.opts.ChartWidth,
		Height:          height,
		BackgroundColor: p.background,
		Theme:           p.theme,
		PageTitle:       title,
		AssetsHost:      r.opts.AssetsHost,
	})
}

func axisTooltip() charts.GlobalOpts {
	return charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"})
}

// IntervalChart renders the pro-purchase series. The 5-minute view plots the
// raw rows and the hourly view plots counts. Callers pass nil counts when the
// hourly aggregate failed; empty data renders the no-data chart.
func (r *Renderer) IntervalChart(kind models.SeriesKind, rows []models.IntervalRow, counts []transforms.HourCount, theme models.Theme) (Fragment, error) {
	switch {
	case kind == models.SeriesFiveMinute && len(rows) > 0:
		return r.frame(TargetIntervalChart, TitleFiveMinute, r.opts.ChartHeight, r.fiveMinute(rows, theme).Render)
	case kind == models.SeriesHourly && len(counts) > 0:
		return r.frame(TargetIntervalChart, TitleHourly, r.opts.ChartHeight, r.hourly(counts, theme).Render)
	}
	return r.frame(TargetIntervalChart, TitleNoData, r.opts.ChartHeight, r.noData(theme).Render)
}

func (r *Renderer) fiveMinute(rows []models.IntervalRow, theme models.Theme) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		r.init(theme, TitleFiveMinute, r.opts.ChartHeight),
		charts.WithTitleOpts(opts.Title{Title: TitleFiveMinute}),
		axisTooltip(),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "OPID Count"}),
	)
	x := make([]string, 0, len(rows))
	data := make([]opts.LineData, 0, len(rows))
	for _, row := range rows {
		x = append(x, row.Start)
		data = append(data, opts.LineData{Value: row.Count})
	}
	line.SetXAxis(x).AddSeries("OPID Count", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#FF6347"}),
	)
	return line
}

func (r *Renderer) hourly(counts []transforms.HourCount, theme models.Theme) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		r.init(theme, TitleHourly, r.opts.ChartHeight),
		charts.WithTitleOpts(opts.Title{Title: TitleHourly}),
		axisTooltip(),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "OPID Count"}),
	)
	x := make([]string, 0, len(counts))
	data := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, strconv.Itoa(c.Hour))
		data = append(data, opts.BarData{Value: c.Count})
	}
	bar.SetXAxis(x).AddSeries("OPID Count", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#6A5ACD"}),
	)
	return bar
}

func (r *Renderer) noData(theme models.Theme) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		r.init(theme, TitleNoData, r.opts.ChartHeight),
		charts.WithTitleOpts(opts.Title{Title: TitleNoData}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "OPID Count"}),
	)
	return line
}

// TransactionChart renders the revealed window of the transaction series.
// Points past the cutoff are already dropped by the window transform.
func (r *Renderer) TransactionChart(kind models.ChartKind, points []transforms.Point, theme models.Theme) (Fragment, error) {
	x := make([]string, 0, len(points))
	for _, p := range points {
		x = append(x, strconv.Itoa(p.Hour))
	}
	global := []charts.GlobalOpts{
		r.init(theme, TitleTransactions, r.opts.ChartHeight),
		charts.WithTitleOpts(opts.Title{Title: TitleTransactions}),
		axisTooltip(),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Amount (Taka)"}),
	}
	label := charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})

	switch kind {
	case models.ChartBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		data := make([]opts.BarData, 0, len(points))
		for _, p := range points {
			data = append(data, opts.BarData{Value: p.Amount})
		}
		bar.SetXAxis(x).AddSeries("amount", data, label,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#4B4BFF"}))
		return r.frame(TargetTransactionChart, TitleTransactions, r.opts.ChartHeight, bar.Render)
	case models.ChartScatter:
		sc := charts.NewScatter()
		sc.SetGlobalOptions(global...)
		data := make([]opts.ScatterData, 0, len(points))
		for _, p := range points {
			data = append(data, opts.ScatterData{Value: p.Amount, SymbolSize: symbolSize(p.Amount, points)})
		}
		sc.SetXAxis(x).AddSeries("amount", data, label,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#21918C"}))
		return r.frame(TargetTransactionChart, TitleTransactions, r.opts.ChartHeight, sc.Render)
	default:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		data := make([]opts.LineData, 0, len(points))
		for _, p := range points {
			data = append(data, opts.LineData{Value: p.Amount})
		}
		line.SetXAxis(x).AddSeries("amount", data, label,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#FF5733"}))
		return r.frame(TargetTransactionChart, TitleTransactions, r.opts.ChartHeight, line.Render)
	}
}

// symbolSize scales a scatter marker between 8 and 40 px by amount.
func symbolSize(v float64, points []transforms.Point) int {
	top := 0.0
	for _, p := range points {
		if p.Amount > top {
			top = p.Amount
		}
	}
	if top <= 0 || v <= 0 {
		return 8
	}
	return 8 + int(32*v/top)
}

// Pies renders the applicants comparisons side by side on one page.
func (r *Renderer) Pies(pies []transforms.Pie, theme models.Theme) (Fragment, error) {
	if len(pies) == 0 {
		return r.frame(TargetPies, TitleNoData, r.opts.PieHeight, r.noData(theme).Render)
	}
	page := components.NewPage()
	page.SetPageTitle("Applicants").SetLayout(components.PageFlexLayout)
	if r.opts.AssetsHost != "" {
		page.SetAssetsHost(r.opts.AssetsHost)
	}
	p := paletteFor(theme)
	for _, pie := range pies {
		c := charts.NewPie()
		c.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				Width:           "420px",
				Height:          r.opts.PieHeight,
				BackgroundColor: p.background,
				Theme:           p.theme,
			}),
			charts.WithTitleOpts(opts.Title{Title: pie.Title, Left: "center"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		)
		data := make([]opts.PieData, 0, len(pie.Slices))
		for i, s := range pie.Slices {
			data = append(data, opts.PieData{
				Name:      s.Label,
				Value:     s.Value,
				ItemStyle: &opts.ItemStyle{Color: pieColors[i%len(pieColors)]},
			})
		}
		c.AddSeries(pie.Title, data,
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{"30%", "65%"}}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		)
		page.AddCharts(c)
	}
	return r.frame(TargetPies, "Applicants", r.opts.PieHeight, page.Render)
}
