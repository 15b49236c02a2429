// Package render turns dashboard view models into HTML fragments that are
// pushed to the browser. Tables and the countdown come from html/template;
// charts are go-echarts pages embedded as iframe srcdoc so each fragment is
// self-contained.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/app/system/reveal"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
)

// Fragment targets. The browser replaces the element with the matching
// data-target attribute.
const (
	TargetTheme            = "theme"
	TargetTab              = "tab"
	TargetCountdown        = "countdown"
	TargetSummaryTable     = "summary-table"
	TargetPercentageTable  = "percentage-table"
	TargetPies             = "pies"
	TargetIntervalChart    = "interval-chart"
	TargetTransactionChart = "transaction-chart"
	TargetAnimation        = "animation"
)

// Fragment kinds.
const (
	KindHTML  = "html"
	KindState = "state"
)

// Fragment is one replaceable piece of the page.
type Fragment struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	HTML   string `json:"html"`
}

//go:embed templates/*.gohtml
var templateFS embed.FS

var fragments = template.Must(template.New("fragments").ParseFS(templateFS, "templates/*.gohtml"))

// Options sizes the charts.
type Options struct {
	ChartWidth  string
	ChartHeight string
	PieHeight   string
	AssetsHost  string
}

// Renderer builds fragments. It holds no per-session state and is safe for
// concurrent use.
type Renderer struct {
	opts Options
}

// New creates a renderer. Empty options take defaults.
func New(opts Options) *Renderer {
	if opts.ChartWidth == "" {
		opts.ChartWidth = "100%"
	}
	if opts.ChartHeight == "" {
		opts.ChartHeight = "480px"
	}
	if opts.PieHeight == "" {
		opts.PieHeight = "400px"
	}
	return &Renderer{opts: opts}
}

func execute(target, name string, data any) (Fragment, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return Fragment{}, fmt.Errorf("render %s: %w", target, err)
	}
	return Fragment{Target: target, Kind: KindHTML, HTML: buf.String()}, nil
}

// Theme reports the active theme. The client swaps its body class.
func (r *Renderer) Theme(theme models.Theme) Fragment {
	return Fragment{Target: TargetTheme, Kind: KindState, HTML: string(theme)}
}

// Tab reports the selected tab. The client shows the matching panel.
func (r *Renderer) Tab(tab models.Tab) Fragment {
	return Fragment{Target: TargetTab, Kind: KindState, HTML: string(tab)}
}

type countdownVM struct {
	Phase    string
	Headline string
	Subline  string
}

// Countdown renders the phase headline and sub-line.
func (r *Renderer) Countdown(st phaseclock.State) (Fragment, error) {
	head, sub := st.Text()
	return execute(TargetCountdown, "countdown", countdownVM{
		Phase:    st.Phase.String(),
		Headline: head,
		Subline:  sub,
	})
}

type tableVM struct {
	Theme   string
	Caption string
	Header  []string
	Rows    [][]string
	Empty   string
}

// SummaryTable renders the Attribute/Value table. No rows renders the empty state.
func (r *Renderer) SummaryTable(rows []transforms.SummaryRow, theme models.Theme) (Fragment, error) {
	vm := tableVM{
		Theme:   string(theme),
		Caption: "Fair Summary",
		Header:  []string{"Attribute", "Value"},
		Empty:   "No Data Available",
	}
	for _, row := range rows {
		vm.Rows = append(vm.Rows, []string{row.Label, row.Display()})
	}
	return execute(TargetSummaryTable, "table", vm)
}

// PercentageTable renders the ratio table.
func (r *Renderer) PercentageTable(rows []transforms.PercentageRow, theme models.Theme) (Fragment, error) {
	vm := tableVM{
		Theme:   string(theme),
		Caption: "Percentages",
		Header:  []string{"Attribute", "Percentage (%)"},
		Empty:   "No Data Available",
	}
	for _, row := range rows {
		vm.Rows = append(vm.Rows, []string{row.Label, fmt.Sprintf("%.2f", row.Percent)})
	}
	return execute(TargetPercentageTable, "table", vm)
}

type animationVM struct {
	Status   string
	Step     int
	MaxStep  int
	Cutoff   int
	CanStart bool
}

// Animation renders the reveal progress and the start control.
func (r *Renderer) Animation(st reveal.State, cutoff int) (Fragment, error) {
	return execute(TargetAnimation, "animation", animationVM{
		Status:   st.Status.String(),
		Step:     st.Step,
		MaxStep:  st.MaxStep,
		Cutoff:   cutoff,
		CanStart: st.Status == reveal.Idle,
	})
}

type frameVM struct {
	Title  string
	Height string
	Doc    string
}

// frame wraps a rendered chart document in an iframe fragment.
func (r *Renderer) frame(target, title, height string, render func(io.Writer) error) (Fragment, error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return Fragment{}, fmt.Errorf("render %s chart: %w", target, err)
	}
	return execute(target, "frame", frameVM{Title: title, Height: height, Doc: buf.String()})
}
