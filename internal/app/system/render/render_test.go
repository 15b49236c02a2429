package render

import (
	"html"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/app/system/reveal"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
)

func f(v float64) *float64 { return &v }

func TestSummaryTable(t *testing.T) {
	r := New(Options{})
	frag, err := r.SummaryTable([]transforms.SummaryRow{
		{Label: "Total Registered", Value: f(120)},
		{Label: "Visitors <b>", Value: nil},
	}, models.ThemeDark)
	if err != nil {
		t.Fatalf("SummaryTable() error = %v", err)
	}
	if frag.Target != TargetSummaryTable || frag.Kind != KindHTML {
		t.Errorf("fragment = %s/%s", frag.Target, frag.Kind)
	}
	for _, want := range []string{"<th scope=\"col\">Attribute</th>", "<td>Total Registered</td>", "<td>120</td>", "Visitors &lt;b&gt;", "table-wrap--dark"} {
		if !strings.Contains(frag.HTML, want) {
			t.Errorf("HTML missing %q:\n%s", want, frag.HTML)
		}
	}
}

func TestSummaryTable_Empty(t *testing.T) {
	frag, err := New(Options{}).SummaryTable(nil, models.ThemeLight)
	if err != nil {
		t.Fatalf("SummaryTable() error = %v", err)
	}
	if !strings.Contains(frag.HTML, `colspan="2">No Data Available`) {
		t.Errorf("empty table not rendered:\n%s", frag.HTML)
	}
}

func TestPercentageTable(t *testing.T) {
	frag, err := New(Options{}).PercentageTable([]transforms.PercentageRow{
		{Label: "Visitors / Registered", Percent: 33.3},
	}, models.ThemeLight)
	if err != nil {
		t.Fatalf("PercentageTable() error = %v", err)
	}
	if !strings.Contains(frag.HTML, "<td>33.30</td>") {
		t.Errorf("percent not formatted:\n%s", frag.HTML)
	}
}

func TestCountdown(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock, err := phaseclock.New(start, start.Add(8*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	frag, err := New(Options{}).Countdown(clock.Evaluate(start.Add(9 * time.Hour)))
	if err != nil {
		t.Fatalf("Countdown() error = %v", err)
	}
	if !strings.Contains(frag.HTML, "Event Ended!") || !strings.Contains(frag.HTML, "countdown--after") {
		t.Errorf("countdown HTML = %s", frag.HTML)
	}
	if strings.Contains(frag.HTML, "countdown__subline") {
		t.Error("ended countdown should have no sub-line")
	}
}

func TestAnimation(t *testing.T) {
	r := New(Options{})

	idle, err := r.Animation(reveal.New(7), 9)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(idle.HTML, "disabled") {
		t.Error("start button should be enabled while idle")
	}

	running, err := r.Animation(reveal.New(7).Start().Tick(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(running.HTML, "disabled") || !strings.Contains(running.HTML, "Step 1 of 7") {
		t.Errorf("running HTML = %s", running.HTML)
	}
}

func TestThemeAndTab(t *testing.T) {
	r := New(Options{})
	if got := r.Theme(models.ThemeLight); got.Kind != KindState || got.HTML != "light" {
		t.Errorf("Theme() = %+v", got)
	}
	if got := r.Tab(models.TabTransaction); got.Target != TargetTab || got.HTML != "transaction" {
		t.Errorf("Tab() = %+v", got)
	}
}

// srcdoc returns the unescaped chart document inside a frame fragment.
func srcdoc(t *testing.T, frag Fragment) string {
	t.Helper()
	i := strings.Index(frag.HTML, `srcdoc="`)
	if i < 0 {
		t.Fatalf("no srcdoc in %s", frag.HTML)
	}
	rest := frag.HTML[i+len(`srcdoc="`):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		t.Fatalf("unterminated srcdoc in %s", frag.HTML)
	}
	return html.UnescapeString(rest[:j])
}

func TestIntervalChart(t *testing.T) {
	r := New(Options{})
	rows := []models.IntervalRow{
		{Start: "2024-05-01 09:00:00", Count: 3},
		{Start: "2024-05-01 09:05:00", Count: 4},
	}

	tests := []struct {
		name   string
		kind   models.SeriesKind
		rows   []models.IntervalRow
		counts []transforms.HourCount
		title  string
	}{
		{"five minute", models.SeriesFiveMinute, rows, nil, TitleFiveMinute},
		{"hourly", models.SeriesHourly, rows, []transforms.HourCount{{Hour: 9, Count: 7}}, TitleHourly},
		{"hourly failed", models.SeriesHourly, rows, nil, TitleNoData},
		{"no rows", models.SeriesFiveMinute, nil, nil, TitleNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := r.IntervalChart(tt.kind, tt.rows, tt.counts, models.ThemeLight)
			if err != nil {
				t.Fatalf("IntervalChart() error = %v", err)
			}
			if frag.Target != TargetIntervalChart {
				t.Errorf("Target = %q", frag.Target)
			}
			if doc := srcdoc(t, frag); !strings.Contains(doc, tt.title) {
				t.Errorf("chart document missing title %q", tt.title)
			}
		})
	}
}

func TestTransactionChart(t *testing.T) {
	r := New(Options{})
	points := []transforms.Point{{Hour: 9, Amount: 100}, {Hour: 10, Amount: 250.5}}

	for _, kind := range []models.ChartKind{models.ChartLine, models.ChartBar, models.ChartScatter} {
		t.Run(string(kind), func(t *testing.T) {
			frag, err := r.TransactionChart(kind, points, models.ThemeDark)
			if err != nil {
				t.Fatalf("TransactionChart() error = %v", err)
			}
			doc := srcdoc(t, frag)
			for _, want := range []string{TitleTransactions, "Amount (Taka)", `"` + string(kind) + `"`, "250.5"} {
				if !strings.Contains(doc, want) {
					t.Errorf("chart document missing %q", want)
				}
			}
		})
	}
}

func TestPies(t *testing.T) {
	r := New(Options{})
	pies := transforms.PieSlices([]models.SummaryRecord{{TotalRegistered: f(10), Visitors: f(4)}})

	frag, err := r.Pies(pies, models.ThemeLight)
	if err != nil {
		t.Fatalf("Pies() error = %v", err)
	}
	doc := srcdoc(t, frag)
	for _, p := range pies {
		if !strings.Contains(doc, p.Title) {
			t.Errorf("pie page missing %q", p.Title)
		}
	}

	empty, err := r.Pies(nil, models.ThemeLight)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(srcdoc(t, empty), TitleNoData) {
		t.Error("no pies should render the no-data chart")
	}
}

func TestSymbolSize(t *testing.T) {
	points := []transforms.Point{{Amount: 50}, {Amount: 100}}
	if got := symbolSize(100, points); got != 40 {
		t.Errorf("symbolSize(max) = %d, want 40", got)
	}
	if got := symbolSize(0, points); got != 8 {
		t.Errorf("symbolSize(0) = %d, want 8", got)
	}
}
