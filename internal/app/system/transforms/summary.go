// Package transforms turns raw fair rows into the view models the dashboard
// renders. Every function is pure.
package transforms

import (
	"math"
	"strconv"

	"github.com/dalemusser/stratapulse/internal/domain/models"
)

// SummaryRow is one labelled metric. Value is nil when the store has no value.
type SummaryRow struct {
	Label string
	Value *float64
}

// Display formats the value for tables and exports.
func (r SummaryRow) Display() string {
	if r.Value == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Value, 'f', -1, 64)
}

// PercentageRow is one named ratio expressed as a percentage.
type PercentageRow struct {
	Label   string
	Percent float64
}

type field struct {
	label string
	get   func(models.SummaryRecord) *float64
}

var summaryFields = []field{
	{"Total Registered", func(r models.SummaryRecord) *float64 { return r.TotalRegistered }},
	{"Visitors", func(r models.SummaryRecord) *float64 { return r.Visitors }},
	{"Applied to Job", func(r models.SummaryRecord) *float64 { return r.AppliedToJob }},
	{"Applications", func(r models.SummaryRecord) *float64 { return r.Application }},
	{"Unique Applicants", func(r models.SummaryRecord) *float64 { return r.UniqueApplicant }},
	{"Total Companies Jobs Applied", func(r models.SummaryRecord) *float64 { return r.TotalCompaniesJobsApply }},
	{"Direct Payment for Job Apply", func(r models.SummaryRecord) *float64 { return r.DirectPaymentForJobApply }},
	{"Paid by Applicants", func(r models.SummaryRecord) *float64 { return r.PaidByApplicants }},
	{"Became Pro User Today", func(r models.SummaryRecord) *float64 { return r.BecameProUserToday }},
	{"Amount from Today Pro Users", func(r models.SummaryRecord) *float64 { return r.AmountFromTodayProUsers }},
	{"Pro Job Seeker Count", func(r models.SummaryRecord) *float64 { return r.ProJobSeekerCount }},
	{"Total Amount Collected", func(r models.SummaryRecord) *float64 { return r.TotalAmountCollected }},
}

type ratio struct {
	label       string
	numerator   func(models.SummaryRecord) *float64
	denominator func(models.SummaryRecord) *float64
}

var ratios = []ratio{
	{"Visitors vs Total Registered",
		func(r models.SummaryRecord) *float64 { return r.Visitors },
		func(r models.SummaryRecord) *float64 { return r.TotalRegistered }},
	{"Direct Payment vs Total Payment",
		func(r models.SummaryRecord) *float64 { return r.DirectPaymentForJobApply },
		func(r models.SummaryRecord) *float64 { return r.TotalAmountCollected }},
	{"Paid Applicants vs Visitors",
		func(r models.SummaryRecord) *float64 { return r.PaidByApplicants },
		func(r models.SummaryRecord) *float64 { return r.Visitors }},
	{"Pro Users vs Visitors",
		func(r models.SummaryRecord) *float64 { return r.BecameProUserToday },
		func(r models.SummaryRecord) *float64 { return r.Visitors }},
	{"Pro Amount vs Total Amount",
		func(r models.SummaryRecord) *float64 { return r.AmountFromTodayProUsers },
		func(r models.SummaryRecord) *float64 { return r.TotalAmountCollected }},
}

// SummaryRows relabels the twelve metrics of the most recent record.
// No records yields an empty slice.
func SummaryRows(records []models.SummaryRecord) []SummaryRow {
	if len(records) == 0 {
		return []SummaryRow{}
	}
	last := records[len(records)-1]
	out := make([]SummaryRow, 0, len(summaryFields))
	for _, f := range summaryFields {
		out = append(out, SummaryRow{Label: f.label, Value: f.get(last)})
	}
	return out
}

// PercentageRows computes the five ratios of the most recent record, rounded
// to two decimals. A zero or missing denominator yields 0 and a missing
// numerator counts as 0.
func PercentageRows(records []models.SummaryRecord) []PercentageRow {
	if len(records) == 0 {
		return []PercentageRow{}
	}
	last := records[len(records)-1]
	out := make([]PercentageRow, 0, len(ratios))
	for _, r := range ratios {
		out = append(out, PercentageRow{Label: r.label, Percent: Percent(r.numerator(last), r.denominator(last))})
	}
	return out
}

// Percent returns round(n/d*100, 2), or 0 when d is nil, zero or not finite.
func Percent(n, d *float64) float64 {
	if d == nil || *d == 0 || math.IsNaN(*d) || math.IsInf(*d, 0) {
		return 0
	}
	num := 0.0
	if n != nil && !math.IsNaN(*n) {
		num = *n
	}
	p := num / *d * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return math.Round(p*100) / 100
}

// Slice is one wedge of a pie chart.
type Slice struct {
	Label string
	Value float64
}

// Pie is a titled two-way comparison.
type Pie struct {
	Title  string
	Slices []Slice
}

// PieSlices builds the three comparisons of the applicants tab from the most
// recent record. Missing values are drawn as 0. No records yields no pies.
func PieSlices(records []models.SummaryRecord) []Pie {
	if len(records) == 0 {
		return []Pie{}
	}
	r := records[len(records)-1]
	return []Pie{
		{Title: "Total Registered vs Visitors", Slices: []Slice{
			{"Total Registered", deref(r.TotalRegistered)},
			{"Visitors", deref(r.Visitors)},
		}},
		{Title: "Apply Limit Amount VS Pro User Amount", Slices: []Slice{
			{"Apply Limit Amount", deref(r.DirectPaymentForJobApply)},
			{"Pro User Amount", deref(r.AmountFromTodayProUsers)},
		}},
		{Title: "Unique Applicants vs Pro Job Seeker Count", Slices: []Slice{
			{"Unique Applicant", deref(r.UniqueApplicant)},
			{"Pro Job Seeker Count", deref(r.ProJobSeekerCount)},
		}},
	}
}

// ExportTable returns the Attribute/Value table written to export files,
// header row first.
func ExportTable(rows []SummaryRow) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, []string{"Attribute", "Value"})
	for _, r := range rows {
		out = append(out, []string{r.Label, r.Display()})
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
