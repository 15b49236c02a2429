// internal/domain/models/fair.go
package models

// SummaryRecord is one row of the fair summary table. Every metric is nullable
// in the store; a nil field means the value has not been recorded yet.
type SummaryRecord struct {
	TotalRegistered          *float64 `db:"total_registered" bson:"total_registered" json:"total_registered"`
	Visitors                 *float64 `db:"visitors" bson:"visitors" json:"visitors"`
	AppliedToJob             *float64 `db:"applied_to_job" bson:"applied_to_job" json:"applied_to_job"`
	Application              *float64 `db:"application" bson:"application" json:"application"`
	UniqueApplicant          *float64 `db:"unique_applicant" bson:"unique_applicant" json:"unique_applicant"`
	TotalCompaniesJobsApply  *float64 `db:"total_companies_jobs_apply" bson:"total_companies_jobs_apply" json:"total_companies_jobs_apply"`
	DirectPaymentForJobApply *float64 `db:"direct_payment_for_job_apply" bson:"direct_payment_for_job_apply" json:"direct_payment_for_job_apply"`
	PaidByApplicants         *float64 `db:"paid_by_applicants" bson:"paid_by_applicants" json:"paid_by_applicants"`
	BecameProUserToday       *float64 `db:"became_pro_user_today" bson:"became_pro_user_today" json:"became_pro_user_today"`
	AmountFromTodayProUsers  *float64 `db:"amount_from_today_pro_users" bson:"amount_from_today_pro_users" json:"amount_from_today_pro_users"`
	ProJobSeekerCount        *float64 `db:"pro_job_seeker_count" bson:"pro_job_seeker_count" json:"pro_job_seeker_count"`
	TotalAmountCollected     *float64 `db:"total_amount_collected" bson:"total_amount_collected" json:"total_amount_collected"`
}

// IntervalRow is one bucket of the pro-purchase interval series. Start is the
// interval start exactly as the store renders it.
type IntervalRow struct {
	Start string `db:"intervalstart" bson:"intervalstart" json:"intervalstart"`
	Count int64  `db:"opidcount" bson:"opidcount" json:"opidcount"`
}

// TransactionRow is the amount collected during one hour of the fair day.
type TransactionRow struct {
	Hour   int     `db:"hour" bson:"hour" json:"hour"`
	Amount float64 `db:"amount" bson:"amount" json:"amount"`
}

// Tab identifies one of the dashboard tabs.
type Tab string

const (
	TabSummary     Tab = "summary"
	TabApplicants  Tab = "applicants"
	TabTransaction Tab = "transaction"
)

// AllTabs returns the tabs in display order.
func AllTabs() []Tab {
	return []Tab{TabSummary, TabApplicants, TabTransaction}
}

// IsValidTab checks if a tab name is valid.
func IsValidTab(s string) bool {
	for _, t := range AllTabs() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Theme is the colour scheme selected by the visitor.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme returns the theme named by s, or fallback when s is not a theme.
func ParseTheme(s string, fallback Theme) Theme {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s)
	}
	return fallback
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// SeriesKind selects the granularity of the interval chart.
type SeriesKind string

const (
	SeriesFiveMinute SeriesKind = "5min"
	SeriesHourly     SeriesKind = "hourly"
)

// IsValidSeriesKind checks if a series kind is valid.
func IsValidSeriesKind(s string) bool {
	return s == string(SeriesFiveMinute) || s == string(SeriesHourly)
}

// ChartKind selects how the transaction series is drawn.
type ChartKind string

const (
	ChartLine    ChartKind = "line"
	ChartBar     ChartKind = "bar"
	ChartScatter ChartKind = "scatter"
)

// IsValidChartKind checks if a chart kind is valid.
func IsValidChartKind(s string) bool {
	switch ChartKind(s) {
	case ChartLine, ChartBar, ChartScatter:
		return true
	}
	return false
}
