package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// SalaryEstimate mirrors the structured estimate the search API attaches to a job.
type SalaryEstimate struct {
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
	Currency string   `json:"currency,omitempty"`
	UnitText string   `json:"unitText,omitempty"`
}

// Salary is a salary range parsed from free text.
type Salary struct {
	Min      float64
	Max      float64
	Currency string
	Period   string
}

const defaultCurrency = "USD"

var (
	printer = message.NewPrinter(language.English)

	currencySymbols = map[string]string{
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
		"CAD": "CA$",
		"AUD": "A$",
		"INR": "₹",
		"JPY": "¥",
	}

	amount        = `(\d[\d,]*(?:\.\d+)?)\s*([kK])?`
	salaryRange   = regexp.MustCompile(`\$\s*` + amount + `\s*(?:-|–|—|to)\s*\$?\s*` + amount)
	salarySingle  = regexp.MustCompile(`\$\s*` + amount)
	salaryPeriod  = regexp.MustCompile(`(?i)(?:/\s*|\bper\s+|\ban?\s+)(hour|hr|year|yr|annum|month|mo|week|wk|day)s?\b|\b(hourly|annually|yearly|monthly|weekly|daily)\b`)
	periodAliases = map[string]string{
		"hour": "hour", "hr": "hour", "hourly": "hour",
		"year": "year", "yr": "year", "annum": "year", "annually": "year", "yearly": "year",
		"month": "month", "mo": "month", "monthly": "month",
		"week": "week", "wk": "week", "weekly": "week",
		"day": "day", "daily": "day",
	}
)

// FormatSalary renders an estimate like "$80,000 - $120,000/year". It returns
// false when the estimate is nil or carries neither bound.
func FormatSalary(est *SalaryEstimate) (string, bool) {
	if est == nil || (est.MinValue == nil && est.MaxValue == nil) {
		return "", false
	}
	currency := strings.ToUpper(strings.TrimSpace(est.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	parts := make([]string, 0, 2)
	for _, v := range []*float64{est.MinValue, est.MaxValue} {
		if v != nil {
			parts = append(parts, formatCurrency(*v, currency))
		}
	}
	out := strings.Join(parts, " - ")
	if unit := strings.TrimSpace(est.UnitText); unit != "" {
		out += "/" + strings.ToLower(unit)
	}
	return out, true
}

func formatCurrency(v float64, currency string) string {
	n := printer.Sprintf("%d", int64(math.Round(v)))
	if sym, ok := currencySymbols[currency]; ok {
		return sym + n
	}
	return currency + " " + n
}

// ParseSalaryFromText extracts a USD range from text such as
// "$80,000 - $120,000/year", "$80K - $120K" or "$50/hour". It returns nil when
// no dollar amount is present.
//
// Without a period marker the period is "year", unless the amount is below
// 1000 and carries no K suffix, in which case it reads as an hourly rate.
func ParseSalaryFromText(text string) *Salary {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		minV, maxV float64
		thousands  bool
	)
	if m := salaryRange.FindStringSubmatch(text); m != nil {
		lo, okLo := parseAmount(m[1], m[2])
		hi, okHi := parseAmount(m[3], m[4])
		if !okLo || !okHi {
			return nil
		}
		minV, maxV = lo, hi
		thousands = m[2] != "" || m[4] != ""
	} else if m := salarySingle.FindStringSubmatch(text); m != nil {
		v, ok := parseAmount(m[1], m[2])
		if !ok {
			return nil
		}
		minV, maxV = v, v
		thousands = m[2] != ""
	} else {
		return nil
	}

	period := periodFromText(text)
	if period == "" {
		period = "year"
		if !thousands && maxV < 1000 {
			period = "hour"
		}
	}
	return &Salary{Min: minV, Max: maxV, Currency: defaultCurrency, Period: period}
}

func parseAmount(digits, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if suffix != "" {
		v *= 1000
	}
	return v, true
}

func periodFromText(text string) string {
	m := salaryPeriod.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	word := m[1]
	if word == "" {
		word = m[2]
	}
	return periodAliases[strings.ToLower(word)]
}

// SalaryDetailsFromText parses text into listing salary details, or nil when
// no amount is present.
func SalaryDetailsFromText(text string) *crawler.SalaryDetails {
	parsed := ParseSalaryFromText(text)
	if parsed == nil {
		return nil
	}
	lo, hi := parsed.Min, parsed.Max
	return &crawler.SalaryDetails{Min: &lo, Max: &hi, Currency: parsed.Currency, Period: parsed.Period}
}
