package condition

import (
	"fmt"
	"strings"
)

// TimePeriod is a (year, code) pair, e.g. {2021, "AY"}.
type TimePeriod struct {
	Year int    `json:"year"`
	Code string `json:"code"`
}

type timePeriodCode struct {
	code       string
	identifier string
	// spansYears renders labels like 2021/22.
	spansYears bool
}

var timePeriodCodes = buildTimePeriodCodes()

var (
	identifiersByCode = make(map[string]timePeriodCode, len(timePeriodCodes))
	codesByIdentifier = make(map[string]string, len(timePeriodCodes))
)

func init() {
	for _, c := range timePeriodCodes {
		identifiersByCode[c.code] = c
		codesByIdentifier[strings.ToLower(c.identifier)] = c.code
	}
}

func buildTimePeriodCodes() []timePeriodCode {
	codes := []timePeriodCode{
		{"AY", "Academic year", true},
		{"CY", "Calendar year", false},
		{"FY", "Financial year", true},
		{"TY", "Tax year", true},
		{"RY", "Reporting year", false},
		{"T1", "Autumn term", true},
		{"T1T2", "Autumn and spring term", true},
		{"T2", "Spring term", true},
		{"T3", "Summer term", true},
	}
	for _, prefix := range []struct {
		code  string
		label string
		spans bool
	}{
		{"AY", "Academic year", true},
		{"CY", "Calendar year", false},
		{"FY", "Financial year", true},
		{"TY", "Tax year", true},
	} {
		for q := 1; q <= 4; q++ {
			codes = append(codes, timePeriodCode{
				code:       fmt.Sprintf("%sQ%d", prefix.code, q),
				identifier: fmt.Sprintf("%s Q%d", prefix.label, q),
				spansYears: prefix.spans,
			})
		}
	}
	months := []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	for i, month := range months {
		codes = append(codes, timePeriodCode{fmt.Sprintf("M%d", i+1), month, false})
	}
	for w := 1; w <= 53; w++ {
		codes = append(codes, timePeriodCode{fmt.Sprintf("W%d", w), fmt.Sprintf("Week %d", w), false})
	}
	return codes
}

// TimePeriodCodes returns every known time period code.
func TimePeriodCodes() []string {
	out := make([]string, len(timePeriodCodes))
	for i, c := range timePeriodCodes {
		out[i] = c.code
	}
	return out
}

// TimePeriodIdentifier maps a code to the on-disk time_identifier value.
func TimePeriodIdentifier(code string) (string, bool) {
	c, ok := identifiersByCode[code]
	return c.identifier, ok
}

// TimePeriodCode maps an on-disk time_identifier back to its code. Matching
// is case-insensitive.
func TimePeriodCode(identifier string) (string, bool) {
	code, ok := codesByIdentifier[strings.ToLower(strings.TrimSpace(identifier))]
	return code, ok
}

// FormatTimePeriodLabel renders a human label such as "2021/22 Q1" or
// "2021 Week 3".
func FormatTimePeriodLabel(code string, year int) string {
	c, ok := identifiersByCode[code]
	if !ok {
		return fmt.Sprintf("%d", year)
	}

	base := fmt.Sprintf("%d", year)
	if c.spansYears {
		base = fmt.Sprintf("%d/%02d", year, (year+1)%100)
	}

	switch {
	case code == "AY" || code == "CY" || code == "FY" || code == "TY" || code == "RY":
		return base
	case strings.HasSuffix(code, "Q1"), strings.HasSuffix(code, "Q2"),
		strings.HasSuffix(code, "Q3"), strings.HasSuffix(code, "Q4"):
		return base + " " + code[len(code)-2:]
	default:
		return base + " " + c.identifier
	}
}
