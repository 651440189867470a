// Package entity provides best-effort, deterministic extraction of typed
// fields from raw text. Extraction never fails: unresolved fields are simply
// absent from the result, never an error. All functions are pure; the
// reference time is passed explicitly so turns are reproducible.
package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/solari-labs/concierge/pkg/flow"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDayRe  = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})\b`)
	nextDayRe   = regexp.MustCompile(`\bnext\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	clock12Re   = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Re   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	moneySymRe  = regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)`)
	moneyWordRe = regexp.MustCompile(`\b(\d+(?:\.\d{1,2})?)\s*(?:dollars|usd)\b`)
	emailRe     = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
	phoneRe     = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// Date resolves a calendar date from text, by precedence: explicit ISO date,
// slash numeric (current year assumed when omitted), named month + day,
// relative keyword (today / tomorrow / "next <weekday>"), then time-only
// (resolves to today). The returned time is midnight in now's location.
func Date(text string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(text)

	if m := isoDateRe.FindStringSubmatch(t); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if valid := validYMD(y, mo, d); valid {
			return midnight(y, time.Month(mo), d, now), true
		}
	}

	if m := slashDateRe.FindStringSubmatch(t); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y := now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
			if y < 100 {
				y += 2000
			}
		}
		if validYMD(y, mo, d) {
			return midnight(y, time.Month(mo), d, now), true
		}
	}

	if m := monthDayRe.FindStringSubmatch(t); m != nil {
		d, _ := strconv.Atoi(m[2])
		mo := months[m[1]]
		if d >= 1 && d <= 31 {
			return midnight(now.Year(), mo, d, now), true
		}
	}

	if strings.Contains(t, "tomorrow") {
		return midnight(now.Year(), now.Month(), now.Day(), now).AddDate(0, 0, 1), true
	}
	if strings.Contains(t, "today") {
		return midnight(now.Year(), now.Month(), now.Day(), now), true
	}
	if m := nextDayRe.FindStringSubmatch(t); m != nil {
		target := weekdays[m[1]]
		offset := (int(target) - int(now.Weekday()) + 7) % 7
		if offset == 0 {
			// "next monday" said on a Monday means a week out, never today.
			offset = 7
		}
		return midnight(now.Year(), now.Month(), now.Day(), now).AddDate(0, 0, offset), true
	}

	if _, _, ok := Clock(text); ok {
		return midnight(now.Year(), now.Month(), now.Day(), now), true
	}

	return time.Time{}, false
}

// Clock resolves a time of day. 12-hour with am/pm wins over bare 24-hour
// HH:MM; pm adds 12 unless already 12, and 12am maps to 0.
func Clock(text string) (hour, minute int, ok bool) {
	t := strings.ToLower(text)

	if m := clock12Re.FindStringSubmatch(t); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return 0, 0, false
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return hour, minute, true
	}

	if m := clock24Re.FindStringSubmatch(t); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}

	return 0, 0, false
}

// Money resolves an amount, preferring $NN.NN over "NN dollars"/"NN usd".
func Money(text string) (float64, bool) {
	t := strings.ToLower(text)
	if m := moneySymRe.FindStringSubmatch(t); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
	if m := moneyWordRe.FindStringSubmatch(t); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		return v, err == nil
	}
	return 0, false
}

// Email resolves the first email address in text.
func Email(text string) (string, bool) {
	m := emailRe.FindString(text)
	return m, m != ""
}

// Phone resolves the first phone-shaped number in text.
func Phone(text string) (string, bool) {
	m := phoneRe.FindString(text)
	return strings.TrimSpace(m), m != ""
}

// ID resolves an opaque identifier of the form {prefix}_[a-z0-9]+,
// case-insensitively. The returned ID is lowercased.
func ID(text, prefix string) (string, bool) {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(prefix) + `_[a-z0-9]+\b`)
	m := re.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// Extract builds the generic entity bag every spine starts from: date, time,
// amount, email and phone when present.
func Extract(text string, now time.Time) flow.EntityBag {
	bag := flow.EntityBag{}
	if d, ok := Date(text, now); ok {
		_ = bag.Set("date", d)
	}
	if h, m, ok := Clock(text); ok {
		_ = bag.Set("time", fmt.Sprintf("%02d:%02d", h, m))
	}
	if amt, ok := Money(text); ok {
		_ = bag.Set("amount", amt)
	}
	if email, ok := Email(text); ok {
		_ = bag.Set("email", email)
	}
	// Date literals are digit runs too; scrub them before phone matching so
	// "2026-03-14" never reads as a phone number.
	scrubbed := isoDateRe.ReplaceAllString(text, " ")
	scrubbed = slashDateRe.ReplaceAllString(scrubbed, " ")
	if phone, ok := Phone(scrubbed); ok {
		_ = bag.Set("phone", phone)
	}
	return bag
}

// RequireFields returns the subset of required keys absent or empty in the
// bag, preserving the required list's order. Every spine uses this single
// function to decide Ask versus Execute.
func RequireFields(bag flow.EntityBag, required []string) []string {
	var missing []string
	for _, key := range required {
		if !bag.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

func midnight(y int, m time.Month, d int, ref time.Time) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, ref.Location())
}

func validYMD(y, m, d int) bool {
	return y >= 1 && m >= 1 && m <= 12 && d >= 1 && d <= 31
}
