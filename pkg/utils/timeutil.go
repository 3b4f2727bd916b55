package utils

import (
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// DateOnly truncates t to midnight IST of the same calendar day.
func DateOnly(t time.Time) time.Time {
	t = t.In(IST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IST)
}

// Today returns today's date (midnight IST).
func Today() time.Time {
	return DateOnly(NowIST())
}

// IsWeekend reports whether t falls on Saturday or Sunday in IST.
func IsWeekend(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// CurrentWorkingDay rolls d back to the nearest weekday. Weekdays are
// returned unchanged, so the function is idempotent. Trading holidays are
// not skipped; the archives simply will not exist for them.
func CurrentWorkingDay(d time.Time) time.Time {
	d = DateOnly(d)
	for IsWeekend(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// PreviousWorkingDay returns the weekday strictly before d.
func PreviousWorkingDay(d time.Time) time.Time {
	return CurrentWorkingDay(DateOnly(d).AddDate(0, 0, -1))
}

// ResolveDefaultDates returns the comparison pair for a reference time:
// the current working day and the working day before it.
func ResolveDefaultDates(now time.Time) (current, previous time.Time) {
	current = CurrentWorkingDay(now)
	return current, PreviousWorkingDay(current)
}

// IsTradingHoliday checks if the given date is an NSE trading holiday.
// This list should be updated annually.
func IsTradingHoliday(t time.Time) bool {
	_, isHoliday := nseHolidays2026[t.In(IST).Format("2006-01-02")]
	return isHoliday
}

// HolidayName returns the holiday name for t, or "" for a regular day.
func HolidayName(t time.Time) string {
	return nseHolidays2026[t.In(IST).Format("2006-01-02")]
}

// NSE Trading Holidays for 2026 (update annually).
// Source: NSE India circular.
var nseHolidays2026 = map[string]string{
	"2026-01-26": "Republic Day",
	"2026-02-17": "Mahashivratri",
	"2026-03-10": "Holi",
	"2026-03-30": "Id-ul-Fitr (Ramadan)",
	"2026-04-02": "Ram Navami",
	"2026-04-03": "Good Friday",
	"2026-04-14": "Dr. Ambedkar Jayanti",
	"2026-05-01": "Maharashtra Day",
	"2026-05-25": "Buddha Purnima",
	"2026-06-05": "Id-ul-Zuha (Bakri Id)",
	"2026-07-06": "Muharram",
	"2026-08-15": "Independence Day",
	"2026-08-18": "Parsi New Year",
	"2026-09-04": "Milad-un-Nabi",
	"2026-10-02": "Mahatma Gandhi Jayanti",
	"2026-10-20": "Dussehra",
	"2026-11-09": "Diwali (Laxmi Pujan)",
	"2026-11-10": "Diwali (Balipratipada)",
	"2026-11-30": "Guru Nanak Jayanti",
	"2026-12-25": "Christmas",
}

// ParseDateIST parses a date string in "2006-01-02" format and returns it in IST.
func ParseDateIST(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, IST)
}

// FormatDateIST formats a time.Time to "2006-01-02" in IST.
func FormatDateIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}

// FormatDateTimeIST formats a time.Time to "2006-01-02 15:04:05 IST".
func FormatDateTimeIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02 15:04:05 IST")
}

// FormatCompactDate formats t as DDMMYYYY, the participant OI archive form.
func FormatCompactDate(t time.Time) string {
	return t.In(IST).Format("02012006")
}

// FormatArchiveDate formats t as DD-Mon-YYYY, the FII statistics archive form.
func FormatArchiveDate(t time.Time) string {
	return t.In(IST).Format("02-Jan-2006")
}

// MarketStatus returns the market status string for the given time.
func MarketStatus(now time.Time) string {
	now = now.In(IST)

	if IsWeekend(now) {
		return "CLOSED (Weekend)"
	}
	if name := HolidayName(now); name != "" {
		return "CLOSED (" + name + ")"
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IST)
	close := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, IST)
	preOpen := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, IST)

	switch {
	case now.Before(preOpen):
		return "PRE-MARKET"
	case now.Before(open):
		return "PRE-OPEN SESSION"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
