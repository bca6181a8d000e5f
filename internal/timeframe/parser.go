package timeframe

import (
	"fmt"
	"time"
)

type TimeFrameParserParams struct {
	Preset   string
	FromDate string
	ToDate   string
	Tz       string
}

// TimeFrameParser resolves presets and explicit dates into UTC time frames.
type TimeFrameParser struct {
	timeProvider TimeProvider
	defaultTz    *time.Location
}

func NewTimeFrameParser(defaultTz *time.Location, timeProvider ...TimeProvider) *TimeFrameParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	if defaultTz == nil {
		defaultTz = time.UTC
	}

	return &TimeFrameParser{
		timeProvider: provider,
		defaultTz:    defaultTz,
	}
}

// ParseTimeFrame resolves params. A preset and explicit dates are mutually
// exclusive; with neither the frame is all-time.
func (p *TimeFrameParser) ParseTimeFrame(params TimeFrameParserParams) (*TimeFrame, error) {
	loc := p.defaultTz
	if params.Tz != "" {
		l, err := time.LoadLocation(params.Tz)
		if err != nil {
			return nil, fmt.Errorf("error loading timezone: %w", err)
		}
		loc = l
	}

	if params.Preset != "" && (params.FromDate != "" || params.ToDate != "") {
		return nil, fmt.Errorf("preset %q cannot be combined with from/to dates", params.Preset)
	}

	var (
		tf  *TimeFrame
		err error
	)
	switch {
	case params.Preset != "":
		tf, err = p.parsePreset(TimeFrameRangeLabel(params.Preset), loc)
	case params.FromDate != "" || params.ToDate != "":
		tf, err = p.parseCustomDateRange(params, loc)
	default:
		tf = &TimeFrame{Label: TimeFrameRangeLabelAllTime}
	}
	if err != nil {
		return nil, err
	}

	tf.Tz = loc
	if tf.IsBounded() {
		tf.From = tf.From.UTC()
		tf.To = tf.To.UTC()
		if err := tf.Validate(); err != nil {
			return nil, err
		}
	}
	return tf, nil
}

func (p *TimeFrameParser) parsePreset(label TimeFrameRangeLabel, loc *time.Location) (*TimeFrame, error) {
	now := p.timeProvider.Now(loc)
	today := startOfDay(now, loc)
	endOfToday := endOfDay(today)

	var from, to time.Time
	switch label {
	case TimeFrameRangeLabelToday:
		from, to = today, endOfToday
	case TimeFrameRangeLabelYesterday:
		from = today.AddDate(0, 0, -1)
		to = endOfDay(from)
	case TimeFrameRangeLabelLast7Days:
		from, to = today.AddDate(0, 0, -6), endOfToday
	case TimeFrameRangeLabelLast30Days:
		from, to = today.AddDate(0, 0, -29), endOfToday
	case TimeFrameRangeLabelMonthToDate:
		from, to = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), endOfToday
	case TimeFrameRangeLabelLastMonth:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		from = firstOfMonth.AddDate(0, -1, 0)
		to = firstOfMonth.Add(-time.Nanosecond)
	case TimeFrameRangeLabelYearToDate:
		from, to = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc), endOfToday
	case TimeFrameRangeLabelLast12Months:
		from, to = today.AddDate(0, -12, 1), endOfToday
	case TimeFrameRangeLabelAllTime:
		return &TimeFrame{Label: label}, nil
	default:
		return nil, fmt.Errorf("unknown preset %q", label)
	}

	return &TimeFrame{From: from, To: to, Label: label}, nil
}

func (p *TimeFrameParser) parseCustomDateRange(params TimeFrameParserParams, loc *time.Location) (*TimeFrame, error) {
	now := p.timeProvider.Now(loc)

	// A missing bound defaults to a 30 day window ending today.
	defaultTo := endOfDay(startOfDay(now, loc))
	defaultFrom := startOfDay(now, loc).AddDate(0, 0, -29)

	from, err := parseDateWithDefault(params.FromDate, defaultFrom, loc, false)
	if err != nil {
		return nil, fmt.Errorf("invalid 'from' date: %w", err)
	}

	to, err := parseDateWithDefault(params.ToDate, defaultTo, loc, true)
	if err != nil {
		return nil, fmt.Errorf("invalid 'to' date: %w", err)
	}

	return &TimeFrame{From: from, To: to, Label: TimeFrameRangeLabelCustom}, nil
}

// parseDateWithDefault accepts YYYY-MM-DD (interpreted in loc, whole day) or RFC3339.
func parseDateWithDefault(dateStr string, defaultDate time.Time, loc *time.Location, isEndDate bool) (time.Time, error) {
	if dateStr == "" {
		return defaultDate, nil
	}

	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t, nil
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}
	if isEndDate {
		return endOfDay(date), nil
	}
	return date, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
