package timeframe

import (
	"fmt"
	"time"
)

// TimeFrameBucketSize is the granularity of a date dimension.
type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeYear  TimeFrameBucketSize = "year"
	TimeFrameBucketSizeMonth TimeFrameBucketSize = "month"
	TimeFrameBucketSizeWeek  TimeFrameBucketSize = "week"
	TimeFrameBucketSizeDay   TimeFrameBucketSize = "day"
	TimeFrameBucketSizeHour  TimeFrameBucketSize = "hour"
)

// TimeFrameRangeLabel represents the available time range presets
type TimeFrameRangeLabel string

const (
	TimeFrameRangeLabelToday        TimeFrameRangeLabel = "today"
	TimeFrameRangeLabelYesterday    TimeFrameRangeLabel = "yesterday"
	TimeFrameRangeLabelLast7Days    TimeFrameRangeLabel = "last_7_days"
	TimeFrameRangeLabelLast30Days   TimeFrameRangeLabel = "last_30_days"
	TimeFrameRangeLabelMonthToDate  TimeFrameRangeLabel = "month_to_date"
	TimeFrameRangeLabelLastMonth    TimeFrameRangeLabel = "last_month"
	TimeFrameRangeLabelYearToDate   TimeFrameRangeLabel = "year_to_date"
	TimeFrameRangeLabelLast12Months TimeFrameRangeLabel = "last_12_months"
	TimeFrameRangeLabelAllTime      TimeFrameRangeLabel = "all_time"
	TimeFrameRangeLabelCustom       TimeFrameRangeLabel = "custom"
)

// Presets lists the accepted preset labels in display order.
var Presets = []TimeFrameRangeLabel{
	TimeFrameRangeLabelToday,
	TimeFrameRangeLabelYesterday,
	TimeFrameRangeLabelLast7Days,
	TimeFrameRangeLabelLast30Days,
	TimeFrameRangeLabelMonthToDate,
	TimeFrameRangeLabelLastMonth,
	TimeFrameRangeLabelYearToDate,
	TimeFrameRangeLabelLast12Months,
	TimeFrameRangeLabelAllTime,
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TimeFrame is a closed interval [From, To] stored in UTC, plus the timezone
// the caller reasons in. An all-time frame has zero bounds.
type TimeFrame struct {
	From  time.Time
	To    time.Time
	Label TimeFrameRangeLabel
	Tz    *time.Location
}

// IsBounded reports whether the frame restricts anything.
func (tf *TimeFrame) IsBounded() bool {
	return tf != nil && !tf.From.IsZero() && !tf.To.IsZero()
}

func (tf *TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

func (tf *TimeFrame) Validate() error {
	if tf.From.After(tf.To) {
		return fmt.Errorf("fromTime must be before toTime")
	}
	return nil
}

// Offset returns the UTC offset of the frame's timezone at its start.
// Buckets use one fixed offset per query; ranges crossing a DST change shift
// by the DST delta on the far side.
func (tf *TimeFrame) Offset() Offset {
	if tf == nil || tf.Tz == nil {
		return Offset{}
	}
	at := tf.From
	if at.IsZero() {
		at = time.Now()
	}
	return OffsetAt(tf.Tz, at)
}

// Offset is a fixed UTC offset applied to timestamps before bucketing.
type Offset struct {
	Seconds int
}

// OffsetAt returns loc's offset at instant t.
func OffsetAt(loc *time.Location, t time.Time) Offset {
	if loc == nil {
		return Offset{}
	}
	_, secs := t.In(loc).Zone()
	return Offset{Seconds: secs}
}

// Modifier renders the SQLite date-function modifier for the offset, or "" for UTC.
func (o Offset) Modifier() string {
	if o.Seconds == 0 {
		return ""
	}
	return fmt.Sprintf("'%+d seconds'", o.Seconds)
}

// BucketExpression returns the SQLite expression that truncates column to the
// given bucket in the offset's local time. Buckets render as text:
// "2006-01-02 15:00", "2006-01-02", week start "2006-01-02", "2006-01", "2006".
func BucketExpression(column string, size TimeFrameBucketSize, off Offset) (string, error) {
	args := column
	if m := off.Modifier(); m != "" {
		args = column + ", " + m
	}

	switch size {
	case TimeFrameBucketSizeHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00', %s)", args), nil
	case TimeFrameBucketSizeDay:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", args), nil
	case TimeFrameBucketSizeWeek:
		// Monday-based weeks
		return fmt.Sprintf("date(%s, '-' || ((strftime('%%w', %s) + 6) %% 7) || ' days')", args, args), nil
	case TimeFrameBucketSizeMonth:
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", args), nil
	case TimeFrameBucketSizeYear:
		return fmt.Sprintf("strftime('%%Y', %s)", args), nil
	default:
		return "", fmt.Errorf("unsupported time frame bucket size: %v", size)
	}
}

// GetAppropriateTimeFrameSize picks a bucket size that keeps a series readable.
func GetAppropriateTimeFrameSize(fromTime, toTime time.Time) TimeFrameBucketSize {
	days := toTime.Sub(fromTime).Hours() / 24

	switch {
	case days >= 5*365:
		return TimeFrameBucketSizeYear
	case days >= 3*30:
		return TimeFrameBucketSizeMonth
	case days >= 2:
		return TimeFrameBucketSizeDay
	default:
		return TimeFrameBucketSizeHour
	}
}

// TruncateToBucketInTimezone truncates a time to the appropriate bucket boundary in the given timezone
func TruncateToBucketInTimezone(t time.Time, bucketSize TimeFrameBucketSize, loc *time.Location) time.Time {
	localTime := t.In(loc)
	year, month, day := localTime.Year(), localTime.Month(), localTime.Day()

	switch bucketSize {
	case TimeFrameBucketSizeYear:
		return time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeWeek:
		weekday := int(localTime.Weekday())
		if weekday == 0 { // Sunday
			weekday = 7
		}
		return time.Date(year, month, day-(weekday-1), 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeDay:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case TimeFrameBucketSizeHour:
		return time.Date(year, month, day, localTime.Hour(), 0, 0, 0, loc)
	default:
		return localTime
	}
}
