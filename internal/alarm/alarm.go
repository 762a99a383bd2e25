package alarm

import (
	"fmt"
	"time"
)

// RepeatMode classifies an alarm's day-of-week recurrence.
type RepeatMode int

const (
	// RepeatOnce fires a single time, today only.
	RepeatOnce RepeatMode = iota
	// RepeatDaily fires every day.
	RepeatDaily
	// RepeatWeekdays fires Monday through Friday.
	RepeatWeekdays
	// RepeatWeekends fires Saturday and Sunday.
	RepeatWeekends
	// RepeatCustom fires on the days of a caller-supplied weekday mask.
	RepeatCustom
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOnce:
		return "once"
	case RepeatDaily:
		return "daily"
	case RepeatWeekdays:
		return "weekdays"
	case RepeatWeekends:
		return "weekends"
	case RepeatCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of an alarm.
type Status int

const (
	// StatusEnabled means the alarm is armed for its next occurrence.
	StatusEnabled Status = iota
	// StatusDisabled means the alarm never fires.
	StatusDisabled
	// StatusTriggered means the alarm is ringing, awaiting snooze or stop.
	StatusTriggered
	// StatusSnoozed means the alarm will ring again when its snooze elapses.
	StatusSnoozed
)

func (s Status) String() string {
	switch s {
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusTriggered:
		return "ringing"
	case StatusSnoozed:
		return "snoozed"
	default:
		return "unknown"
	}
}

// Weekday masks, bit i = weekday i, 0 = Sunday.
const (
	maskDaily    = 0b1111111
	maskWeekdays = 0b0111110
	maskWeekends = 0b1000001
)

// InvalidID is the sentinel returned by AddAlarm for out-of-range times.
const InvalidID = -1

// Alarm is one wall-clock alarm record.
//
// Snooze count and the trigger/snooze-due timestamps are transient ring
// state and are excluded from persistence: a crash must never leave an
// alarm stuck mid-ring.
type Alarm struct {
	ID             int        `json:"id"`
	Hour           int        `json:"hour"`
	Minute         int        `json:"minute"`
	Repeat         RepeatMode `json:"repeat"`
	DaysMask       uint8      `json:"weekdays"`
	Status         Status     `json:"status"`
	Label          string     `json:"label"`
	Sound          string     `json:"sound"`
	MaxSnoozeCount int        `json:"max_snooze"`
	SnoozeMinutes  int        `json:"snooze_minutes"`

	SnoozeCount   int   `json:"-"`
	LastTriggered int64 `json:"-"`
	SnoozeDue     int64 `json:"-"`
}

// WeekdayActive reports whether the alarm may fire on the given weekday
// (0 = Sunday). Once alarms are always eligible today.
func (a *Alarm) WeekdayActive(weekday int) bool {
	if a.Repeat == RepeatOnce {
		return true
	}

	return a.DaysMask&(1<<weekday) != 0
}

// maskForMode derives the weekday mask at creation/modification time.
// The three fixed modes override the supplied mask, Custom keeps it, and
// Once ignores the mask entirely.
func maskForMode(mode RepeatMode, supplied uint8) uint8 {
	switch mode {
	case RepeatDaily:
		return maskDaily
	case RepeatWeekdays:
		return maskWeekdays
	case RepeatWeekends:
		return maskWeekends
	case RepeatCustom:
		return supplied
	default:
		return 0
	}
}

// FormatTime renders a minute-resolution time as HH:MM.
func FormatTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// Clock supplies local wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Events receives alarm lifecycle notifications.
//
// Handlers are invoked on the calling goroutine after the store releases
// its lock, so reading the Manager from a handler is safe. Device-affecting
// work (banners, ringtones) should still be handed to the
// serialized-execution context.
type Events interface {
	AlarmTriggered(a Alarm)
	AlarmSnoozed(a Alarm)
	AlarmStopped(a Alarm)
}
