package alarm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"chime/internal/settings"
)

// Persistence keys within the manager's settings namespace.
const (
	keyCount  = "count"
	keyNextID = "next_id"
)

func keyAlarm(i int) string {
	return fmt.Sprintf("alarm_%d", i)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithEvents sets the lifecycle event sink at construction time.
func WithEvents(ev Events) Option {
	return func(m *Manager) {
		m.events = ev
	}
}

// Manager owns the alarm list: creation, persistence, and the per-minute
// trigger scan. All methods are safe for concurrent use.
//
// The mutex protects the in-memory list only; persistence snapshots the
// list under the lock and writes to the store after releasing it.
type Manager struct {
	log   *slog.Logger
	clock Clock
	store settings.Store

	mu               sync.Mutex
	alarms           []*Alarm
	nextID           int
	events           Events
	defSnoozeMinutes int
	defMaxSnooze     int

	// saveMu serializes whole-list writes to the store so concurrent
	// saves cannot interleave into a torn persisted snapshot.
	saveMu sync.Mutex
}

// NewManager creates a manager backed by the given settings store.
func NewManager(log *slog.Logger, store settings.Store, opts ...Option) *Manager {
	m := &Manager{
		log:              log.With("component", "alarm"),
		clock:            SystemClock{},
		store:            store,
		nextID:           1,
		defSnoozeMinutes: 5,
		defMaxSnooze:     3,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// SetEvents replaces the lifecycle event sink.
func (m *Manager) SetEvents(ev Events) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = ev
}

// SetDefaultSnoozeMinutes sets the snooze interval applied to new alarms,
// clamped to [1, 60].
func (m *Manager) SetDefaultSnoozeMinutes(minutes int) {
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 60 {
		minutes = 60
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.defSnoozeMinutes = minutes
}

// SetDefaultMaxSnoozeCount sets the snooze cap applied to new alarms,
// clamped to [0, 10].
func (m *Manager) SetDefaultMaxSnoozeCount(count int) {
	if count < 0 {
		count = 0
	}
	if count > 10 {
		count = 10
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.defMaxSnooze = count
}

// Load replaces the in-memory list with the persisted one. Records that
// fail to decode are skipped with a warning rather than aborting the load.
// Alarms persisted mid-ring come back as plain enabled alarms.
func (m *Manager) Load() error {
	count := m.store.GetInt(keyCount, 0)

	loaded := make([]*Alarm, 0, count)
	maxID := 0

	for i := 0; i < count; i++ {
		raw := m.store.GetString(keyAlarm(i), "")
		if raw == "" {
			m.log.Warn("missing alarm record", "index", i)

			continue
		}

		var a Alarm
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			m.log.Warn("skipping corrupt alarm record", "index", i, "error", err)

			continue
		}

		if a.Status == StatusTriggered || a.Status == StatusSnoozed {
			a.Status = StatusEnabled
		}

		if a.ID > maxID {
			maxID = a.ID
		}

		loaded = append(loaded, &a)
	}

	nextID := m.store.GetInt(keyNextID, 1)
	if nextID <= maxID {
		nextID = maxID + 1
	}

	m.mu.Lock()
	m.alarms = loaded
	m.nextID = nextID
	m.mu.Unlock()

	m.log.Info("alarms loaded", "count", len(loaded))

	return nil
}

// AddAlarm creates a new alarm and returns its id, or InvalidID when the
// time is out of range. Custom mode uses the supplied weekday mask; the
// fixed modes derive theirs.
func (m *Manager) AddAlarm(hour, minute int, mode RepeatMode, mask uint8, label, sound string) int {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		m.log.Warn("rejecting alarm with invalid time", "hour", hour, "minute", minute)

		return InvalidID
	}

	m.mu.Lock()

	a := &Alarm{
		ID:             m.nextID,
		Hour:           hour,
		Minute:         minute,
		Repeat:         mode,
		DaysMask:       maskForMode(mode, mask),
		Status:         StatusEnabled,
		Label:          label,
		Sound:          sound,
		MaxSnoozeCount: m.defMaxSnooze,
		SnoozeMinutes:  m.defSnoozeMinutes,
	}

	m.nextID++
	m.alarms = append(m.alarms, a)

	m.mu.Unlock()

	m.log.Info("alarm added", "id", a.ID, "time", FormatTime(hour, minute), "repeat", mode.String())
	m.save()

	return a.ID
}

// RemoveAlarm deletes an alarm. Returns false when the id is unknown.
func (m *Manager) RemoveAlarm(id int) bool {
	m.mu.Lock()

	idx := -1
	for i, a := range m.alarms {
		if a.ID == id {
			idx = i

			break
		}
	}

	if idx < 0 {
		m.mu.Unlock()

		return false
	}

	m.alarms = append(m.alarms[:idx], m.alarms[idx+1:]...)

	m.mu.Unlock()

	m.log.Info("alarm removed", "id", id)
	m.save()

	return true
}

// EnableAlarm arms or disarms an alarm. Disabling a ringing or snoozed
// alarm silences it. Returns false when the id is unknown.
func (m *Manager) EnableAlarm(id int, enabled bool) bool {
	m.mu.Lock()

	a := m.findLocked(id)
	if a == nil {
		m.mu.Unlock()

		return false
	}

	if enabled {
		a.Status = StatusEnabled
	} else {
		a.Status = StatusDisabled
	}
	a.SnoozeCount = 0
	a.SnoozeDue = 0

	m.mu.Unlock()

	m.log.Info("alarm toggled", "id", id, "enabled", enabled)
	m.save()

	return true
}

// ModifyAlarm rewrites an alarm's time, recurrence, label and sound while
// keeping its id and trigger history. Returns false for an unknown id or
// an out-of-range time.
func (m *Manager) ModifyAlarm(id, hour, minute int, mode RepeatMode, mask uint8, label, sound string) bool {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}

	m.mu.Lock()

	a := m.findLocked(id)
	if a == nil {
		m.mu.Unlock()

		return false
	}

	a.Hour = hour
	a.Minute = minute
	a.Repeat = mode
	a.DaysMask = maskForMode(mode, mask)
	a.Label = label
	a.Sound = sound

	m.mu.Unlock()

	m.log.Info("alarm modified", "id", id, "time", FormatTime(hour, minute))
	m.save()

	return true
}

// GetAlarm returns a copy of one alarm.
func (m *Manager) GetAlarm(id int) (Alarm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.findLocked(id)
	if a == nil {
		return Alarm{}, false
	}

	return *a, true
}

// GetAllAlarms returns copies of every alarm, in creation order.
func (m *Manager) GetAllAlarms() []Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alarm, 0, len(m.alarms))
	for _, a := range m.alarms {
		out = append(out, *a)
	}

	return out
}

// GetActiveAlarms returns copies of the alarms that are currently ringing
// or snoozed, oldest first.
func (m *Manager) GetActiveAlarms() []Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Alarm
	for _, a := range m.alarms {
		if a.Status == StatusTriggered || a.Status == StatusSnoozed {
			out = append(out, *a)
		}
	}

	return out
}

// GetNextAlarmInfo describes the next upcoming occurrence across all
// enabled alarms within the coming week, or reports that none exists.
func (m *Manager) GetNextAlarmInfo() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	nowMinutes := now.Hour()*60 + now.Minute()
	weekday := int(now.Weekday())

	// Strict comparisons keep the first alarm in store order as the
	// winner when several share an occurrence.
	var (
		best     *Alarm
		bestDays int
		bestMins int
	)

	for _, a := range m.alarms {
		if a.Status != StatusEnabled {
			continue
		}

		alarmMinutes := a.Hour*60 + a.Minute

		for day := 0; day < 7; day++ {
			if a.Repeat == RepeatOnce && day > 0 {
				break
			}

			if day == 0 && alarmMinutes <= nowMinutes {
				continue
			}

			if !a.WeekdayActive((weekday + day) % 7) {
				continue
			}

			if best == nil || day < bestDays || (day == bestDays && alarmMinutes < bestMins) {
				best = a
				bestDays = day
				bestMins = alarmMinutes
			}

			break
		}
	}

	if best == nil {
		return "no upcoming alarms"
	}

	a := best

	var in string
	switch {
	case bestDays > 0:
		in = fmt.Sprintf("in %dd", bestDays)
	default:
		diff := bestMins - nowMinutes
		if diff >= 60 {
			in = fmt.Sprintf("in %dh %dm", diff/60, diff%60)
		} else {
			in = fmt.Sprintf("in %dm", diff)
		}
	}

	info := fmt.Sprintf("next alarm: %s (%s)", FormatTime(a.Hour, a.Minute), in)
	if a.Label != "" {
		info += " - " + a.Label
	}

	return info
}

// SnoozeAlarm postpones a ringing alarm by its snooze interval. Once the
// alarm has used up its snooze budget it is stopped instead and the call
// returns false. Only ringing alarms can be snoozed.
func (m *Manager) SnoozeAlarm(id int) bool {
	m.mu.Lock()

	a := m.findLocked(id)
	if a == nil || a.Status != StatusTriggered {
		m.mu.Unlock()

		return false
	}

	if a.SnoozeCount >= a.MaxSnoozeCount {
		m.log.Info("snooze budget exhausted, stopping", "id", id, "count", a.SnoozeCount)

		snapshot := m.stopLocked(a)
		ev := m.events

		m.mu.Unlock()

		if ev != nil {
			ev.AlarmStopped(snapshot)
		}

		m.save()

		return false
	}

	a.SnoozeCount++
	a.Status = StatusSnoozed
	a.SnoozeDue = m.clock.Now().Unix() + int64(a.SnoozeMinutes)*60

	snapshot := *a
	ev := m.events

	m.mu.Unlock()

	m.log.Info("alarm snoozed", "id", id, "count", snapshot.SnoozeCount, "minutes", snapshot.SnoozeMinutes)

	if ev != nil {
		ev.AlarmSnoozed(snapshot)
	}

	return true
}

// StopAlarm ends a ringing or snoozed alarm. Recurring alarms re-arm for
// their next occurrence; one-shot alarms are disabled. Returns false when
// the alarm is not active.
func (m *Manager) StopAlarm(id int) bool {
	m.mu.Lock()

	a := m.findLocked(id)
	if a == nil || (a.Status != StatusTriggered && a.Status != StatusSnoozed) {
		m.mu.Unlock()

		return false
	}

	snapshot := m.stopLocked(a)
	ev := m.events

	m.mu.Unlock()

	if ev != nil {
		ev.AlarmStopped(snapshot)
	}

	m.save()

	return true
}

// StopAllActiveAlarms ends every ringing and snoozed alarm and returns
// how many were stopped.
func (m *Manager) StopAllActiveAlarms() int {
	m.mu.Lock()

	var stopped []Alarm
	for _, a := range m.alarms {
		if a.Status == StatusTriggered || a.Status == StatusSnoozed {
			stopped = append(stopped, m.stopLocked(a))
		}
	}

	ev := m.events

	m.mu.Unlock()

	if ev != nil {
		for _, snapshot := range stopped {
			ev.AlarmStopped(snapshot)
		}
	}

	if len(stopped) > 0 {
		m.save()
	}

	return len(stopped)
}

// stopLocked resets one active alarm and returns its snapshot. Caller
// holds m.mu and fires AlarmStopped after releasing it.
func (m *Manager) stopLocked(a *Alarm) Alarm {
	if a.Repeat == RepeatOnce {
		a.Status = StatusDisabled
	} else {
		a.Status = StatusEnabled
	}
	a.SnoozeCount = 0
	a.SnoozeDue = 0

	m.log.Info("alarm stopped", "id", a.ID, "status", a.Status.String())

	return *a
}

// CheckAlarms runs one trigger scan. Call it at least once per minute.
// Snoozed alarms whose snooze has elapsed ring first; then enabled alarms
// matching the current minute ring, at most once per minute each.
func (m *Manager) CheckAlarms() {
	now := m.clock.Now()
	nowUnix := now.Unix()
	weekday := int(now.Weekday())

	m.mu.Lock()

	var fired []Alarm

	for _, a := range m.alarms {
		if a.Status == StatusSnoozed {
			if a.SnoozeDue > 0 && nowUnix >= a.SnoozeDue {
				a.Status = StatusTriggered
				a.SnoozeDue = 0
				a.LastTriggered = nowUnix

				fired = append(fired, *a)
			}

			continue
		}

		if a.Status != StatusEnabled {
			continue
		}

		if a.Hour != now.Hour() || a.Minute != now.Minute() {
			continue
		}

		if !a.WeekdayActive(weekday) {
			continue
		}

		// Suppress duplicate triggers within the same minute.
		if a.LastTriggered != 0 && nowUnix-a.LastTriggered < 60 {
			continue
		}

		a.Status = StatusTriggered
		a.LastTriggered = nowUnix
		a.SnoozeCount = 0

		fired = append(fired, *a)
	}

	ev := m.events

	m.mu.Unlock()

	for _, a := range fired {
		m.log.Info("alarm triggered", "id", a.ID, "time", FormatTime(a.Hour, a.Minute), "label", a.Label)

		if ev != nil {
			ev.AlarmTriggered(a)
		}
	}
}

// findLocked returns the alarm with the given id. Caller holds m.mu.
func (m *Manager) findLocked(id int) *Alarm {
	for _, a := range m.alarms {
		if a.ID == id {
			return a
		}
	}

	return nil
}

// save persists the full alarm list. The list is snapshotted under the
// lock and written to the store after releasing it; saves are serialized
// so a newer snapshot is never overwritten by a stale one mid-write.
func (m *Manager) save() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()

	records := make([]string, 0, len(m.alarms))
	for _, a := range m.alarms {
		raw, err := json.Marshal(a)
		if err != nil {
			m.log.Error("encoding alarm", "id", a.ID, "error", err)

			continue
		}

		records = append(records, string(raw))
	}

	nextID := m.nextID

	m.mu.Unlock()

	if err := m.store.SetInt(keyCount, len(records)); err != nil {
		m.log.Error("persisting alarm count", "error", err)

		return
	}

	for i, raw := range records {
		if err := m.store.SetString(keyAlarm(i), raw); err != nil {
			m.log.Error("persisting alarm record", "index", i, "error", err)
		}
	}

	if err := m.store.SetInt(keyNextID, nextID); err != nil {
		m.log.Error("persisting next id", "error", err)
	}
}
