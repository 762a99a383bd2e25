package alarm

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chime/internal/logging"
	"chime/internal/settings"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recorder captures lifecycle events in order.
type recorder struct {
	triggered []int
	snoozed   []int
	stopped   []int
}

func (r *recorder) AlarmTriggered(a Alarm) { r.triggered = append(r.triggered, a.ID) }
func (r *recorder) AlarmSnoozed(a Alarm)   { r.snoozed = append(r.snoozed, a.ID) }
func (r *recorder) AlarmStopped(a Alarm)   { r.stopped = append(r.stopped, a.ID) }

// tuesday0729 is a fixed reference instant: Tuesday 07:29:30 local time.
func tuesday0729() time.Time {
	return time.Date(2026, time.March, 3, 7, 29, 30, 0, time.Local)
}

func newTestManager(t *testing.T) (*Manager, *fakeClock, *recorder) {
	t.Helper()

	clock := &fakeClock{now: tuesday0729()}
	events := &recorder{}
	m := NewManager(logging.Nop(), settings.NewMemory(), WithClock(clock), WithEvents(events))

	return m, clock, events
}

func TestAddAlarm(t *testing.T) {
	t.Run("assigns increasing ids", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		first := m.AddAlarm(7, 30, RepeatDaily, 0, "wake", "")
		second := m.AddAlarm(8, 0, RepeatOnce, 0, "", "")

		require.Equal(t, 1, first)
		require.Equal(t, 2, second)
	})

	t.Run("rejects out of range times", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		require.Equal(t, InvalidID, m.AddAlarm(24, 0, RepeatOnce, 0, "", ""))
		require.Equal(t, InvalidID, m.AddAlarm(-1, 0, RepeatOnce, 0, "", ""))
		require.Equal(t, InvalidID, m.AddAlarm(7, 60, RepeatOnce, 0, "", ""))
		require.Empty(t, m.GetAllAlarms())
	})

	t.Run("derives weekday masks from mode", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		daily, _ := m.GetAlarm(m.AddAlarm(7, 0, RepeatDaily, 0, "", ""))
		weekdays, _ := m.GetAlarm(m.AddAlarm(7, 0, RepeatWeekdays, 0, "", ""))
		weekends, _ := m.GetAlarm(m.AddAlarm(7, 0, RepeatWeekends, 0, "", ""))
		custom, _ := m.GetAlarm(m.AddAlarm(7, 0, RepeatCustom, 0b0101010, "", ""))

		require.Equal(t, uint8(0b1111111), daily.DaysMask)
		require.Equal(t, uint8(0b0111110), weekdays.DaysMask)
		require.Equal(t, uint8(0b1000001), weekends.DaysMask)
		require.Equal(t, uint8(0b0101010), custom.DaysMask)
	})

	t.Run("applies the configured defaults", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.SetDefaultSnoozeMinutes(10)
		m.SetDefaultMaxSnoozeCount(2)

		a, ok := m.GetAlarm(m.AddAlarm(7, 0, RepeatDaily, 0, "", ""))

		require.True(t, ok)
		require.Equal(t, 10, a.SnoozeMinutes)
		require.Equal(t, 2, a.MaxSnoozeCount)
	})

	t.Run("clamps defaults to their bounds", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.SetDefaultSnoozeMinutes(500)
		m.SetDefaultMaxSnoozeCount(-4)

		a, _ := m.GetAlarm(m.AddAlarm(7, 0, RepeatDaily, 0, "", ""))

		require.Equal(t, 60, a.SnoozeMinutes)
		require.Equal(t, 0, a.MaxSnoozeCount)
	})
}

func TestRemoveModifyToggle(t *testing.T) {
	t.Run("remove", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		require.True(t, m.RemoveAlarm(id))
		require.False(t, m.RemoveAlarm(id))
		require.Empty(t, m.GetAllAlarms())
	})

	t.Run("modify rewrites schedule but keeps id", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "old", "")

		require.True(t, m.ModifyAlarm(id, 9, 15, RepeatWeekends, 0, "new", "bell"))
		require.False(t, m.ModifyAlarm(id, 25, 0, RepeatDaily, 0, "", ""))
		require.False(t, m.ModifyAlarm(99, 9, 0, RepeatDaily, 0, "", ""))

		a, _ := m.GetAlarm(id)
		require.Equal(t, 9, a.Hour)
		require.Equal(t, 15, a.Minute)
		require.Equal(t, RepeatWeekends, a.Repeat)
		require.Equal(t, uint8(0b1000001), a.DaysMask)
		require.Equal(t, "new", a.Label)
		require.Equal(t, "bell", a.Sound)
	})

	t.Run("toggle disables and re-enables", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		require.True(t, m.EnableAlarm(id, false))

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusDisabled, a.Status)

		require.True(t, m.EnableAlarm(id, true))

		a, _ = m.GetAlarm(id)
		require.Equal(t, StatusEnabled, a.Status)

		require.False(t, m.EnableAlarm(99, true))
	})
}

func TestCheckAlarms(t *testing.T) {
	t.Run("triggers on the matching minute", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "wake", "")

		m.CheckAlarms()
		require.Empty(t, events.triggered)

		clock.advance(30 * time.Second) // 07:30:00
		m.CheckAlarms()

		require.Equal(t, []int{id}, events.triggered)

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusTriggered, a.Status)
	})

	t.Run("suppresses duplicates within the minute", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		clock.advance(30 * time.Second)
		m.CheckAlarms()
		require.True(t, m.StopAlarm(id))

		clock.advance(10 * time.Second) // still 07:30
		m.CheckAlarms()

		require.Len(t, events.triggered, 1)
	})

	t.Run("skips inactive weekdays", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		m.AddAlarm(7, 30, RepeatWeekends, 0, "", "")

		clock.advance(30 * time.Second) // Tuesday 07:30
		m.CheckAlarms()

		require.Empty(t, events.triggered)
	})

	t.Run("skips disabled alarms", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		m.EnableAlarm(id, false)

		clock.advance(30 * time.Second)
		m.CheckAlarms()

		require.Empty(t, events.triggered)
	})

	t.Run("once alarms trigger regardless of weekday", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatOnce, 0, "", "")

		clock.advance(30 * time.Second)
		m.CheckAlarms()

		require.Equal(t, []int{id}, events.triggered)
	})
}

func TestSnoozeAndStop(t *testing.T) {
	ring := func(t *testing.T, m *Manager, clock *fakeClock, id int) {
		t.Helper()

		clock.advance(30 * time.Second) // onto the alarm minute
		m.CheckAlarms()

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusTriggered, a.Status)
	}

	t.Run("snooze postpones and re-rings when due", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		ring(t, m, clock, id)

		require.True(t, m.SnoozeAlarm(id))
		require.Equal(t, []int{id}, events.snoozed)

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusSnoozed, a.Status)
		require.Equal(t, 1, a.SnoozeCount)

		clock.advance(4 * time.Minute)
		m.CheckAlarms()
		require.Len(t, events.triggered, 1)

		clock.advance(time.Minute) // snooze due
		m.CheckAlarms()

		require.Len(t, events.triggered, 2)

		a, _ = m.GetAlarm(id)
		require.Equal(t, StatusTriggered, a.Status)
	})

	t.Run("only ringing alarms can be snoozed", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		require.False(t, m.SnoozeAlarm(id))
		require.False(t, m.SnoozeAlarm(99))
	})

	t.Run("exhausted snooze budget forces a stop", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		m.SetDefaultMaxSnoozeCount(1)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		ring(t, m, clock, id)

		require.True(t, m.SnoozeAlarm(id))

		clock.advance(5 * time.Minute)
		m.CheckAlarms() // rings again

		require.False(t, m.SnoozeAlarm(id))
		require.Equal(t, []int{id}, events.stopped)

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusEnabled, a.Status)
		require.Zero(t, a.SnoozeCount)
	})

	t.Run("stop re-arms recurring alarms", func(t *testing.T) {
		m, clock, events := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		ring(t, m, clock, id)

		require.True(t, m.StopAlarm(id))
		require.Equal(t, []int{id}, events.stopped)

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusEnabled, a.Status)
	})

	t.Run("stop disables one-shot alarms", func(t *testing.T) {
		m, clock, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatOnce, 0, "", "")
		ring(t, m, clock, id)

		require.True(t, m.StopAlarm(id))

		a, _ := m.GetAlarm(id)
		require.Equal(t, StatusDisabled, a.Status)
	})

	t.Run("stop rejects idle alarms", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		require.False(t, m.StopAlarm(id))
		require.False(t, m.StopAlarm(99))
	})

	t.Run("stop all silences ringing and snoozed alarms", func(t *testing.T) {
		m, clock, _ := newTestManager(t)
		first := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		_ = m.AddAlarm(7, 30, RepeatOnce, 0, "", "")
		ring(t, m, clock, first)

		require.True(t, m.SnoozeAlarm(first))
		require.Equal(t, 2, m.StopAllActiveAlarms())
		require.Zero(t, m.StopAllActiveAlarms())
		require.Empty(t, m.GetActiveAlarms())
	})
}

func TestPersistence(t *testing.T) {
	t.Run("alarms survive a reload", func(t *testing.T) {
		store := settings.NewMemory()
		clock := &fakeClock{now: tuesday0729()}

		m := NewManager(logging.Nop(), store, WithClock(clock))
		id := m.AddAlarm(7, 30, RepeatWeekdays, 0, "wake", "bell")

		reloaded := NewManager(logging.Nop(), store, WithClock(clock))
		require.NoError(t, reloaded.Load())

		a, ok := reloaded.GetAlarm(id)
		require.True(t, ok)
		require.Equal(t, 7, a.Hour)
		require.Equal(t, 30, a.Minute)
		require.Equal(t, RepeatWeekdays, a.Repeat)
		require.Equal(t, "wake", a.Label)
		require.Equal(t, "bell", a.Sound)

		// Ids keep increasing after a reload.
		require.Equal(t, id+1, reloaded.AddAlarm(8, 0, RepeatOnce, 0, "", ""))
	})

	t.Run("ring state does not survive a reload", func(t *testing.T) {
		store := settings.NewMemory()
		clock := &fakeClock{now: tuesday0729()}

		m := NewManager(logging.Nop(), store, WithClock(clock))
		id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

		clock.advance(30 * time.Second)
		m.CheckAlarms()
		require.True(t, m.SnoozeAlarm(id))

		reloaded := NewManager(logging.Nop(), store, WithClock(clock))
		require.NoError(t, reloaded.Load())

		a, _ := reloaded.GetAlarm(id)
		require.Equal(t, StatusEnabled, a.Status)
		require.Zero(t, a.SnoozeCount)
	})

	t.Run("corrupt records are skipped", func(t *testing.T) {
		store := settings.NewMemory()

		m := NewManager(logging.Nop(), store)
		m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		m.AddAlarm(8, 0, RepeatDaily, 0, "", "")

		require.NoError(t, store.SetString("alarm_0", "{not json"))

		reloaded := NewManager(logging.Nop(), store)
		require.NoError(t, reloaded.Load())

		require.Len(t, reloaded.GetAllAlarms(), 1)
	})
}

func TestGetNextAlarmInfo(t *testing.T) {
	t.Run("no alarms", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		require.Equal(t, "no upcoming alarms", m.GetNextAlarmInfo())
	})

	t.Run("later today reports minutes", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(7, 45, RepeatDaily, 0, "standup", "")

		require.Equal(t, "next alarm: 07:45 (in 16m) - standup", m.GetNextAlarmInfo())
	})

	t.Run("later today reports hours and minutes", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(9, 0, RepeatDaily, 0, "", "")

		require.Equal(t, "next alarm: 09:00 (in 1h 31m)", m.GetNextAlarmInfo())
	})

	t.Run("earlier time rolls to a later day", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(6, 0, RepeatDaily, 0, "", "")

		require.Equal(t, "next alarm: 06:00 (in 1d)", m.GetNextAlarmInfo())
	})

	t.Run("weekend alarm on a tuesday is days away", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(10, 0, RepeatWeekends, 0, "", "")

		// Next Saturday is four days from Tuesday.
		require.Equal(t, "next alarm: 10:00 (in 4d)", m.GetNextAlarmInfo())
	})

	t.Run("expired once alarm never comes up", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(6, 0, RepeatOnce, 0, "", "")

		require.Equal(t, "no upcoming alarms", m.GetNextAlarmInfo())
	})

	t.Run("disabled alarms are ignored", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		id := m.AddAlarm(7, 45, RepeatDaily, 0, "", "")
		m.EnableAlarm(id, false)

		require.Equal(t, "no upcoming alarms", m.GetNextAlarmInfo())
	})

	t.Run("soonest of several wins", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(9, 0, RepeatDaily, 0, "", "")
		m.AddAlarm(7, 45, RepeatDaily, 0, "first", "")

		require.Equal(t, "next alarm: 07:45 (in 16m) - first", m.GetNextAlarmInfo())
	})

	t.Run("tie goes to the earliest registered alarm", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		m.AddAlarm(7, 45, RepeatDaily, 0, "first", "")
		m.AddAlarm(7, 45, RepeatDaily, 0, "second", "")
		m.AddAlarm(7, 45, RepeatDaily, 0, "third", "")

		for i := 0; i < 10; i++ {
			require.Equal(t, "next alarm: 07:45 (in 16m) - first", m.GetNextAlarmInfo())
		}
	})
}

// queryingSink reads the manager back from inside every event handler.
type queryingSink struct {
	m        *Manager
	statuses []Status
}

func (s *queryingSink) record(a Alarm) {
	got, ok := s.m.GetAlarm(a.ID)
	if ok {
		s.statuses = append(s.statuses, got.Status)
	}
}

func (s *queryingSink) AlarmTriggered(a Alarm) { s.record(a) }
func (s *queryingSink) AlarmSnoozed(a Alarm)   { s.record(a) }
func (s *queryingSink) AlarmStopped(a Alarm)   { s.record(a) }

func TestEventHandlersMayReadTheManager(t *testing.T) {
	clock := &fakeClock{now: tuesday0729()}
	m := NewManager(logging.Nop(), settings.NewMemory(), WithClock(clock))

	sink := &queryingSink{m: m}
	m.SetEvents(sink)

	id := m.AddAlarm(7, 30, RepeatDaily, 0, "", "")

	clock.advance(30 * time.Second)
	m.CheckAlarms()
	require.True(t, m.SnoozeAlarm(id))

	clock.advance(5 * time.Minute)
	m.CheckAlarms()
	require.True(t, m.StopAlarm(id))

	clock.advance(24*time.Hour - 5*time.Minute) // next day, back on 07:30
	m.CheckAlarms()
	require.Equal(t, 1, m.StopAllActiveAlarms())

	require.Equal(t, []Status{
		StatusTriggered,
		StatusSnoozed,
		StatusTriggered,
		StatusEnabled,
		StatusTriggered,
		StatusEnabled,
	}, sink.statuses)
}

// journalStore records the order of writes passing through a Store.
type journalStore struct {
	settings.Store

	mu   sync.Mutex
	keys []string
}

func (s *journalStore) record(key string) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

func (s *journalStore) SetString(key, value string) error {
	s.record(key)

	return s.Store.SetString(key, value)
}

func (s *journalStore) SetInt(key string, value int) error {
	s.record(key)

	return s.Store.SetInt(key, value)
}

func TestConcurrentSavesDoNotInterleave(t *testing.T) {
	store := &journalStore{Store: settings.NewMemory()}
	m := NewManager(logging.Nop(), store, WithClock(&fakeClock{now: tuesday0729()}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			m.AddAlarm(7, 30, RepeatDaily, 0, "", "")
		}()
	}
	wg.Wait()

	// Every persisted snapshot must be a contiguous count, alarm_<i>,
	// next_id sequence.
	require.NotEmpty(t, store.keys)

	i := 0
	for i < len(store.keys) {
		require.Equal(t, "count", store.keys[i])
		i++

		records := 0
		for i < len(store.keys) && strings.HasPrefix(store.keys[i], "alarm_") {
			require.Equal(t, fmt.Sprintf("alarm_%d", records), store.keys[i])
			records++
			i++
		}

		require.Less(t, i, len(store.keys))
		require.Equal(t, "next_id", store.keys[i])
		i++
	}
}
