// Package builtin registers the device's built-in tools: alarm management,
// device status, and the restricted maintenance tools.
package builtin

import (
	"encoding/json"

	"chime/internal/alarm"
	"chime/internal/tool"
)

// Scheduler hands device-affecting work to the serialized execution
// context.
type Scheduler interface {
	Schedule(fn func())
}

// Device exposes the host device to the built-in tools.
type Device interface {
	// Status reports the user-visible device state.
	Status() map[string]any
	// SystemInfo reports privileged diagnostics.
	SystemInfo() map[string]any
	// Reboot restarts the device.
	Reboot()
}

// Register installs the built-in tool set into the registry.
func Register(reg *tool.Registry, mgr *alarm.Manager, exec Scheduler, dev Device) {
	reg.Register(tool.New(
		"self.get_device_status",
		"Get the current device status including alarm state. Call this before controlling the device.",
		nil,
		func(args tool.Arguments) (tool.Result, error) {
			raw, err := json.Marshal(dev.Status())
			if err != nil {
				return tool.Result{}, err
			}

			return tool.JSONResult(raw), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.add",
		"Add an alarm. repeat_mode: 0=once, 1=daily, 2=weekdays, 3=weekends, 4=custom (set weekdays bitmask, bit 0 = Sunday).",
		tool.Params{
			tool.IntRange("hour", 0, 23),
			tool.IntRange("minute", 0, 59),
			tool.IntDefaultRange("repeat_mode", 0, 0, 4),
			tool.IntDefaultRange("weekdays", 0, 0, 127),
			tool.StringDefault("label", ""),
			tool.StringDefault("sound", ""),
		},
		func(args tool.Arguments) (tool.Result, error) {
			id := mgr.AddAlarm(
				args.Int("hour"),
				args.Int("minute"),
				alarm.RepeatMode(args.Int("repeat_mode")),
				uint8(args.Int("weekdays")),
				args.String("label"),
				args.String("sound"),
			)
			if id == alarm.InvalidID {
				return tool.TextResult("invalid alarm time"), nil
			}

			return tool.IntResult(id), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.list",
		"List all alarms and the next upcoming alarm.",
		nil,
		func(args tool.Arguments) (tool.Result, error) {
			payload := struct {
				Alarms []alarm.Alarm `json:"alarms"`
				Next   string        `json:"next"`
			}{
				Alarms: mgr.GetAllAlarms(),
				Next:   mgr.GetNextAlarmInfo(),
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				return tool.Result{}, err
			}

			return tool.JSONResult(raw), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.remove",
		"Remove an alarm by id.",
		tool.Params{tool.Int("alarm_id")},
		func(args tool.Arguments) (tool.Result, error) {
			return tool.BoolResult(mgr.RemoveAlarm(args.Int("alarm_id"))), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.toggle",
		"Enable or disable an alarm by id.",
		tool.Params{
			tool.Int("alarm_id"),
			tool.BoolDefault("enabled", true),
		},
		func(args tool.Arguments) (tool.Result, error) {
			return tool.BoolResult(mgr.EnableAlarm(args.Int("alarm_id"), args.Bool("enabled"))), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.snooze",
		"Snooze a ringing alarm. Omit alarm_id to snooze the first active alarm.",
		tool.Params{tool.IntDefault("alarm_id", alarm.InvalidID)},
		func(args tool.Arguments) (tool.Result, error) {
			id := args.Int("alarm_id")
			if id == alarm.InvalidID {
				active := mgr.GetActiveAlarms()
				if len(active) == 0 {
					return tool.BoolResult(false), nil
				}

				id = active[0].ID
			}

			return tool.BoolResult(mgr.SnoozeAlarm(id)), nil
		},
	))

	reg.Register(tool.New(
		"self.alarm.stop",
		"Stop a ringing or snoozed alarm. Omit alarm_id to stop the first active alarm.",
		tool.Params{tool.IntDefault("alarm_id", alarm.InvalidID)},
		func(args tool.Arguments) (tool.Result, error) {
			id := args.Int("alarm_id")
			if id == alarm.InvalidID {
				active := mgr.GetActiveAlarms()
				if len(active) == 0 {
					return tool.BoolResult(false), nil
				}

				id = active[0].ID
			}

			return tool.BoolResult(mgr.StopAlarm(id)), nil
		},
	))

	reg.Register(tool.NewRestricted(
		"self.get_system_info",
		"Get privileged system diagnostics.",
		nil,
		func(args tool.Arguments) (tool.Result, error) {
			raw, err := json.Marshal(dev.SystemInfo())
			if err != nil {
				return tool.Result{}, err
			}

			return tool.JSONResult(raw), nil
		},
	))

	reg.Register(tool.NewRestricted(
		"self.reboot",
		"Reboot the device.",
		nil,
		func(args tool.Arguments) (tool.Result, error) {
			exec.Schedule(dev.Reboot)

			return tool.BoolResult(true), nil
		},
	))
}
