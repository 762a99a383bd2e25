// Package alarm implements the recurring alarm store and its trigger
// state machine.
//
// A Manager holds the alarm list, persists it through a settings.Store,
// and scans it on every CheckAlarms tick. Alarms move between four
// states: enabled, disabled, ringing and snoozed. Ring state is never
// persisted, so a restart always comes back quiet.
package alarm
