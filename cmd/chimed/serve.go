package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chime/internal/alarm"
	"chime/internal/builtin"
	"chime/internal/config"
	"chime/internal/executor"
	"chime/internal/logging"
	"chime/internal/rpc"
	"chime/internal/settings"
	"chime/internal/tool"
)

// run wires the daemon together and blocks until the context is canceled
// or stdin closes.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log.Level)
	log.Info("starting", "version", version, "storage", cfg.Storage.Path)

	db, err := settings.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	exec := executor.New(log)
	exec.Start()
	defer exec.Stop()

	mgr := alarm.NewManager(log, db.Namespace("alarm"))
	mgr.SetDefaultSnoozeMinutes(cfg.Alarm.SnoozeMinutes)
	mgr.SetDefaultMaxSnoozeCount(cfg.Alarm.MaxSnoozeCount)

	if err := mgr.Load(); err != nil {
		return err
	}

	mgr.SetEvents(&ringEvents{log: log, exec: exec})

	reg := tool.NewRegistry(log)

	sender := &stdoutSender{w: os.Stdout}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dev := &localDevice{log: log, mgr: mgr, shutdown: cancel}
	builtin.Register(reg, mgr, exec, dev)

	dsp := rpc.NewDispatcher(log, reg, sender, exec, rpc.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Alarm.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mgr.CheckAlarms()

			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		lines := make(chan []byte)

		go func() {
			defer close(lines)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for scanner.Scan() {
				line := make([]byte, len(scanner.Bytes()))
				copy(line, scanner.Bytes())

				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return io.EOF
				}

				if len(line) == 0 {
					continue
				}

				dsp.HandleMessage(line)

			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		log.Info("shutting down")

		return nil
	}

	return err
}

// stdoutSender writes one reply envelope per line. The mutex keeps frames
// from interleaving when the executor and the reader goroutine reply
// concurrently.
type stdoutSender struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *stdoutSender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	return nil
}

// ringEvents bridges alarm lifecycle notifications onto the execution
// context, keeping device work off the scheduler tick.
type ringEvents struct {
	log  *slog.Logger
	exec *executor.Executor
}

func (e *ringEvents) AlarmTriggered(a alarm.Alarm) {
	e.exec.Schedule(func() {
		e.log.Info("ring", "id", a.ID, "label", a.Label, "sound", a.Sound)
	})
}

func (e *ringEvents) AlarmSnoozed(a alarm.Alarm) {
	e.exec.Schedule(func() {
		e.log.Info("ring paused", "id", a.ID, "resume_in_minutes", a.SnoozeMinutes)
	})
}

func (e *ringEvents) AlarmStopped(a alarm.Alarm) {
	e.exec.Schedule(func() {
		e.log.Info("ring ended", "id", a.ID)
	})
}

// localDevice backs the built-in device tools with process-local state.
type localDevice struct {
	log      *slog.Logger
	mgr      *alarm.Manager
	shutdown func()
}

func (d *localDevice) Status() map[string]any {
	active := d.mgr.GetActiveAlarms()

	ringing := make([]int, 0, len(active))
	for _, a := range active {
		ringing = append(ringing, a.ID)
	}

	return map[string]any{
		"alarm": map[string]any{
			"count":  len(d.mgr.GetAllAlarms()),
			"active": ringing,
			"next":   d.mgr.GetNextAlarmInfo(),
		},
	}
}

func (d *localDevice) SystemInfo() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]any{
		"version":    version,
		"go":         runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"heap_bytes": ms.HeapAlloc,
	}
}

// Reboot is modeled as a clean shutdown; process supervision restarts the
// daemon.
func (d *localDevice) Reboot() {
	d.log.Warn("reboot requested")
	d.shutdown()
}
