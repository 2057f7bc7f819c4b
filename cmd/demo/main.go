// Command demo wires the full runtime together: a pure counter unit, a
// mutable activity-log store, a bridge between the two disciplines, a ticker
// subscription, and the devtools recorder. Configuration is read from
// STATEKIT_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/statekit/statekit"
	"github.com/statekit/statekit/devtools"
)

type counterState struct {
	Count int
	Ticks int
}

type counterMsg struct {
	Op string
}

type activityState struct {
	Lines []string
}

type activityAction struct {
	Line string
}

func counterUpdate(s counterState, msg counterMsg) (counterState, statekit.Cmd) {
	switch msg.Op {
	case "increment":
		s.Count++
	case "reset":
		s.Count = 0
	case "tick":
		s.Ticks++
	case "increment-later":
		// Side effect as data: the counter asks for a delayed follow-up
		// instead of touching a timer itself.
		return s, statekit.Single(statekit.Delay(50*time.Millisecond,
			statekit.NewMessage(counterMsg{Op: "increment"})))
	}
	return s, statekit.None()
}

func activityReduce(s *activityState, action activityAction) {
	s.Lines = append(s.Lines, action.Line)
}

func cloneActivity(s activityState) activityState {
	s.Lines = append([]string(nil), s.Lines...)
	return s
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	cfg, err := statekit.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad configuration")
	}
	logger.Info().
		Dur("tick_rate", cfg.TickRate).
		Int("queue_capacity", cfg.QueueCapacity).
		Msg("starting")

	rt := statekit.New(statekit.WithLogger(logger), statekit.WithConfig(cfg))

	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	if err != nil {
		logger.Fatal().Err(err).Msg("add counter")
	}
	activity, err := statekit.AddMutable(rt.Container(), activityState{}, activityReduce,
		statekit.WithClone(cloneActivity))
	if err != nil {
		logger.Fatal().Err(err).Msg("add activity log")
	}

	// Counter messages also land in the activity log via a bridge. The
	// conversion is partial: ticker noise stays out of the log.
	statekit.BridgeMessageToAction(rt.Dispatcher(), func(m counterMsg) (activityAction, bool) {
		if m.Op == "tick" {
			return activityAction{}, false
		}
		return activityAction{Line: "counter: " + m.Op}, true
	})

	rec := devtools.NewRecorder(devtools.WithHistoryLimit(cfg.HistoryLimit))
	rt.Dispatcher().Use(rec)
	rt.Dispatcher().Use(devtools.NewDispatchLogger(logger))
	if err := devtools.Observe(rec, counter); err != nil {
		logger.Fatal().Err(err).Msg("observe counter")
	}

	// Run the frame loop in the background for the demo's lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		rt.Loop(ctx)
	}()

	counter.Dispatch(counterMsg{Op: "increment"})
	counter.Dispatch(counterMsg{Op: "increment"})
	counter.Dispatch(counterMsg{Op: "increment-later"})

	// A short-lived ticker subscription feeding the same unit.
	ids, err := counter.StartSubscriptions(statekit.Source(
		statekit.Every(20*time.Millisecond, func(time.Time) statekit.Event {
			return statekit.NewMessage(counterMsg{Op: "tick"})
		})))
	if err != nil {
		logger.Fatal().Err(err).Msg("start subscription")
	}

	time.Sleep(200 * time.Millisecond)
	for _, id := range ids {
		rt.Manager().Stop(id)
	}

	cancel()
	<-loopDone
	rt.Stop()

	fmt.Printf("counter: %d over %d ticks\n", counter.State().Count, counter.State().Ticks)
	fmt.Println("activity log:")
	for _, line := range activity.State().Lines {
		fmt.Println("  " + line)
	}

	history, err := rec.ExportJSON(counter.UnitKey())
	if err != nil {
		logger.Fatal().Err(err).Msg("export history")
	}
	fmt.Println("counter history:")
	fmt.Println(string(history))
}
