package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// Event is one timestamped security-system event.
type Event struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// EventSource lists security-system events with timestamps in the
// half-open range [from, to). Implementations must be safe for concurrent
// use by independent runs.
type EventSource interface {
	List(ctx context.Context, from, to time.Time) ([]Event, error)
}

// eventTimeFormat is the timestamp format returned to the model.
const eventTimeFormat = "2006-01-02 15:04"

// simulatedEventNames are the event descriptions produced by the demo feed.
var simulatedEventNames = []string{
	"Allarme inserito",
	"Allarme disinserito",
	"Allarme intrusione sulla porta soggiorno",
	"Manomissione sensore camera",
}

// SimulatedEvents is a demo EventSource generating zero to four random
// events per day. It stands in for the alarm panel's event log until the
// real feed is wired.
type SimulatedEvents struct{}

// List implements EventSource.
func (SimulatedEvents) List(_ context.Context, from, to time.Time) ([]Event, error) {
	if !to.After(from) {
		to = from.Add(24 * time.Hour)
	}

	var events []Event
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		for i := 0; i < rand.IntN(5); i++ {
			at := day.Add(time.Duration(rand.IntN(24))*time.Hour +
				time.Duration(rand.IntN(60))*time.Minute)
			if !at.Before(to) {
				continue
			}
			events = append(events, Event{
				Date:        at.Format(eventTimeFormat),
				Description: simulatedEventNames[rand.IntN(len(simulatedEventNames))],
			})
		}
	}
	return events, nil
}

// parseEventsArgs resolves the loosely-structured events-tool arguments
// into a date range. Malformed JSON and unparseable values degrade to
// defaults instead of failing the run:
//
//   - no date  → today
//   - no days  → the resolved date only
//
// The range is [older of (date − days), date); when that leaves an empty
// range (days = 0) the single resolved day is used.
func parseEventsArgs(raw string, now time.Time) (from, to time.Time) {
	var args eventsArgs
	// Defensive parse: bad argument text means empty arguments, not an error.
	_ = json.Unmarshal([]byte(raw), &args)

	day := now
	if args.Date != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", args.Date, now.Location()); err == nil {
			day = parsed
		}
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	days := 0
	if args.Days != "" {
		if parsed, err := strconv.Atoi(args.Days); err == nil && parsed > 0 {
			days = parsed
		}
	}

	return day.AddDate(0, 0, -days), day
}

// runEvents executes the events tool: resolve the range, list the events,
// and append the JSON result as a tool message.
func (o *Orchestrator) runEvents(ctx context.Context, run *run, call ToolCall) error {
	from, to := parseEventsArgs(call.RawArguments, o.now())

	events, err := o.events.List(ctx, from, to)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if events == nil {
		events = []Event{}
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	appendToolMessage(run.opts, EventsToolName, call.Ref, string(payload))

	o.logger.Info("events listed",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"count", len(events))
	return nil
}
