package feedback

import (
	"context"
	"log"
)

// LogSink writes one line per event.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Notify(_ context.Context, ev Event) error {
	s.Logger.Printf("swipe id=%s reader=%s badge=%s holder=%q outcome=%s action=%s state=%s reason=%s",
		ev.SwipeID, ev.ReaderID, ev.BadgeID, ev.Holder, ev.Outcome, ev.Action, ev.State, ev.Reason)
	return nil
}
