package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lojasmm/relay/internal/ai"
	"github.com/lojasmm/relay/internal/line"
	"github.com/lojasmm/relay/internal/store"
)

const (
	// AIErrorText is sent when the provider call fails.
	AIErrorText = "Sorry, something went wrong with AI service."

	unsupportedText = "Event type %s not supported."
)

// ReplySender delivers one text reply for a reply token.
type ReplySender interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

// Action is what the dispatcher decided to do with an event.
type Action string

const (
	ActionAnswer      Action = "answer"      // text message forwarded to the AI
	ActionUnsupported Action = "unsupported" // fallback reply for other event types
	ActionNone        Action = "none"        // no reply token
	ActionDuplicate   Action = "duplicate"   // redelivery of an event already handled
)

// Outcome is the terminal state of one event's handling.
type Outcome struct {
	Index    int // position in the batch, 0-based
	Type     string
	Action   Action
	Replied  bool
	AIErr    error
	ReplyErr error
	Err      error // anything else, including recovered panics
}

// Failed reports whether any step of the event's handling went wrong.
func (o Outcome) Failed() bool {
	return o.AIErr != nil || o.ReplyErr != nil || o.Err != nil
}

// Dispatcher answers the events of a webhook batch.
type Dispatcher struct {
	asker   ai.Asker
	replies ReplySender
	ledger  store.Ledger
	logger  *zap.Logger
}

// NewDispatcher wires the dispatcher. ledger may be nil, which disables
// redelivery suppression.
func NewDispatcher(asker ai.Asker, replies ReplySender, ledger store.Ledger, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{asker: asker, replies: replies, ledger: ledger, logger: logger}
}

// HandleBatch satisfies line.BatchHandler.
func (d *Dispatcher) HandleBatch(ctx context.Context, events []line.Event) {
	d.Dispatch(ctx, events)
}

// Dispatch handles every event concurrently and returns once all of them
// reached a terminal state. One event's failure never affects another.
func (d *Dispatcher) Dispatch(ctx context.Context, events []line.Event) []Outcome {
	outcomes := make([]Outcome, len(events))

	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.handle(ctx, i, ev)
		}()
	}
	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.Failed() {
			continue
		}
		failed++
		d.logger.Error("bot: error handling event",
			zap.Int("event", o.Index+1),
			zap.String("type", o.Type),
			zap.String("action", string(o.Action)),
			zap.Bool("replied", o.Replied),
			zap.Error(errors.Join(o.AIErr, o.ReplyErr, o.Err)),
		)
	}
	d.logger.Info("bot: batch handled", zap.Int("events", len(events)), zap.Int("failed", failed))

	return outcomes
}

func (d *Dispatcher) handle(ctx context.Context, i int, ev line.Event) (out Outcome) {
	out = Outcome{Index: i, Type: ev.Type}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	d.logger.Debug("bot: event", zap.Int("event", i+1), zap.String("type", ev.Type))

	if d.duplicate(ev) {
		out.Action = ActionDuplicate
		return out
	}

	text, isText := ev.Text()
	switch {
	case isText && ev.Replyable():
		out.Action = ActionAnswer
		answer, err := d.asker.Ask(ctx, text)
		if err != nil {
			out.AIErr = err
			answer = AIErrorText
		}
		out.ReplyErr = d.replies.ReplyText(ctx, ev.ReplyToken, answer)
	case ev.Replyable():
		out.Action = ActionUnsupported
		out.ReplyErr = d.replies.ReplyText(ctx, ev.ReplyToken, fmt.Sprintf(unsupportedText, ev.Type))
	default:
		out.Action = ActionNone
	}
	out.Replied = out.Action != ActionNone && out.ReplyErr == nil
	return out
}

// duplicate claims the event id in the ledger and reports whether the event
// is a redelivery of one that was already claimed. Every id is claimed, so a
// later redelivery of a first delivery is recognized.
func (d *Dispatcher) duplicate(ev line.Event) bool {
	if d.ledger == nil || ev.WebhookEventID == "" {
		return false
	}
	seen, err := d.ledger.Claim(ev.WebhookEventID, time.Now())
	if err != nil {
		d.logger.Warn("bot: ledger claim failed", zap.String("webhook_event_id", ev.WebhookEventID), zap.Error(err))
		return false
	}
	return seen && ev.IsRedelivery()
}
