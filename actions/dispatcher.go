package actions

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bt-bridge/voicebridge/booking"
	"github.com/bt-bridge/voicebridge/knowledge"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	DefaultTimeout    = 5 * time.Second
	searchResultLimit = 3
)

// Searcher answers knowledge queries. Satisfied by knowledge.Searcher.
type Searcher interface {
	Search(ctx context.Context, configID, query string, limit int) ([]knowledge.Result, error)
}

// Messenger sends SMS. Satisfied by messaging.Messenger.
type Messenger interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Booker books appointments. Satisfied by booking.Booker.
type Booker interface {
	Book(ctx context.Context, req *booking.Request) (*store.Appointment, error)
}

// Directive is the outcome of one dispatch. Output goes back to the model as
// the tool result; Transfer and EndCall instead steer the call itself and
// leave Output empty.
type Directive struct {
	Action   ActionName
	Output   string
	Transfer string // forwarding number to hand the call to
	EndCall  EndReason
}

// Terminal reports whether the directive ends the bridge's ownership of the
// call instead of continuing the conversation.
func (d *Directive) Terminal() bool {
	return d.Transfer != "" || d.EndCall != ""
}

// Dispatcher executes tool invocations for one call under a bounded timeout.
// A failed or overrunning action produces a failure result for the model;
// it never tears down the session.
type Dispatcher struct {
	logger    shared.LoggerAdapter
	cfg       *store.CallConfig
	searcher  Searcher
	messenger Messenger
	booker    Booker
	timeout   time.Duration
}

func NewDispatcher(
	logger shared.LoggerAdapter,
	cfg *store.CallConfig,
	searcher Searcher,
	messenger Messenger,
	booker Booker,
	timeout time.Duration,
) (*Dispatcher, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg == nil {
		return nil, shared.ErrNoCallConfig
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		logger:    logger,
		cfg:       cfg,
		searcher:  searcher,
		messenger: messenger,
		booker:    booker,
		timeout:   timeout,
	}, nil
}

func successOutput(fields map[string]any) string {
	resp := map[string]any{"success": true}
	for k, v := range fields {
		resp[k] = v
	}
	out, err := sonic.MarshalString(resp)
	if err != nil {
		return `{"success":true}`
	}
	return out
}

func failureOutput(err error) string {
	out, mErr := sonic.MarshalString(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
	if mErr != nil {
		return `{"success":false}`
	}
	return out
}

func (d *Dispatcher) allowed(name ActionName) bool {
	if name == ActionEndCall {
		return true
	}
	return slices.Contains(d.cfg.AllowedActions, string(name))
}

// Dispatch runs one tool invocation and returns what the bridge should do
// next. It always returns a directive; errors are folded into Output.
func (d *Dispatcher) Dispatch(ctx context.Context, name ActionName, argsJSON string) *Directive {
	d.logger.Info(
		"dispatching action",
		zap.String("action", string(name)),
	)
	if !d.allowed(name) {
		return &Directive{Action: name, Output: failureOutput(shared.ErrActionNotAllowed)}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var directive *Directive
	switch name {
	case ActionSearchKnowledge:
		directive = d.searchKnowledge(ctx, argsJSON)
	case ActionTransferCall:
		directive = d.transferCall()
	case ActionSendMessage:
		directive = d.sendMessage(ctx, argsJSON)
	case ActionBookAppointment:
		directive = d.bookAppointment(ctx, argsJSON)
	case ActionEndCall:
		directive = d.endCall(argsJSON)
	default:
		directive = &Directive{Action: name, Output: failureOutput(shared.ErrUnknownAction)}
	}
	return directive
}

type searchArgs struct {
	Query string `json:"query"`
}

func (d *Dispatcher) searchKnowledge(ctx context.Context, argsJSON string) *Directive {
	fail := func(err error) *Directive {
		d.logger.Error("knowledge search failed", err)
		return &Directive{Action: ActionSearchKnowledge, Output: failureOutput(err)}
	}
	if d.searcher == nil {
		return fail(fmt.Errorf("knowledge search is not configured"))
	}
	args := new(searchArgs)
	if err := sonic.UnmarshalString(argsJSON, args); err != nil {
		return fail(fmt.Errorf("parsing arguments: %w", err))
	}
	if args.Query == "" {
		return fail(fmt.Errorf("query is required"))
	}
	results, err := d.searcher.Search(ctx, d.cfg.ID, args.Query, searchResultLimit)
	if err != nil {
		return fail(err)
	}
	passages := make([]string, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Text)
	}
	return &Directive{
		Action: ActionSearchKnowledge,
		Output: successOutput(map[string]any{"results": passages}),
	}
}

func (d *Dispatcher) transferCall() *Directive {
	if d.cfg.ForwardingNumber == "" {
		d.logger.Warn("transfer requested without a forwarding number")
		return &Directive{Action: ActionTransferCall, Output: failureOutput(shared.ErrNoForwardingNumber)}
	}
	return &Directive{Action: ActionTransferCall, Transfer: d.cfg.ForwardingNumber}
}

type sendMessageArgs struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (d *Dispatcher) sendMessage(ctx context.Context, argsJSON string) *Directive {
	fail := func(err error) *Directive {
		d.logger.Error("sending sms failed", err)
		return &Directive{Action: ActionSendMessage, Output: failureOutput(err)}
	}
	if d.messenger == nil {
		return fail(fmt.Errorf("messaging is not configured"))
	}
	args := new(sendMessageArgs)
	if err := sonic.UnmarshalString(argsJSON, args); err != nil {
		return fail(fmt.Errorf("parsing arguments: %w", err))
	}
	messageID, err := d.messenger.Send(ctx, args.To, args.Body)
	if err != nil {
		return fail(err)
	}
	return &Directive{
		Action: ActionSendMessage,
		Output: successOutput(map[string]any{"message_id": messageID}),
	}
}

type bookArgs struct {
	CallerName  string `json:"caller_name"`
	CallerPhone string `json:"caller_phone"`
	CallerEmail string `json:"caller_email"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	ServiceType string `json:"service_type"`
	Notes       string `json:"notes"`
}

func (d *Dispatcher) bookAppointment(ctx context.Context, argsJSON string) *Directive {
	fail := func(err error) *Directive {
		d.logger.Error("booking appointment failed", err)
		return &Directive{Action: ActionBookAppointment, Output: failureOutput(err)}
	}
	if d.booker == nil {
		return fail(fmt.Errorf("booking is not configured"))
	}
	args := new(bookArgs)
	if err := sonic.UnmarshalString(argsJSON, args); err != nil {
		return fail(fmt.Errorf("parsing arguments: %w", err))
	}
	appt, err := d.booker.Book(ctx, &booking.Request{
		ConfigID:    d.cfg.ID,
		CallerName:  args.CallerName,
		CallerPhone: args.CallerPhone,
		CallerEmail: args.CallerEmail,
		Date:        args.Date,
		Time:        args.Time,
		ServiceType: args.ServiceType,
		Notes:       args.Notes,
	})
	if err != nil {
		return fail(err)
	}
	return &Directive{
		Action: ActionBookAppointment,
		Output: successOutput(map[string]any{
			"booking_id": appt.BookingID,
			"date":       appt.Date,
			"time":       appt.Time,
		}),
	}
}

type endCallArgs struct {
	Reason EndReason `json:"reason"`
}

func (d *Dispatcher) endCall(argsJSON string) *Directive {
	args := new(endCallArgs)
	if err := sonic.UnmarshalString(argsJSON, args); err != nil {
		d.logger.Error("parsing end_call arguments", err)
		args.Reason = EndReasonCompleted
	}
	if !ValidEndReason(args.Reason) {
		d.logger.Warn("unknown end reason, treating as completed",
			zap.String("reason", string(args.Reason)))
		args.Reason = EndReasonCompleted
	}
	return &Directive{Action: ActionEndCall, EndCall: args.Reason}
}
