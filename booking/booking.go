// Package booking turns an in-call appointment request into a persisted
// appointment plus an SMS confirmation when the caller left a number.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Request struct {
	ConfigID    string
	CallerName  string
	CallerPhone string
	CallerEmail string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM
	ServiceType string
	Notes       string
}

// Messenger is the SMS side of confirmations. Satisfied by messaging.Messenger.
type Messenger interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// AppointmentStore persists appointments. Satisfied by store.Store.
type AppointmentStore interface {
	CreateAppointment(a *store.Appointment) error
}

type Booker struct {
	logger    shared.LoggerAdapter
	store     AppointmentStore
	messenger Messenger
}

func NewBooker(logger shared.LoggerAdapter, st AppointmentStore, messenger Messenger) (*Booker, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Booker{logger: logger, store: st, messenger: messenger}, nil
}

func (b *Booker) validate(req *Request) error {
	if req.CallerName == "" {
		return fmt.Errorf("caller name is required")
	}
	if req.CallerPhone == "" && req.CallerEmail == "" {
		return fmt.Errorf("a phone number or email is required")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", req.Date)
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", req.Time)
	}
	return nil
}

// Book validates, persists, and confirms one appointment. A failed SMS does
// not undo the booking; the appointment stands and the failure is logged.
func (b *Booker) Book(ctx context.Context, req *Request) (*store.Appointment, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}
	appt := &store.Appointment{
		ID:          uuid.NewString(),
		ConfigID:    req.ConfigID,
		BookingID:   uuid.NewString(),
		CallerName:  req.CallerName,
		CallerPhone: req.CallerPhone,
		CallerEmail: req.CallerEmail,
		Date:        req.Date,
		Time:        req.Time,
		ServiceType: req.ServiceType,
		Notes:       req.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := b.store.CreateAppointment(appt); err != nil {
		return nil, fmt.Errorf("persisting appointment: %w", err)
	}
	b.logger.Info(
		"appointment booked",
		zap.String("booking_id", appt.BookingID),
		zap.String("date", appt.Date),
		zap.String("time", appt.Time),
	)

	if b.messenger != nil && req.CallerPhone != "" {
		body := fmt.Sprintf(
			"Your appointment on %s at %s is confirmed. Booking reference: %s",
			appt.Date, appt.Time, appt.BookingID,
		)
		if _, err := b.messenger.Send(ctx, req.CallerPhone, body); err != nil {
			b.logger.Error("sending booking confirmation", err,
				zap.String("booking_id", appt.BookingID))
		}
	}
	return appt, nil
}
