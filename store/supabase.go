package store

import (
	"fmt"
	"time"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

const (
	tableCallConfigs  = "call_configs"
	tableCallRecords  = "call_records"
	tableAppointments = "appointments"
)

// Store is the Supabase-backed persistence layer.
type Store struct {
	logger shared.LoggerAdapter
	client *supabase.Client
}

func New(logger shared.LoggerAdapter, url, apiKey string) (*Store, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &Store{logger: logger, client: client}, nil
}

// CallConfigByNumber resolves the receptionist profile for a called number.
// Unknown numbers return shared.ErrNoCallConfig.
func (s *Store) CallConfigByNumber(number string) (*CallConfig, error) {
	var configs []CallConfig
	_, err := s.client.From(tableCallConfigs).
		Select("*", "", false).
		Eq("phone_number", number).
		ExecuteTo(&configs)
	if err != nil {
		return nil, fmt.Errorf("querying call config: %w", err)
	}
	if len(configs) == 0 {
		return nil, shared.ErrNoCallConfig
	}
	return &configs[0], nil
}

// OpenCallRecord writes the record of a call that just went active.
func (s *Store) OpenCallRecord(rec *CallRecord) error {
	if rec.Status == "" {
		rec.Status = CallStatusActive
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, _, err := s.client.From(tableCallRecords).
		Insert(rec, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}
	s.logger.Debug("call record opened", zap.String("stream_sid", rec.StreamSid))
	return nil
}

type callRecordFinal struct {
	Transcript      string     `json:"transcript"`
	ActionsTaken    []string   `json:"actions_taken"`
	Status          CallStatus `json:"status"`
	EndedAt         time.Time  `json:"ended_at"`
	DurationSeconds int        `json:"duration_seconds"`
}

// FinalizeCallRecord stores the outcome of a finished call, keyed by stream.
func (s *Store) FinalizeCallRecord(streamSid string, status CallStatus, transcript string, actions []string, duration time.Duration) error {
	if actions == nil {
		actions = []string{}
	}
	final := &callRecordFinal{
		Transcript:      transcript,
		ActionsTaken:    actions,
		Status:          status,
		EndedAt:         time.Now().UTC(),
		DurationSeconds: int(duration.Seconds()),
	}
	_, _, err := s.client.From(tableCallRecords).
		Update(final, "", "").
		Eq("stream_sid", streamSid).
		Execute()
	if err != nil {
		return fmt.Errorf("finalizing call record: %w", err)
	}
	s.logger.Debug(
		"call record finalized",
		zap.String("stream_sid", streamSid),
		zap.String("status", string(status)),
	)
	return nil
}

// CreateAppointment persists one booked appointment.
func (s *Store) CreateAppointment(a *Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, _, err := s.client.From(tableAppointments).
		Insert(a, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("inserting appointment: %w", err)
	}
	s.logger.Debug("appointment created", zap.String("booking_id", a.BookingID))
	return nil
}
