// Package store persists per-destination call configuration, call records,
// and appointments, with a cache in front of configuration lookups.
package store

import "time"

// CallConfig is the receptionist profile of one answered phone number.
type CallConfig struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	PhoneNumber      string   `json:"phone_number"`
	ForwardingNumber string   `json:"forwarding_number"`
	Tone             string   `json:"tone"`
	Instructions     string   `json:"instructions"`
	Greeting         string   `json:"greeting"`
	AllowedActions   []string `json:"allowed_actions"`
}

type CallStatus string

const (
	CallStatusActive      CallStatus = "active"
	CallStatusCompleted   CallStatus = "completed"
	CallStatusTransferred CallStatus = "transferred"
	CallStatusFailed      CallStatus = "failed"
)

// CallRecord is the durable log of one call. It is opened when the stream
// starts and finalized exactly once when the session ends.
type CallRecord struct {
	ID              string     `json:"id"`
	ConfigID        string     `json:"config_id"`
	StreamSid       string     `json:"stream_sid"`
	CallSid         string     `json:"call_sid"`
	Caller          string     `json:"caller"`
	Callee          string     `json:"callee"`
	Transcript      string     `json:"transcript"`
	ActionsTaken    []string   `json:"actions_taken"`
	Status          CallStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}

type Appointment struct {
	ID          string    `json:"id"`
	ConfigID    string    `json:"config_id"`
	BookingID   string    `json:"booking_id"`
	CallerName  string    `json:"caller_name"`
	CallerPhone string    `json:"caller_phone"`
	CallerEmail string    `json:"caller_email"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ServiceType string    `json:"service_type"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}
