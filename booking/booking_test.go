package booking

import (
	"context"
	"fmt"
	"testing"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppointmentStore struct {
	created []*store.Appointment
	err     error
}

func (f *fakeAppointmentStore) CreateAppointment(a *store.Appointment) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, a)
	return nil
}

type fakeMessenger struct {
	err      error
	lastTo   string
	lastBody string
	sent     int
}

func (f *fakeMessenger) Send(ctx context.Context, to, body string) (string, error) {
	f.sent++
	f.lastTo = to
	f.lastBody = body
	if f.err != nil {
		return "", f.err
	}
	return "SM123", nil
}

func validRequest() *Request {
	return &Request{
		ConfigID:    "cfg1",
		CallerName:  "Ada",
		CallerPhone: "+15550004444",
		Date:        "2026-09-01",
		Time:        "14:30",
		ServiceType: "consultation",
	}
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *Request)
	}{
		{
			name:   "Missing caller name",
			mutate: func(req *Request) { req.CallerName = "" },
		},
		{
			name: "No contact details",
			mutate: func(req *Request) {
				req.CallerPhone = ""
				req.CallerEmail = ""
			},
		},
		{
			name:   "Bad date",
			mutate: func(req *Request) { req.Date = "next tuesday" },
		},
		{
			name:   "Bad time",
			mutate: func(req *Request) { req.Time = "2pm" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &fakeAppointmentStore{}
			b, err := NewBooker(shared.NewStdLogger(), st, nil)
			require.NoError(t, err)

			req := validRequest()
			tt.mutate(req)
			appt, err := b.Book(context.Background(), req)
			assert.Error(t, err)
			assert.Nil(t, appt)
			assert.Empty(t, st.created)
		})
	}
}

func TestBookPersistsAndConfirms(t *testing.T) {
	st := &fakeAppointmentStore{}
	messenger := &fakeMessenger{}
	b, err := NewBooker(shared.NewStdLogger(), st, messenger)
	require.NoError(t, err)

	appt, err := b.Book(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.NotEmpty(t, appt.ID)
	assert.NotEmpty(t, appt.BookingID)
	assert.Equal(t, "cfg1", appt.ConfigID)
	assert.Equal(t, "2026-09-01", appt.Date)
	assert.Equal(t, "14:30", appt.Time)

	require.Len(t, st.created, 1)
	assert.Equal(t, appt, st.created[0])

	assert.Equal(t, 1, messenger.sent)
	assert.Equal(t, "+15550004444", messenger.lastTo)
	assert.Contains(t, messenger.lastBody, appt.BookingID)
	assert.Contains(t, messenger.lastBody, "2026-09-01")
}

func TestBookEmailOnlySkipsConfirmation(t *testing.T) {
	st := &fakeAppointmentStore{}
	messenger := &fakeMessenger{}
	b, err := NewBooker(shared.NewStdLogger(), st, messenger)
	require.NoError(t, err)

	req := validRequest()
	req.CallerPhone = ""
	req.CallerEmail = "ada@example.com"
	appt, err := b.Book(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, appt)
	assert.Equal(t, 0, messenger.sent)
}

func TestBookSurvivesConfirmationFailure(t *testing.T) {
	st := &fakeAppointmentStore{}
	messenger := &fakeMessenger{err: fmt.Errorf("carrier rejected message")}
	b, err := NewBooker(shared.NewStdLogger(), st, messenger)
	require.NoError(t, err)

	appt, err := b.Book(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, appt)
	require.Len(t, st.created, 1)
}

func TestBookStoreFailure(t *testing.T) {
	st := &fakeAppointmentStore{err: fmt.Errorf("table missing")}
	b, err := NewBooker(shared.NewStdLogger(), st, nil)
	require.NoError(t, err)

	appt, err := b.Book(context.Background(), validRequest())
	assert.Error(t, err)
	assert.Nil(t, appt)
}
