package messaging

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessenger(t *testing.T, baseUrl string) *Messenger {
	t.Helper()
	m, err := NewMessenger(shared.NewStdLogger(), "AC123", "secret", "+15550000000", baseUrl)
	require.NoError(t, err)
	return m
}

func TestNewMessengerValidation(t *testing.T) {
	logger := shared.NewStdLogger()

	_, err := NewMessenger(nil, "AC123", "secret", "+15550000000", "")
	assert.ErrorIs(t, err, shared.ErrNoLogger)

	_, err = NewMessenger(logger, "", "secret", "+15550000000", "")
	assert.Error(t, err)

	_, err = NewMessenger(logger, "AC123", "", "+15550000000", "")
	assert.Error(t, err)

	_, err = NewMessenger(logger, "AC123", "secret", "", "")
	assert.Error(t, err)
}

func TestSendPostsToMessagesEndpoint(t *testing.T) {
	var gotPath, gotAuth, gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		gotTo = r.Form.Get("To")
		gotFrom = r.Form.Get("From")
		gotBody = r.Form.Get("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM987","status":"queued"}`))
	}))
	defer srv.Close()

	m := newTestMessenger(t, srv.URL)
	sid, err := m.Send(context.Background(), "+15550004444", "Your order is ready")
	require.NoError(t, err)
	assert.Equal(t, "SM987", sid)

	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("AC123:secret"))
	assert.Equal(t, expectedAuth, gotAuth)
	assert.Equal(t, "+15550004444", gotTo)
	assert.Equal(t, "+15550000000", gotFrom)
	assert.Equal(t, "Your order is ready", gotBody)
}

func TestSendRejectsEmptyFields(t *testing.T) {
	m := newTestMessenger(t, "http://127.0.0.1:1")

	_, err := m.Send(context.Background(), "", "hello")
	assert.Error(t, err)

	_, err = m.Send(context.Background(), "+15550004444", "")
	assert.Error(t, err)
}

func TestSendProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	m := newTestMessenger(t, srv.URL)
	_, err := m.Send(context.Background(), "not-a-number", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 400")
}

func TestSendHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	m := newTestMessenger(t, srv.URL)
	_, err := m.Send(ctx, "+15550004444", "hello")
	assert.ErrorIs(t, err, context.Canceled)
}
