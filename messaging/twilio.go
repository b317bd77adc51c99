// Package messaging sends SMS through the telephony provider's REST API.
package messaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultBaseUrl = "https://api.twilio.com/2010-04-01"

// Messenger posts to the provider's Messages endpoint with basic auth.
type Messenger struct {
	logger     shared.LoggerAdapter
	baseUrl    string
	accountSid string
	authToken  string
	from       string
}

func NewMessenger(logger shared.LoggerAdapter, accountSid, authToken, from, baseUrl string) (*Messenger, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if accountSid == "" || authToken == "" {
		return nil, fmt.Errorf("provider account credentials are required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender number is required")
	}
	if baseUrl == "" {
		baseUrl = defaultBaseUrl
	}
	return &Messenger{
		logger:     logger,
		baseUrl:    baseUrl,
		accountSid: accountSid,
		authToken:  authToken,
		from:       from,
	}, nil
}

type messageResponse struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

// Send delivers one SMS and returns the provider's message ID.
func (m *Messenger) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient number is required")
	}
	if body == "" {
		return "", fmt.Errorf("message body is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", m.from)
	form.Set("Body", body)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(m.baseUrl + "/Accounts/" + m.accountSid + "/Messages.json")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Authorization", "Basic "+basicAuth(m.accountSid, m.authToken))
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString(form.Encode())

	errC := make(chan error)
	go func() {
		defer close(errC)
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errC:
		if err != nil {
			return "", fmt.Errorf("performing HTTP request: %w", err)
		}
	}
	if resp.StatusCode() != fasthttp.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), string(resp.Body()))
	}

	parsed := new(messageResponse)
	if err := sonic.Unmarshal(resp.Body(), parsed); err != nil {
		return "", fmt.Errorf("unmarshaling message response: %w", err)
	}
	m.logger.Info(
		"sms sent",
		zap.String("message_id", parsed.Sid),
		zap.String("status", parsed.Status),
	)
	return parsed.Sid, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
