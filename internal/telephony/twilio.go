// Package telephony places outbound interview calls through Twilio and
// authenticates Twilio's webhook requests.
package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/recruitx/recruitx/internal/interview"
)

// DefaultTimeout bounds a single call creation request.
const DefaultTimeout = 15 * time.Second

// statusEvents are the call progress events reported to the status webhook.
var statusEvents = []string{"initiated", "ringing", "answered", "completed"}

// callCreator is the subset of the Twilio API used to place calls.
type callCreator interface {
	CreateCall(params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error)
}

type Options struct {
	AccountSID    string
	AuthToken     string
	FromNumber    string
	PublicBaseURL string
	// Timeout bounds the whole HTTP exchange of one call creation.
	Timeout time.Duration

	transport http.RoundTripper
}

// Twilio places interview calls whose TwiML is served by this service.
type Twilio struct {
	api     callCreator
	account string
	from    string
	baseURL string
	logger  *slog.Logger
}

func NewTwilio(opts Options, logger *slog.Logger) (*Twilio, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	c := &client.Client{
		Credentials: client.NewCredentials(opts.AccountSID, opts.AuthToken),
		HTTPClient:  &http.Client{Timeout: opts.Timeout, Transport: opts.transport},
	}
	c.SetAccountSid(opts.AccountSID)
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Client: c})
	return newTwilio(rest.Api, opts, logger)
}

func newTwilio(api callCreator, opts Options, logger *slog.Logger) (*Twilio, error) {
	if opts.FromNumber == "" {
		return nil, errors.New("twilio from number is required")
	}
	if opts.PublicBaseURL == "" {
		return nil, errors.New("public base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Twilio{
		api:     api,
		account: opts.AccountSID,
		from:    opts.FromNumber,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// EntryURL is the webhook Twilio fetches when the candidate answers.
func (t *Twilio) EntryURL(interviewID string) string {
	return fmt.Sprintf("%s/api/v1/interviews/%s/twiml", t.baseURL, interviewID)
}

// StatusURL receives call progress events.
func (t *Twilio) StatusURL(interviewID string) string {
	return fmt.Sprintf("%s/api/v1/interviews/%s/status", t.baseURL, interviewID)
}

// PlaceCall dials to and returns the call SID. The request is bounded by
// Options.Timeout. Failures other than an error response from Twilio wrap
// interview.ErrCallUnconfirmed: the request may have reached Twilio and the
// call may ring anyway.
func (t *Twilio) PlaceCall(ctx context.Context, to, interviewID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("creating call: %w", err)
	}

	params := &twilioapi.CreateCallParams{}
	if t.account != "" {
		params.SetPathAccountSid(t.account)
	}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetUrl(t.EntryURL(interviewID))
	params.SetMethod("POST")
	params.SetStatusCallback(t.StatusURL(interviewID))
	params.SetStatusCallbackEvent(statusEvents)
	params.SetStatusCallbackMethod("POST")

	call, err := t.api.CreateCall(params)
	if err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			return "", fmt.Errorf("creating call: twilio error %d: %s", restErr.Code, restErr.Message)
		}
		return "", fmt.Errorf("creating call: %w: %v", interview.ErrCallUnconfirmed, err)
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", errors.New("creating call: response has no call sid")
	}
	t.logger.Info("call created", "interview_id", interviewID, "call_sid", *call.Sid)
	return *call.Sid, nil
}
