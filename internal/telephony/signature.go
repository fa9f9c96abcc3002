package telephony

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// maxWebhookBody caps form bodies read while validating a signature.
const maxWebhookBody = 64 << 10

// SignatureValidator rejects webhook requests that were not signed with the
// account's auth token. Twilio signs the public URL it called, so the URL is
// rebuilt from the configured public base rather than from the Host header.
type SignatureValidator struct {
	validator client.RequestValidator
	baseURL   string
	logger    *slog.Logger
}

func NewSignatureValidator(authToken, publicBaseURL string, logger *slog.Logger) *SignatureValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignatureValidator{
		validator: client.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		logger:    logger,
	}
}

// Valid reports whether r carries a correct signature for its form body.
func (v *SignatureValidator) Valid(r *http.Request) bool {
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return false
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return v.validator.Validate(v.baseURL+r.URL.RequestURI(), params, sig)
}

// Middleware answers 403 to unsigned or wrongly signed requests.
func (v *SignatureValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Valid(r) {
			v.logger.Warn("rejected webhook with invalid signature", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
