package dialogue

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/twiml"
)

// Caller-facing phrases.
const (
	greetingFormat = "Hello %s, this is an automated interview for the job role you have applied for: %s. Let's begin your interview."
	promptFormat   = "Question %d: %s"
	noResponse     = "We did not receive your response. Let's move to the next question."
	closing        = "Thank you for your time. Have a great day!"
	msgNotFound    = "Sorry, this interview does not exist."
	msgComplete    = "Thank you, your interview is already complete. Have a great day!"
	msgCancelled   = "Sorry, this interview is no longer active. Goodbye."
	msgAppError    = "Sorry, an application error occurred. Please try again later."
)

const jobRoleMaxRunes = 60

// errCancelled marks an interview that was cancelled before or during the call.
var errCancelled = interview.ErrCancelled

// Respond turns an engine Result into the script sent to the caller. It is
// the only place where failures become fallback scripts.
func Respond(r Result) twiml.Script {
	if r.Err == nil && r.Script.Validate() == nil {
		return r.Script
	}
	switch {
	case r.Err == nil:
		return hangup(msgAppError)
	case errors.Is(r.Err, errCancelled):
		return hangup(msgCancelled)
	case errors.Is(r.Err, interview.ErrNotFound):
		return hangup(msgNotFound)
	case errors.Is(r.Err, interview.ErrAlreadyComplete):
		return hangup(msgComplete)
	}
	return hangup(msgAppError)
}

func hangup(msg string) twiml.Script {
	return twiml.Script{twiml.Say{Text: msg}, twiml.Hangup{}}
}

func closingScript() twiml.Script {
	return twiml.Script{twiml.Pause{Seconds: 2}, twiml.Say{Text: closing}, twiml.Hangup{}}
}

// jobRole shortens a job description for the greeting.
func jobRole(jd string) string {
	jd = strings.Join(strings.Fields(jd), " ")
	if utf8.RuneCountInString(jd) <= jobRoleMaxRunes {
		return jd
	}
	r := []rune(jd)
	return string(r[:jobRoleMaxRunes]) + "..."
}

var repeatCommands = map[string]bool{
	"repeat":              true,
	"repeat please":       true,
	"please repeat":       true,
	"repeat that":         true,
	"repeat the question": true,
	"say again":           true,
	"say that again":      true,
	"come again":          true,
	"pardon":              true,
	"*":                   true,
}

var spaces = regexp.MustCompile(`\s+`)

func normalizeInput(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".?!, ")
	return spaces.ReplaceAllString(s, " ")
}

// IsRepeat reports whether the caller asked to hear the question again.
func IsRepeat(input string) bool {
	return repeatCommands[normalizeInput(input)]
}
