// Package twiml models the voice scripts returned to the telephony provider
// and renders them as TwiML.
package twiml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// InputMode is a kind of caller input a Gather listens for.
type InputMode string

const (
	Speech InputMode = "speech"
	DTMF   InputMode = "dtmf"
)

// Action is one step of a Script.
type Action interface {
	action()
}

// Say speaks Text to the caller.
type Say struct {
	Text string
}

// Pause waits silently for Seconds.
type Pause struct {
	Seconds int
}

// Gather collects caller input and posts it to Action.
type Gather struct {
	Input          []InputMode
	TimeoutSeconds int
	NumDigits      int
	Action         string
	Prompt         Say
	// PostOnEmpty makes a silent caller continue at Action with an empty
	// result instead of falling through to the next verb.
	PostOnEmpty bool
}

// Hangup ends the call.
type Hangup struct{}

func (Say) action()    {}
func (Pause) action()  {}
func (Gather) action() {}
func (Hangup) action() {}

// Script is an ordered list of voice actions.
type Script []Action

// ErrOpenEnded is returned by Validate when a script does not end by
// waiting for input or hanging up.
var ErrOpenEnded = errors.New("script must end with a gather or a hangup")

// Validate checks that the script ends with a Gather or a Hangup.
func (s Script) Validate() error {
	if len(s) == 0 {
		return ErrOpenEnded
	}
	switch s[len(s)-1].(type) {
	case Gather, Hangup:
		return nil
	}
	return ErrOpenEnded
}

// Terminal reports whether the script ends the call.
func (s Script) Terminal() bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[len(s)-1].(Hangup)
	return ok
}

// Voice holds the rendering settings shared by every Say.
type Voice struct {
	Name     string
	Language string
}

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Render produces the TwiML document for a script. Attribute order is fixed
// so identical scripts always render to identical bytes.
func Render(s Script, v Voice) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{Name: xml.Name{Local: "Response"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	for i, a := range s {
		if err := encodeAction(enc, a, v); err != nil {
			return nil, fmt.Errorf("rendering action %d: %w", i, err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeAction(enc *xml.Encoder, a Action, v Voice) error {
	switch a := a.(type) {
	case Say:
		return encodeSay(enc, a, v)
	case Pause:
		secs := a.Seconds
		if secs <= 0 {
			secs = 1
		}
		return encodeEmpty(enc, "Pause", attr("length", strconv.Itoa(secs)))
	case Hangup:
		return encodeEmpty(enc, "Hangup")
	case Gather:
		return encodeGather(enc, a, v)
	}
	return fmt.Errorf("unknown action %T", a)
}

func encodeGather(enc *xml.Encoder, g Gather, v Voice) error {
	if g.Action == "" {
		return errors.New("gather action url is required")
	}
	modes := make([]string, 0, len(g.Input))
	for _, m := range g.Input {
		modes = append(modes, string(m))
	}
	if len(modes) == 0 {
		modes = []string{string(Speech), string(DTMF)}
	}

	attrs := []xml.Attr{attr("input", strings.Join(modes, " "))}
	if g.TimeoutSeconds > 0 {
		attrs = append(attrs, attr("timeout", strconv.Itoa(g.TimeoutSeconds)))
	}
	if g.NumDigits > 0 {
		attrs = append(attrs, attr("numDigits", strconv.Itoa(g.NumDigits)))
	}
	attrs = append(attrs, attr("action", g.Action), attr("method", "POST"))
	if v.Language != "" {
		attrs = append(attrs, attr("language", v.Language))
	}
	if g.PostOnEmpty {
		attrs = append(attrs, attr("actionOnEmptyResult", "true"))
	}

	start := xml.StartElement{Name: xml.Name{Local: "Gather"}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if g.Prompt.Text != "" {
		if err := encodeSay(enc, g.Prompt, v); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}

	if !g.PostOnEmpty {
		return nil
	}
	// Providers that ignore actionOnEmptyResult fall through to here.
	return encodeText(enc, "Redirect", g.Action, attr("method", "POST"))
}

func encodeSay(enc *xml.Encoder, s Say, v Voice) error {
	var attrs []xml.Attr
	if v.Name != "" {
		attrs = append(attrs, attr("voice", v.Name))
	}
	if v.Language != "" {
		attrs = append(attrs, attr("language", v.Language))
	}
	return encodeText(enc, "Say", s.Text, attrs...)
}

func encodeText(enc *xml.Encoder, name, text string, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeEmpty(enc *xml.Encoder, name string, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}
