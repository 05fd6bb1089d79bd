// Package rfc822 reconstructs structured header/body records from the
// raw transport form of a mail message.
package rfc822

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	// Registers decoders for non-UTF-8 charsets so part bodies and
	// encoded header words come back as UTF-8 with invalid bytes
	// replaced instead of failing the whole message.
	_ "github.com/emersion/go-message/charset"
)

// headerNames is the fixed set of headers surfaced to callers, in
// their lower-cased wire form.
var headerNames = []string{"from", "to", "cc", "subject", "date", "message-id"}

// Message is one reconstructed mail message.
type Message struct {
	headers map[string]string
	body    string
}

// Headers returns the whitelisted headers present on the message,
// keyed by lower-cased name. Absent headers are omitted.
func (m *Message) Headers() map[string]string {
	return m.headers
}

// Body returns the single best-representative body of the message:
// the first non-attachment text/plain part if any, else the first
// text/html part, else the empty string. HTML never wins over plain
// text, regardless of part order.
func (m *Message) Body() string {
	return m.body
}

// Reconstruct parses one raw RFC 822 message. It never fails: a
// message that cannot be parsed as MIME at all is treated as a bare
// plain-text body, and part-level decode problems only skip the part
// concerned.
func Reconstruct(raw []byte) *Message {
	msg := &Message{headers: map[string]string{}}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		msg.body = string(raw)
		return msg
	}
	defer mr.Close()

	for _, name := range headerNames {
		if mr.Header.Get(name) == "" {
			continue
		}
		value, err := mr.Header.Text(name)
		if err != nil {
			// Undecodable encoded words fall back to the raw value.
			value = mr.Header.Get(name)
		}
		msg.headers[name] = value
	}

	var (
		text, html         string
		haveText, haveHTML bool
	)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments do not participate in body selection.
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		contentType = strings.ToLower(contentType)

		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}

		// Only the first part of each kind counts, even if its
		// decoded content is empty.
		if contentType == "text/plain" && haveText {
			continue
		}
		if contentType == "text/html" && haveHTML {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil && len(body) == 0 {
			continue
		}

		if contentType == "text/plain" {
			text, haveText = string(body), true
		} else {
			html, haveHTML = string(body), true
		}

		if haveText {
			// Nothing later in the walk can displace a plain-text
			// candidate.
			break
		}
	}

	switch {
	case haveText:
		msg.body = text
	case haveHTML:
		msg.body = html
	}

	return msg
}
