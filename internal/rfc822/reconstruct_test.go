package rfc822

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// msg joins lines with CRLF, the wire form fetch responses arrive in.
func msg(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestReconstructHeaders(t *testing.T) {
	m := Reconstruct(msg(
		"From: Alice <alice@example.com>",
		"To: bob@example.com",
		"Subject: =?ISO-8859-1?Q?Caf=E9?=",
		"Date: Mon, 02 Jan 2023 15:04:05 +0000",
		"Message-ID: <1@example.com>",
		"Content-Type: text/plain",
		"",
		"hi",
	))

	want := map[string]string{
		"from":       "Alice <alice@example.com>",
		"to":         "bob@example.com",
		"subject":    "Café",
		"date":       "Mon, 02 Jan 2023 15:04:05 +0000",
		"message-id": "<1@example.com>",
	}
	if diff := cmp.Diff(want, m.Headers()); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Headers()["cc"]; ok {
		t.Error("absent Cc header should be omitted, not empty")
	}
}

func TestBodyPrefersPlainOverHTML(t *testing.T) {
	// The HTML alternative comes first in document order and still
	// must not win.
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/html",
		"",
		"<p>rich</p>",
		"--b1",
		"Content-Type: text/plain",
		"",
		"plain",
		"--b1--",
		"",
	))

	if got := m.Body(); got != "plain" {
		t.Errorf("Body() = %q, want %q", got, "plain")
	}
}

func TestBodyFallsBackToHTML(t *testing.T) {
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/html",
		"",
		"<p>only html</p>",
		"--b1--",
		"",
	))

	if got := m.Body(); got != "<p>only html</p>" {
		t.Errorf("Body() = %q, want %q", got, "<p>only html</p>")
	}
}

func TestBodyEmptyWhenNoTextParts(t *testing.T) {
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: image/png",
		"Content-Transfer-Encoding: base64",
		"",
		"aGk=",
		"--b1--",
		"",
	))

	if got := m.Body(); got != "" {
		t.Errorf("Body() = %q, want empty", got)
	}
}

func TestBodyFirstPlainPartWins(t *testing.T) {
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain",
		"",
		"first",
		"--b1",
		"Content-Type: text/plain",
		"",
		"second",
		"--b1--",
		"",
	))

	if got := m.Body(); got != "first" {
		t.Errorf("Body() = %q, want %q", got, "first")
	}
}

func TestBodySkipsAttachments(t *testing.T) {
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain",
		`Content-Disposition: attachment; filename="notes.txt"`,
		"",
		"attached notes",
		"--b1",
		"Content-Type: text/plain",
		"",
		"inline body",
		"--b1--",
		"",
	))

	if got := m.Body(); got != "inline body" {
		t.Errorf("Body() = %q, want %q", got, "inline body")
	}
}

func TestBodyDecodesDeclaredCharset(t *testing.T) {
	m := Reconstruct(msg(
		"From: a@example.com",
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="iso-8859-1"`,
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"caf=E9",
	))

	if got := m.Body(); got != "café" {
		t.Errorf("Body() = %q, want %q", got, "café")
	}
}

func TestReconstructUnparseableFallsBackToRaw(t *testing.T) {
	raw := []byte("not a mail message at all")
	m := Reconstruct(raw)

	if got := m.Body(); got != string(raw) {
		t.Errorf("Body() = %q, want raw input", got)
	}
	if len(m.Headers()) != 0 {
		t.Errorf("Headers() = %v, want none", m.Headers())
	}
}
