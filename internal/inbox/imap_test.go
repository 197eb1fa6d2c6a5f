package inbox

import (
	"strings"
	"testing"
)

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	t.Run("plain text message", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: Venmo <venmo@venmo.com>",
			"Subject: Jane Doe paid you $25.00",
			"Content-Type: text/plain; charset=utf-8",
			"",
			`Jane Doe paid you $25.00. For: "DA25-AB12CD"`,
			"",
		}, "\r\n")

		msg, err := decodeMessage([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Subject != "Jane Doe paid you $25.00" {
			t.Fatalf("unexpected subject %q", msg.Subject)
		}
		if !strings.Contains(msg.Body, "DA25-AB12CD") {
			t.Fatalf("body missing note: %q", msg.Body)
		}
	})

	t.Run("plain part preferred over html", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: Venmo <venmo@venmo.com>",
			"Subject: Jane Doe paid you",
			`Content-Type: multipart/alternative; boundary="sep"`,
			"",
			"--sep",
			"Content-Type: text/html; charset=utf-8",
			"",
			"<p>html body</p>",
			"--sep",
			"Content-Type: text/plain; charset=utf-8",
			"",
			"plain body",
			"--sep--",
			"",
		}, "\r\n")

		msg, err := decodeMessage([]byte(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.Contains(msg.Body, "plain body") {
			t.Fatalf("expected plain part, got %q", msg.Body)
		}
	})

	t.Run("garbage bytes return an error", func(t *testing.T) {
		if _, err := decodeMessage([]byte("\x00\x01not an rfc822 message")); err == nil {
			t.Fatal("expected decode error")
		}
	})
}
