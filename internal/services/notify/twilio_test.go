package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mailwatch/internal/models"
)

func TestSMSBodyTruncatesSubject(t *testing.T) {
	long := models.EmailEvent{Sender: "a@b.c", Subject: repeatRune('x', 150)}
	body := smsBody(long)
	require.Contains(t, body, "From: a@b.c")
	require.Contains(t, body, repeatRune('x', 100)+"...")
}

func TestCallTwiMLEscapesContent(t *testing.T) {
	event := models.EmailEvent{
		Sender:  "Mallory <mallory@evil.example>",
		Subject: `<Hangup/> & more`,
	}

	twiml := callTwiML("Check your mailbox.", event)
	require.Contains(t, twiml, `<Response><Say voice="alice" language="fr-FR">`)
	require.NotContains(t, twiml, "<Hangup/>")
	require.Contains(t, twiml, "&lt;Hangup/&gt;")
	require.Contains(t, twiml, "&amp; more")
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
