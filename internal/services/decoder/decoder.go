package decoder

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	// Lenient charset resolution for part bodies: an unknown label falls
	// through to the raw bytes instead of failing the whole message.
	message.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if r, err := htmlcharset.NewReaderLabel(charset, input); err == nil {
			return r, nil
		}
		return input, nil
	}
}

// Decoded is the text view of one raw message.
type Decoded struct {
	Sender  string
	Subject string
	Date    string
	Body    string
}

// DecodeError marks a message that could not be parsed at all. The
// monitor loop skips the message and continues.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder turns raw RFC 5322 bytes into sender/subject/date/body text.
type Decoder struct {
	logger *zap.Logger
	words  *mime.WordDecoder
	strip  *bluemonday.Policy
}

func New(logger *zap.Logger) *Decoder {
	return &Decoder{
		logger: logger,
		words: &mime.WordDecoder{
			CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
				if r, err := htmlcharset.NewReaderLabel(charset, input); err == nil {
					return r, nil
				}
				return input, nil
			},
		},
		strip: bluemonday.StrictPolicy(),
	}
}

// Decode parses a raw message. Header values are decoded word by word
// (each encoded word may carry its own charset); part bodies that fail
// to decode are dropped rather than failing the message. The body is
// the first non-empty text/plain part, falling back to the first
// text/html part rendered to plain text.
func (d *Decoder) Decode(raw []byte) (Decoded, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Decoded{}, &DecodeError{Err: err}
	}
	defer mr.Close()

	out := Decoded{
		Sender:  d.DecodeHeader(mr.Header.Get("From")),
		Subject: d.DecodeHeader(mr.Header.Get("Subject")),
		Date:    strings.TrimSpace(mr.Header.Get("Date")),
	}

	var plain, htmlPart string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.logger.Warn("Unreadable message part, skipping remainder", zap.Error(err))
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			d.logger.Warn("Failed to read message part", zap.String("content_type", contentType), zap.Error(err))
			continue
		}

		text := strings.ToValidUTF8(string(body), "")
		switch contentType {
		case "text/plain":
			if plain == "" && strings.TrimSpace(text) != "" {
				plain = text
			}
		case "text/html":
			if htmlPart == "" {
				htmlPart = text
			}
		}
	}

	switch {
	case plain != "":
		out.Body = plain
	case htmlPart != "":
		out.Body = d.htmlToText(htmlPart)
	}

	return out, nil
}

// DecodeHeader decodes MIME encoded-word sequences in a header value.
// A value that fails to decode is returned as-is with invalid UTF-8
// bytes substituted.
func (d *Decoder) DecodeHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if decoded, err := d.words.DecodeHeader(value); err == nil {
		value = decoded
	}
	return strings.ToValidUTF8(value, "�")
}

// htmlToText strips tags (script and style contents included), then
// unescapes entities and collapses blank lines, preserving the order of
// the visible text.
func (d *Decoder) htmlToText(input string) string {
	stripped := html.UnescapeString(d.strip.Sanitize(input))

	var lines []string
	for _, line := range strings.Split(stripped, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
