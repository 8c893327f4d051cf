// internal/mailbox/body.go
package mailbox

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseMessage reads an RFC 5322 message and keeps the first text/plain and
// text/html parts. Parts in unknown charsets are kept undecoded.
func ParseMessage(r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	var msg Message
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else {
		msg.From = mr.Header.Get("From")
	}
	for _, key := range []string{"To", "Cc"} {
		if list, err := mr.Header.AddressList(key); err == nil {
			for _, addr := range list {
				msg.To = append(msg.To, addr.Address)
			}
		}
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return msg, fmt.Errorf("failed to read message part: %w", err)
		}
		if part == nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, ctErr := h.ContentType()
		if ctErr != nil {
			contentType, _, _ = mime.ParseMediaType(h.Get("Content-Type"))
		}
		if contentType == "" {
			contentType = "text/plain"
		}

		switch contentType {
		case "text/plain":
			if msg.TextBody != "" {
				continue
			}
		case "text/html":
			if msg.HTMLBody != "" {
				continue
			}
		default:
			continue
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return msg, fmt.Errorf("failed to read %s body: %w", contentType, err)
		}
		if contentType == "text/plain" {
			msg.TextBody = string(b)
		} else {
			msg.HTMLBody = string(b)
		}
	}
	return msg, nil
}

// Body returns the text the link patterns run over: the plain text part, or
// the flattened HTML part when there is no usable plain text.
func (m Message) Body() string {
	if strings.TrimSpace(m.TextBody) != "" {
		return m.TextBody
	}
	if m.HTMLBody == "" {
		return ""
	}
	return FlattenHTML(m.HTMLBody)
}

// FlattenHTML turns an HTML body into whitespace separated text with every
// anchor href listed first, so links hidden behind button text stay visible
// to the extractor.
func FlattenHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	var b strings.Builder
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			b.WriteString(strings.TrimSpace(href))
			b.WriteString("\n")
		}
	})
	doc.Find("script, style").Remove()
	b.WriteString(strings.Join(strings.Fields(doc.Text()), " "))
	return b.String()
}
