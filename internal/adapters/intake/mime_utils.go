package intake

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"sort"
	"strings"
)

const noTextPlaceholder = "[No text content found in message]"

// analysisHeaders are shown first, in this order, when rendering a message
var analysisHeaders = []string{
	"From", "Sender", "Reply-To", "Return-Path", "To", "Cc", "Subject", "Date", "Message-Id",
	"Authentication-Results", "Received-Spf", "Dkim-Signature", "Received",
}

var headerDecoder = new(mime.WordDecoder)

// decodeEncodedHeader decodes RFC 2047 encoded words
func decodeEncodedHeader(value string) (string, error) {
	return headerDecoder.DecodeHeader(value)
}

// renderMessage turns a parsed message into the text submitted for analysis:
// decoded headers, a blank line, then the readable body
func renderMessage(msg *mail.Message) (string, error) {
	var b strings.Builder
	writeHeaders(&b, msg.Header)
	b.WriteString("\n")

	body, err := extractText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		body = noTextPlaceholder
	}
	b.WriteString(body)
	return b.String(), nil
}

func writeHeaders(b *strings.Builder, header mail.Header) {
	seen := make(map[string]bool, len(analysisHeaders))
	write := func(key string) {
		for _, value := range header[key] {
			if decoded, err := decodeEncodedHeader(value); err == nil {
				value = decoded
			}
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}

	for _, key := range analysisHeaders {
		seen[key] = true
		write(key)
	}

	rest := make([]string, 0, len(header))
	for key := range header {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		write(key)
	}
}

// extractText returns the text/plain content of a body, falling back to
// text/html when a message has no plain part. Nested multiparts are walked.
func extractText(contentType, transferEncoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		// Untyped or unparseable: treat as plain text
		data, err := readDecoded(transferEncoding, body)
		return string(data), err
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		if !strings.HasPrefix(mediaType, "text/") {
			return "", nil
		}
		data, err := readDecoded(transferEncoding, body)
		return string(data), err
	}

	boundary, ok := params["boundary"]
	if !ok {
		data, err := io.ReadAll(body)
		return string(data), err
	}

	var plain, html bytes.Buffer
	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the broken part
			break
		}

		partType := part.Header.Get("Content-Type")
		partMedia, _, _ := mime.ParseMediaType(partType)
		encoding := part.Header.Get("Content-Transfer-Encoding")

		switch {
		case strings.HasPrefix(partMedia, "multipart/"):
			text, err := extractText(partType, encoding, part)
			if err == nil && text != "" {
				plain.WriteString(text)
				plain.WriteString("\n")
			}
		case partMedia == "text/plain" || partType == "":
			data, err := readDecoded(encoding, part)
			if err != nil {
				continue
			}
			plain.Write(data)
			plain.WriteString("\n")
		case partMedia == "text/html":
			data, err := readDecoded(encoding, part)
			if err != nil {
				continue
			}
			html.Write(data)
			html.WriteString("\n")
		}
		// Attachments are skipped
	}

	if plain.Len() > 0 {
		return plain.String(), nil
	}
	return html.String(), nil
}

func readDecoded(transferEncoding string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	}
	return io.ReadAll(r)
}

// newlineStripper drops CR and LF so wrapped base64 decodes
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		count, err := n.r.Read(p)
		kept := 0
		for _, c := range p[:count] {
			if c != '\r' && c != '\n' {
				p[kept] = c
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}
