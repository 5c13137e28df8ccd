package httpcodec

import (
	"bytes"
	"strconv"
	"time"
)

// Serializer turns a Response into wire bytes. It holds no state of its
// own — it exists as a type (rather than a free function) so it can carry
// configuration such as the Server header value.
type Serializer struct {
	ServerName string
}

// NewSerializer returns a Serializer using DefaultServerName.
func NewSerializer() *Serializer {
	return &Serializer{ServerName: DefaultServerName}
}

// Serialize seals resp (if not already sealed) and renders it as a wire
// byte slice per spec §4.1: status line, one header line per value,
// auto-supplied Server/Date/Content-Length/Content-Type, blank line, body.
func (s *Serializer) Serialize(resp *Response) []byte {
	if !resp.sealed {
		resp.Commit()
	}

	if !resp.Header.Has("Server") {
		resp.Header.Set("Server", s.ServerName)
	}
	if !resp.Header.Has("Date") {
		resp.Header.Set("Date", time.Now().UTC().Format(dateFormat))
	}
	if len(resp.Body) > 0 && !resp.Header.Has("Content-Type") {
		resp.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	}
	if !resp.Header.Has("Content-Length") && resp.Status != 204 && resp.Status != 304 {
		resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(resp.Body))

	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(resp.Status))
	buf.WriteByte(' ')
	buf.WriteString(ReasonPhrase(resp.Status))
	buf.Write(crlf)

	resp.Header.Each(func(name, value string) {
		buf.WriteString(name)
		buf.Write(colonSpace)
		buf.WriteString(value)
		buf.Write(crlf)
	})
	buf.Write(crlf)
	buf.Write(resp.Body)

	return buf.Bytes()
}
