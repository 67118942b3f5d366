package gaxios

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Body is a request payload of one of a fixed set of kinds. The kind is
// chosen at the API boundary via the JSON, String, Bytes, Reader, Form and
// Multipart constructors; the preparer never inspects arbitrary values.
type Body interface {
	// contentType is the content type implied by the body kind, or ""
	// when the kind carries no implication.
	contentType() string
	// encode materializes the payload. Deterministic kinds return bytes
	// that are re-sent verbatim on every retry attempt; streaming kinds
	// return a one-shot reader instead.
	encode() (data []byte, stream io.Reader, err error)
}

// JSON returns a body that serializes v as JSON. Content-Type becomes
// application/json unless one is already set.
func JSON(v any) Body { return jsonBody{v: v} }

// String returns a body sending s verbatim.
func String(s string) Body { return stringBody(s) }

// Bytes returns a body sending b verbatim.
func Bytes(b []byte) Body { return bytesBody(b) }

// Reader returns a one-shot body streaming from r. It cannot be replayed,
// so a retried attempt re-sends whatever remains unread.
func Reader(r io.Reader) Body { return readerBody{r: r} }

// Form returns a URL-encoded body. Content-Type becomes
// application/x-www-form-urlencoded unless one is already set.
func Form(v url.Values) Body { return formBody{v: v} }

// Multipart returns a multipart/related body. The boundary is generated
// fresh during preparation; the stream is built lazily and consumed once.
func Multipart(parts ...Part) Body { return &multipartBody{parts: parts} }

// Part is one section of a multipart/related body.
type Part struct {
	// ContentType defaults to application/octet-stream.
	ContentType string
	// Content is emitted as-is, in input order. Multipart content nested
	// inside a part is treated as opaque bytes.
	Content io.Reader
}

// StringPart builds a Part from an in-memory string.
func StringPart(contentType, content string) Part {
	return Part{ContentType: contentType, Content: strings.NewReader(content)}
}

type jsonBody struct{ v any }

func (jsonBody) contentType() string { return "application/json" }

func (b jsonBody) encode() ([]byte, io.Reader, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}

type stringBody string

func (stringBody) contentType() string { return "" }

func (b stringBody) encode() ([]byte, io.Reader, error) {
	return []byte(b), nil, nil
}

type bytesBody []byte

func (bytesBody) contentType() string { return "" }

func (b bytesBody) encode() ([]byte, io.Reader, error) {
	return b, nil, nil
}

type readerBody struct{ r io.Reader }

func (readerBody) contentType() string { return "" }

func (b readerBody) encode() ([]byte, io.Reader, error) {
	return nil, b.r, nil
}

type formBody struct{ v url.Values }

func (formBody) contentType() string { return "application/x-www-form-urlencoded" }

func (b formBody) encode() ([]byte, io.Reader, error) {
	return []byte(b.v.Encode()), nil, nil
}

type multipartBody struct {
	parts    []Part
	boundary string
}

func (b *multipartBody) contentType() string {
	return "multipart/related; boundary=" + b.boundary
}

func (b *multipartBody) encode() ([]byte, io.Reader, error) {
	return nil, buildMultipart(b.parts, b.boundary), nil
}

// newBoundary generates a collision-improbable multipart boundary. Entropy
// is the only defense against boundary collisions with part content; the
// parts are never scanned.
func newBoundary() string {
	return uuid.NewString()
}

// buildMultipart assembles a lazy, finite, single-use stream over the
// parts: for each part a boundary line and Content-Type preamble, the
// content, then CRLF; a closing boundary after the last part.
func buildMultipart(parts []Part, boundary string) io.Reader {
	readers := make([]io.Reader, 0, len(parts)*3+1)
	for _, part := range parts {
		contentType := part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		readers = append(readers,
			strings.NewReader("--"+boundary+"\r\nContent-Type: "+contentType+"\r\n\r\n"),
			part.Content,
			strings.NewReader("\r\n"),
		)
	}
	readers = append(readers, strings.NewReader("--"+boundary+"--"))
	return io.MultiReader(readers...)
}

// bodyReader returns the payload reader for one dispatch attempt along
// with its length when known. Deterministic payloads get a fresh reader
// per attempt; one-shot streams are returned as-is.
func (c *RequestConfig) bodyReader() (io.Reader, int64) {
	if c.bodyBytes != nil {
		return bytes.NewReader(c.bodyBytes), int64(len(c.bodyBytes))
	}
	if c.bodyStream != nil {
		return c.bodyStream, -1
	}
	return nil, 0
}
