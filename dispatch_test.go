package gaxios

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingBody records whether a response body was read or closed.
type trackingBody struct {
	mu     sync.Mutex
	reader io.Reader
	read   bool
	closed bool
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	b.read = true
	b.mu.Unlock()
	return b.reader.Read(p)
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func TestContentLengthCheckedBeforeRead(t *testing.T) {
	client := newTestClient(t)
	body := &trackingBody{reader: strings.NewReader(strings.Repeat("x", 2048))}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:              testURL,
		MaxContentLength: 1024,
		Fetcher: func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode:    http.StatusOK,
				Header:        http.Header{},
				Body:          body,
				ContentLength: 2048,
			}, nil
		},
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ContentLengthError))
	assert.False(t, body.read, "the body must not be read when the declared length exceeds the limit")
	assert.True(t, body.closed)
}

func TestResponseDecodingByResponseType(t *testing.T) {
	tests := []struct {
		name         string
		responseType ResponseType
		contentType  string
		body         string
		wantData     any
	}{
		{
			name:         "explicit json",
			responseType: ResponseTypeJSON,
			contentType:  testContentType,
			body:         `{"a":1}`,
			wantData:     map[string]any{"a": float64(1)},
		},
		{
			name:         "explicit text",
			responseType: ResponseTypeText,
			contentType:  "text/plain",
			body:         "hello",
			wantData:     "hello",
		},
		{
			name:         "explicit bytes",
			responseType: ResponseTypeBytes,
			contentType:  "application/octet-stream",
			body:         "\x00\x01",
			wantData:     []byte{0, 1},
		},
		{
			name:        "sniffed json",
			contentType: "application/json; charset=utf-8",
			body:        `[1,2]`,
			wantData:    []any{float64(1), float64(2)},
		},
		{
			name:        "sniffed json falls back to text on parse failure",
			contentType: testContentType,
			body:        "not json",
			wantData:    "not json",
		},
		{
			name:        "sniffed text",
			contentType: "text/html",
			body:        "<p>hi</p>",
			wantData:    "<p>hi</p>",
		},
		{
			name:        "sniffed unknown stays raw",
			contentType: "application/pdf",
			body:        "%PDF",
			wantData:    []byte("%PDF"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t)
			fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
				respondWith(http.StatusOK, tt.contentType, tt.body),
			}}

			resp, err := client.Request(context.Background(), &RequestConfig{
				URL:          testURL,
				ResponseType: tt.responseType,
				Fetcher:      fetcher.fetch,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.wantData, resp.Data)
			assert.Equal(t, []byte(tt.body), resp.Bytes)
		})
	}
}

func TestRequiredJSONDecodeFailure(t *testing.T) {
	client := newTestClient(t)
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		respondWith(http.StatusOK, "text/plain", "definitely not json"),
	}}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:          testURL,
		ResponseType: ResponseTypeJSON,
		Fetcher:      fetcher.fetch,
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, DecodeError))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.NotNil(t, gerr.Response)
	assert.Equal(t, "definitely not json", gerr.Response.Data, "the consumed body survives as text on the error")
}

func TestStreamResponseLeavesBodyUnconsumed(t *testing.T) {
	client := newTestClient(t)
	body := &trackingBody{reader: strings.NewReader("streamed payload")}
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: body}, nil
		},
	}}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:          testURL,
		ResponseType: ResponseTypeStream,
		Fetcher:      fetcher.fetch,
	})

	require.NoError(t, err)
	assert.False(t, body.read, "stream mode must not consume the body")
	assert.Nil(t, resp.Data)
	assert.Nil(t, resp.Bytes)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "streamed payload", string(data))
	require.NoError(t, resp.Body.Close())
	assert.True(t, body.closed)
}

func TestRejectedStreamIsDrainedIntoError(t *testing.T) {
	client := newTestClient(t)
	body := &trackingBody{reader: strings.NewReader("error details")}
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}, Body: body}, nil
		},
	}}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:          testURL,
		ResponseType: ResponseTypeStream,
		Fetcher:      fetcher.fetch,
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusBadGateway))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.NotNil(t, gerr.Response)
	assert.Equal(t, []byte("error details"), gerr.Response.Bytes)
	assert.True(t, body.closed, "a rejected stream must be fully drained and closed")
}

func TestCustomStatusValidator(t *testing.T) {
	client := newTestClient(t)
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		respondWith(http.StatusNotFound, testContentType, `{"error":"missing"}`),
	}}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:            testURL,
		ValidateStatus: func(status int) bool { return status == http.StatusNotFound },
		Fetcher:        fetcher.fetch,
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeterministicBodyResentOnRetry(t *testing.T) {
	client := newTestClient(t)
	var bodies []string
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(req.Body)
			bodies = append(bodies, string(data))
			return respondWith(http.StatusInternalServerError, testContentType, testServerErrorBody)(req)
		},
		func(req *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(req.Body)
			bodies = append(bodies, string(data))
			return respondWith(http.StatusOK, testContentType, "{}")(req)
		},
	}}

	_, err := client.Request(context.Background(), &RequestConfig{
		URL:     testURL,
		Method:  http.MethodPut,
		Body:    JSON(map[string]string{"k": "v"}),
		Fetcher: fetcher.fetch,
		Retry:   &RetryConfig{RetryDelay: time.Millisecond},
	})

	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, `{"k":"v"}`, bodies[0])
	assert.Equal(t, bodies[0], bodies[1], "deterministic payloads are re-sent verbatim on every attempt")
}

func TestTransportErrorClassification(t *testing.T) {
	client := newTestClient(t)
	fetcher := &scriptedFetcher{steps: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}}

	resp, err := client.Request(context.Background(), &RequestConfig{
		URL:     testURL,
		Fetcher: fetcher.fetch,
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, TransportError))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 0, gerr.Status)
	assert.ErrorContains(t, gerr.Unwrap(), "connection refused")
}
