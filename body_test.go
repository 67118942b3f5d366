package gaxios

import (
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyEncoding(t *testing.T) {
	tests := []struct {
		name            string
		body            Body
		wantData        string
		wantContentType string
	}{
		{
			name:            "json",
			body:            JSON(map[string]any{"a": 1, "b": "x"}),
			wantData:        `{"a":1,"b":"x"}`,
			wantContentType: "application/json",
		},
		{
			name:     "string",
			body:     String("verbatim"),
			wantData: "verbatim",
		},
		{
			name:     "bytes",
			body:     Bytes([]byte{0x1, 0x2}),
			wantData: "\x01\x02",
		},
		{
			name:            "form sorts keys",
			body:            Form(url.Values{"z": []string{"1"}, "a": []string{"2"}}),
			wantData:        "a=2&z=1",
			wantContentType: "application/x-www-form-urlencoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, stream, err := tt.body.encode()
			require.NoError(t, err)
			assert.Nil(t, stream)
			assert.Equal(t, tt.wantData, string(data))
			assert.Equal(t, tt.wantContentType, tt.body.contentType())
		})
	}
}

func TestJSONBodyEncodeFailure(t *testing.T) {
	_, _, err := JSON(func() {}).encode()
	assert.Error(t, err)
}

func TestMultipartWireFormat(t *testing.T) {
	body := &multipartBody{
		parts: []Part{
			StringPart("application/json", `{"a":1}`),
			{Content: strings.NewReader("raw bytes")},
		},
		boundary: "BOUNDARY",
	}

	assert.Equal(t, "multipart/related; boundary=BOUNDARY", body.contentType())

	_, stream, err := body.encode()
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)

	want := "--BOUNDARY\r\n" +
		"Content-Type: application/json\r\n" +
		"\r\n" +
		`{"a":1}` + "\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"raw bytes\r\n" +
		"--BOUNDARY--"
	assert.Equal(t, want, string(data))
}

func TestBodyReaderReplaysDeterministicPayloads(t *testing.T) {
	cfg := &RequestConfig{bodyBytes: []byte("payload")}

	first, length := cfg.bodyReader()
	assert.Equal(t, int64(7), length)
	data, err := io.ReadAll(first)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	second, _ := cfg.bodyReader()
	data, err = io.ReadAll(second)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data), "each attempt gets a fresh reader over the same bytes")
}

func TestBodyReaderStreamIsOneShot(t *testing.T) {
	stream := strings.NewReader("one shot")
	cfg := &RequestConfig{bodyStream: stream}

	r, length := cfg.bodyReader()
	assert.Equal(t, int64(-1), length)
	assert.Equal(t, io.Reader(stream), r)

	io.Copy(io.Discard, r)
	again, _ := cfg.bodyReader()
	data, _ := io.ReadAll(again)
	assert.Empty(t, data, "a consumed stream has nothing left for a retry")
}

func TestBodyReaderEmpty(t *testing.T) {
	cfg := &RequestConfig{}
	r, length := cfg.bodyReader()
	assert.Nil(t, r)
	assert.Equal(t, int64(0), length)
}
