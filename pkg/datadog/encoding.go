package datadog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/ugorji/go/codec"
)

// Content types accepted by the agent's trace endpoints.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// Encoding names used in configuration.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// ErrUnsupportedEncoding is returned for unknown encoding names and content types.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Handles are configured once at init and only read afterwards, which makes
// them safe to share between goroutines.
var (
	jsonHandle    = newJSONHandle()
	msgpackHandle = newMsgpackHandle()
)

func newJSONHandle() *codec.JsonHandle {
	h := new(codec.JsonHandle)
	h.Canonical = true
	return h
}

func newMsgpackHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.WriteExt = true
	h.RawToString = true
	h.Canonical = true
	return h
}

// Encoder serializes a batch of traces for the agent.
type Encoder interface {
	// ContentType is sent as the request's Content-Type header.
	ContentType() string
	Encode(traces Traces) ([]byte, error)
}

type codecEncoder struct {
	contentType string
	handle      codec.Handle
}

func (e codecEncoder) ContentType() string { return e.contentType }

func (e codecEncoder) Encode(traces Traces) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, e.handle).Encode(traces); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.contentType, err)
	}
	return buf, nil
}

// JSONEncoder encodes traces as a JSON array of arrays.
func JSONEncoder() Encoder {
	return codecEncoder{contentType: ContentTypeJSON, handle: jsonHandle}
}

// MsgpackEncoder encodes traces as msgpack. This is what the official
// tracers send.
func MsgpackEncoder() Encoder {
	return codecEncoder{contentType: ContentTypeMsgpack, handle: msgpackHandle}
}

// ParseEncoding returns the encoder for a configuration name. The empty
// string selects msgpack.
func ParseEncoding(name string) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingMsgpack:
		return MsgpackEncoder(), nil
	case EncodingJSON:
		return JSONEncoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
}

// Decode parses a payload produced by an Encoder.
func Decode(contentType string, data []byte) (Traces, error) {
	return DecodeReader(contentType, bytes.NewReader(data))
}

// DecodeReader parses a payload read from r. An empty or unparsable content
// type is treated as JSON, like the agent does.
func DecodeReader(contentType string, r io.Reader) (Traces, error) {
	var h codec.Handle
	switch mediaType(contentType) {
	case ContentTypeMsgpack:
		h = msgpackHandle
	case ContentTypeJSON, "text/json", "":
		h = jsonHandle
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, contentType)
	}

	var traces Traces
	if err := codec.NewDecoder(r, h).Decode(&traces); err != nil {
		return nil, fmt.Errorf("decode traces: %w", err)
	}
	return traces, nil
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
