package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/message"
	"github.com/wsrpc/wsrpc/internal/registry"
)

func TestProcessEchoRoundTrip(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	raw := []byte(`{"id":"1","method":"echo","params":{"a":1}}`)

	pkt := Process(app, raw, zerolog.Nop())

	var resp message.Response
	if err := json.Unmarshal(pkt.Response, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", *resp.Error)
	}
	if resp.ID != "1" {
		t.Errorf("got id %q, want %q", resp.ID, "1")
	}
	if string(resp.Result) != `{"a":1}` {
		t.Errorf("got result %s, want %s", resp.Result, `{"a":1}`)
	}
}

func TestProcessMalformedJSONReturnsInvalidRequest(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	pkt := Process(app, []byte(`{not json`), zerolog.Nop())

	var resp message.Response
	if err := json.Unmarshal(pkt.Response, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || !hasPrefix(*resp.Error, message.InvalidRequest) {
		t.Errorf("got error %v, want prefix %q", resp.Error, message.InvalidRequest)
	}
}

func TestProcessMissingFieldsReturnsInvalidRequest(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	pkt := Process(app, []byte(`{"id":"1","method":"","params":{}}`), zerolog.Nop())

	var resp message.Response
	json.Unmarshal(pkt.Response, &resp)
	if resp.Error == nil || !hasPrefix(*resp.Error, message.InvalidRequest) {
		t.Errorf("got error %v, want prefix %q", resp.Error, message.InvalidRequest)
	}
	if resp.ID != "1" {
		t.Errorf("got id %q, want the recoverable id %q preserved", resp.ID, "1")
	}
}

func TestProcessUnknownMethodReturnsMethodUnavailable(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	pkt := Process(app, []byte(`{"id":"1","method":"nope","params":{}}`), zerolog.Nop())

	var resp message.Response
	json.Unmarshal(pkt.Response, &resp)
	want := message.Format(message.MethodUnavaiable, message.Quote("nope"))
	if resp.Error == nil || *resp.Error != want {
		t.Errorf("got error %v, want %q", resp.Error, want)
	}
}

func TestProcessHandlerPanicReturnsInternalError(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	app.Register("boom", func(params json.RawMessage) (wsrpc.Packet, error) {
		panic("kaboom")
	})

	pkt := Process(app, []byte(`{"id":"1","method":"boom","params":{}}`), zerolog.Nop())

	var resp message.Response
	json.Unmarshal(pkt.Response, &resp)
	want := message.Format(message.InternalError, message.Quote("boom"))
	if resp.Error == nil || *resp.Error != want {
		t.Errorf("got error %v, want %q", resp.Error, want)
	}
}

func TestProcessCarriesAttachmentsThrough(t *testing.T) {
	t.Parallel()

	app := registry.New(zerolog.Nop())
	app.Register("withBlob", func(params json.RawMessage) (wsrpc.Packet, error) {
		return wsrpc.Packet{Response: json.RawMessage(`{}`), Attachments: [][]byte{[]byte("blob")}}, nil
	})

	pkt := Process(app, []byte(`{"id":"1","method":"withBlob","params":{}}`), zerolog.Nop())
	if len(pkt.Attachments) != 1 || string(pkt.Attachments[0]) != "blob" {
		t.Errorf("got attachments %v, want one blob", pkt.Attachments)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
