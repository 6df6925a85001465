package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/ws"
)

func TestServerRegisterAndDispatch(t *testing.T) {
	t.Parallel()

	opts := ws.DefaultOptions("127.0.0.1:0")
	opts.LogLevel = "off"
	srv, err := ws.New(opts)
	if err != nil {
		t.Fatalf("ws.New: %v", err)
	}

	srv.Register("double", func(params json.RawMessage) (wsrpc.Packet, error) {
		return wsrpc.Packet{Response: json.RawMessage(`42`)}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr = srv.Addr(); addr != "" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/", addr), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","method":"double","params":{}}`))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	json.Unmarshal(payload, &resp)
	if string(resp.Result) != "42" {
		t.Errorf("got result %s, want 42", resp.Result)
	}
}
