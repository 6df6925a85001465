// Package wsrpc provides an embeddable WebSocket JSON-RPC server runtime.
//
// A client opens a long-lived WebSocket connection, sends a JSON request
// naming a method and carrying an opaque params payload, and receives one
// JSON response per request, optionally preceded on the wire by binary
// attachment frames belonging to that response.
//
// # Architecture
//
// Applications register named method handlers on an App, either up front
// (by supplying a custom App via an AppFactory) or at runtime through
// Register/Unregister. The server dispatches each inbound request to the
// registered handler and frames the reply according to the wire contract
// described under Attachments below.
//
// # Quick Start
//
//	import "github.com/wsrpc/wsrpc/ws"
//
//	srv, _ := ws.New(ws.DefaultOptions(":8080"))
//	srv.Register("sum", func(params json.RawMessage) (wsrpc.Packet, error) {
//	    var args struct{ A, B float64 }
//	    json.Unmarshal(params, &args)
//	    result, _ := json.Marshal(args.A + args.B)
//	    return wsrpc.Packet{Response: result}, nil
//	})
//	srv.Serve(context.Background())
//
// # Attachments
//
// A handler may return one or more binary blobs alongside its JSON result
// via Packet.Attachments. The server writes them as BINARY frames
// immediately before the TEXT response frame, in reverse order: the last
// attachment a handler appended is sent first. Clients should pop
// attachments by that convention and use the TEXT frame as the terminator.
//
// # Built-in methods
//
// Every App is constructed with an "echo" method registered, which
// returns its params unchanged with no attachments.
package wsrpc
