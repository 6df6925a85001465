// Package pipeline implements the request→response transformation every
// inbound TEXT frame goes through: decode, dispatch, encode, with
// exhaustive failure handling so the caller always gets back a packet
// that decodes into a valid response.
package pipeline

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/wsrpc/wsrpc"
	"github.com/wsrpc/wsrpc/internal/message"
)

// Process runs the full pipeline against raw and returns a Packet that is
// guaranteed to carry a response which decodes into a valid message.Response.
func Process(app wsrpc.App, raw []byte, logger zerolog.Logger) wsrpc.Packet {
	resp := message.Response{Result: json.RawMessage("null")}

	req, decodeErr := message.Decode(raw)
	if decodeErr != nil || !message.WellFormed(req) {
		if req.ID != "" {
			resp.ID = req.ID
		}
		diag := "field invalid"
		if decodeErr != nil {
			diag = decodeErr.Error()
		}
		errMsg := message.Format(message.InvalidRequest, diag)
		logger.Error().Str("diagnostic", errMsg).Msg("invalid request")
		resp.Error = &errMsg
		return encode(resp, nil, logger)
	}

	resp.ID = req.ID

	pkt, err := app.Dispatch(req.Method, req.Params)
	if err != nil {
		logger.Error().Str("method", req.Method).Err(err).Msg("dispatch failed")
		errMsg := err.Error()
		resp.Error = &errMsg
		return encode(resp, nil, logger)
	}

	resp.Result = pkt.Response
	if resp.Result == nil {
		resp.Result = json.RawMessage("null")
	}
	return encode(resp, pkt.Attachments, logger)
}

// encode marshals resp, falling back to an id-and-error-only response on
// the (pathological) case that resp.Result contains invalid JSON, the
// only way message.Encode can fail since Response's other fields are
// plain strings.
func encode(resp message.Response, attachments [][]byte, logger zerolog.Logger) wsrpc.Packet {
	encoded, err := message.Encode(resp)
	if err == nil {
		return wsrpc.Packet{Response: encoded, Attachments: attachments}
	}

	errMsg := message.Format(message.InvalidResponse, err.Error())
	logger.Error().Str("diagnostic", errMsg).Msg("failed to encode response")
	fallback := message.Response{ID: resp.ID, Result: json.RawMessage("null"), Error: &errMsg}
	encoded, err = message.Encode(fallback)
	if err != nil {
		// fallback contains only plain strings; this cannot fail.
		panic("pipeline: fallback response failed to encode: " + err.Error())
	}
	return wsrpc.Packet{Response: encoded}
}
