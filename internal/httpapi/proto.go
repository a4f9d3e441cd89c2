package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

// maxRequestBody caps the size of controller payloads in either encoding. A
// check request is well under 100 bytes.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// Field numbers of the controller wire messages:
//
//	message CheckRequest    { int64 door_id = 1; string rfid = 2; string data_point = 3; }
//	message CheckResponse   { bool granted = 1; string reason = 2; int64 door_id = 3; string server_time = 4; }
//	message AllowedResponse { int64 door_id = 1; repeated string rfids = 2; }
const (
	fieldDoorID     protowire.Number = 1
	fieldRFID       protowire.Number = 2
	fieldDataPoint  protowire.Number = 3
	fieldGranted    protowire.Number = 1
	fieldReason     protowire.Number = 2
	fieldRespDoorID protowire.Number = 3
	fieldServerTime protowire.Number = 4
	fieldRFIDs      protowire.Number = 2
)

func isProtobufType(v string) bool {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return false
	}
	return mt == "application/x-protobuf" ||
		mt == "application/protobuf" ||
		mt == "application/octet-stream"
}

// isProtobuf returns true if the request body is protobuf.
func isProtobuf(r *http.Request) bool {
	return isProtobufType(r.Header.Get("Content-Type"))
}

// wantsProtobuf reports whether the response should be protobuf: either the
// client asked for it or it spoke protobuf itself.
func wantsProtobuf(r *http.Request) bool {
	if isProtobuf(r) {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if isProtobufType(strings.TrimSpace(part)) {
			return true
		}
	}
	return false
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
}

func writeProto(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func decodeCheckRequest(b []byte) (types.CheckRequest, error) {
	var req types.CheckRequest
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return req, fmt.Errorf("check request: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldDoorID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return req, fmt.Errorf("check request door_id: %w", protowire.ParseError(n))
			}
			req.DoorID = int64(v)
			b = b[n:]
		case num == fieldRFID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return req, fmt.Errorf("check request rfid: %w", protowire.ParseError(n))
			}
			req.RFID = v
			b = b[n:]
		case num == fieldDataPoint && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return req, fmt.Errorf("check request data_point: %w", protowire.ParseError(n))
			}
			req.DataPoint = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return req, fmt.Errorf("check request field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return req, nil
}

// Zero values are omitted, as proto3 does.
func encodeCheckResponse(resp types.CheckResponse) []byte {
	var b []byte
	if resp.Granted {
		b = protowire.AppendTag(b, fieldGranted, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if resp.Reason != "" {
		b = protowire.AppendTag(b, fieldReason, protowire.BytesType)
		b = protowire.AppendString(b, resp.Reason)
	}
	if resp.DoorID != 0 {
		b = protowire.AppendTag(b, fieldRespDoorID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(resp.DoorID))
	}
	if resp.ServerTime != "" {
		b = protowire.AppendTag(b, fieldServerTime, protowire.BytesType)
		b = protowire.AppendString(b, resp.ServerTime)
	}
	return b
}

func encodeAllowedResponse(resp types.AllowedResponse) []byte {
	var b []byte
	if resp.DoorID != 0 {
		b = protowire.AppendTag(b, fieldDoorID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(resp.DoorID))
	}
	for _, rfid := range resp.RFIDs {
		b = protowire.AppendTag(b, fieldRFIDs, protowire.BytesType)
		b = protowire.AppendString(b, rfid)
	}
	return b
}
