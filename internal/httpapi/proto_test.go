package httpapi

import (
	"net/http/httptest"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/types"
)

func TestDecodeCheckRequest_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.VarintType) // firmware build, ignored
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, fieldDoorID, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, fieldRFID, protowire.BytesType)
	b = protowire.AppendString(b, "ABCDEF1234")
	b = protowire.AppendTag(b, fieldDataPoint, protowire.BytesType)
	b = protowire.AppendString(b, "lobby")

	req, err := decodeCheckRequest(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := types.CheckRequest{DoorID: 7, RFID: "ABCDEF1234", DataPoint: "lobby"}
	if req != want {
		t.Fatalf("expected %+v, got %+v", want, req)
	}
}

func TestDecodeCheckRequest_Truncated(t *testing.T) {
	b := protowire.AppendTag(nil, fieldRFID, protowire.BytesType)
	b = protowire.AppendVarint(b, 10) // claims 10 bytes, none follow

	if _, err := decodeCheckRequest(b); err == nil {
		t.Fatal("expected an error for a truncated message")
	}
}

func TestEncodeCheckResponse_OmitsZeroValues(t *testing.T) {
	if b := encodeCheckResponse(types.CheckResponse{}); len(b) != 0 {
		t.Fatalf("expected an empty message, got %x", b)
	}

	b := encodeCheckResponse(types.CheckResponse{Granted: true, DoorID: 3})
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 || num != fieldGranted || typ != protowire.VarintType {
		t.Fatalf("expected granted first, got field %d type %d", num, typ)
	}
}

func TestWantsProtobuf(t *testing.T) {
	tests := []struct {
		name, contentType, accept string
		want                      bool
	}{
		{"json", "application/json", "application/json", false},
		{"protobuf body", "application/x-protobuf", "", true},
		{"octet stream body", "application/octet-stream", "", true},
		{"accept with params", "", "application/json;q=0.5, application/protobuf", true},
		{"nothing", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if got := wantsProtobuf(r); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
