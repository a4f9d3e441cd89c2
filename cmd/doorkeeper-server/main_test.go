package main

import (
	"net"
	"strings"
	"testing"

	"github.com/rfidlock/doorkeeper/internal/config"
	"github.com/rfidlock/doorkeeper/internal/logging"
)

func TestRun_GRPCPortTakenReturnsError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	cfg, err := config.Parse(map[string]string{
		"DOORKEEPER_STORE":      "memory",
		"DOORKEEPER_HTTP_ADDR":  "127.0.0.1:0",
		"DOORKEEPER_GRPC_ADDR":  taken.Addr().String(),
		"DOORKEEPER_JWT_SECRET": "test-secret",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = run(cfg, logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "grpc") {
		t.Fatalf("expected grpc listen error, got %v", err)
	}
}
