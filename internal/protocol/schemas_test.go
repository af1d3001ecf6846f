package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"conduitcraft.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals a Go message and decodes it generically for validation.
func roundTrip(t *testing.T, msg any) any {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"conduitctl",
	  "subscribe_power":true
	}`), &hello)
	validate(compile(t, "hello.schema.json"), hello)

	validate(compile(t, "welcome.schema.json"), roundTrip(t, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		CurrentWorldID:  "OVERWORLD",
		WorldParams:     protocol.WorldParams{TickRateHz: 20, ChunkSize: [3]int{32, 384, 32}, MinY: -64, MaxY: 319, MaxNetworkSize: 4096},
		Catalogs:        protocol.CatalogDigests{BlockPalette: protocol.DigestRef{Digest: "deadbeef", Count: 10}, BlockDefs: "deadbeef"},
		WorldManifest:   []protocol.WorldRef{{WorldID: "OVERWORLD"}},
	}))

	validate(compile(t, "command.schema.json"), roundTrip(t, protocol.CommandMsg{
		Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, ReqID: "R1", Line: "/conduit power 1 2 3",
	}))

	validate(compile(t, "result.schema.json"), roundTrip(t, protocol.ResultMsg{
		Type: protocol.TypeResult, ProtocolVersion: protocol.Version, ReqID: "R1",
		Code: protocol.ErrInvalidTarget, Message: "No conduit at (1, 2, 3)", ServerTick: 7,
	}))

	validate(compile(t, "power.schema.json"), roundTrip(t, protocol.PowerMsg{
		Type: protocol.TypePower, ProtocolVersion: protocol.Version, WorldID: "OVERWORLD",
		Tick: 3, NetworkID: 1, Reason: "PLACE", Members: 2, Sources: 1,
		Changes: []protocol.PowerChange{{Pos: [3]int{1, 0, 0}, From: 0, To: 14}},
	}))

	validate(compile(t, "retire.schema.json"), roundTrip(t, protocol.RetireMsg{
		Type: protocol.TypeRetire, ProtocolVersion: protocol.Version, WorldID: "OVERWORLD",
		Tick: 3, NetworkID: 2, Reason: "PLACE", Into: 1,
	}))
}

func TestSchemas_RejectBadCommand(t *testing.T) {
	s := compile(t, "command.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"COMMAND","protocol_version":"1.0","req_id":"","line":"x"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected empty req_id to be rejected")
	}
}
