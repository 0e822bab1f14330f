package manager

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"

	"netplay/pkg/protocol/codec"
)

func sampleStatus() Status {
	return Status{
		Connected:            true,
		SessionID:            "01HZY3J6W3ZJ8Q3S4X5V6B7N8M",
		State:                "playing",
		Transport:            "tcp",
		Host:                 "example.net",
		Port:                 8888,
		Player:               "Ness",
		ControllerPort:       1,
		AvailableControllers: 0b11100,
		Threshold:            4,
		QueueDepths:          []int{3, 0, 0, 0, 0},
		RTTMillis:            12.5,
		Players:              []PlayerStatus{{Name: "host", Port: 0, Host: true}, {Name: "Ness", Port: 1}},
	}
}

func TestEncodeStatusJSON(t *testing.T) {
	b, ct, err := EncodeStatus(sampleStatus(), "json")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ct != codec.ContentJSON {
		t.Fatalf("content type = %s", ct)
	}
	var got Status
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != sampleStatus().SessionID || got.Threshold != 4 || len(got.Players) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestEncodeStatusCBOR(t *testing.T) {
	b, ct, err := EncodeStatus(sampleStatus(), "cbor")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ct != codec.ContentCBOR {
		t.Fatalf("content type = %s", ct)
	}
	var got Status
	if err := cbor.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != "playing" || got.QueueDepths[0] != 3 || got.RTTMillis != 12.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestEncodeStatusMsgpack(t *testing.T) {
	b, ct, err := EncodeStatus(sampleStatus(), "msgpack")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ct != codec.ContentMsgpack {
		t.Fatalf("content type = %s", ct)
	}
	var got Status
	if err := msgpack.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Player != "Ness" || got.AvailableControllers != 0b11100 || !got.Players[0].Host {
		t.Fatalf("got %+v", got)
	}
}

func TestEncodeStatusProto(t *testing.T) {
	b, ct, err := EncodeStatus(sampleStatus(), "proto")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if ct != codec.ContentProto {
		t.Fatalf("content type = %s", ct)
	}
	var got map[string]any
	if err := codec.Proto().Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["state"] != "playing" || got["threshold"] != float64(4) {
		t.Fatalf("got %v", got)
	}
	players, ok := got["players"].([]any)
	if !ok || len(players) != 2 {
		t.Fatalf("players = %#v", got["players"])
	}
}

func TestEncodeStatusUnknownFormat(t *testing.T) {
	if _, _, err := EncodeStatus(sampleStatus(), "xml"); err == nil {
		t.Fatalf("expected error")
	}
}
