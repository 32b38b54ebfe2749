package protocol

import (
	"encoding/json"
	"testing"
)

func TestBrokerRequestRoundTrip(t *testing.T) {
	repl := "world"
	req := NewDeltaRequest("file:///a.go", 3, 7, WireTx{
		BaseLen: 5,
		Changes: []WireChange{{Start: 0, End: 5, Replacement: &repl}},
	})

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got BrokerRequest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Delta == nil {
		t.Fatalf("expected Delta field set, got %+v", got)
	}
	if got.Open != nil || got.TakeOwnership != nil || got.Resync != nil || got.Close != nil || got.OwnerConfirm != nil {
		t.Fatalf("expected only Delta set, got %+v", got)
	}
	if got.Delta.URI != "file:///a.go" || got.Delta.Epoch != 3 || got.Delta.BaseSeq != 7 {
		t.Fatalf("Delta payload mismatch: %+v", got.Delta)
	}
	if len(got.Delta.Tx.Changes) != 1 || *got.Delta.Tx.Changes[0].Replacement != "world" {
		t.Fatalf("Tx payload mismatch: %+v", got.Delta.Tx)
	}
}

func TestBrokerEventRoundTrip(t *testing.T) {
	ev := NewOwnerChangedEvent("file:///a.go", true, 4)

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got BrokerEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.OwnerChanged == nil {
		t.Fatalf("expected OwnerChanged field set, got %+v", got)
	}
	if got.Snapshot != nil || got.RemoteDelta != nil || got.Disconnected != nil {
		t.Fatalf("expected only OwnerChanged set, got %+v", got)
	}
	if !got.OwnerChanged.NewOwner || got.OwnerChanged.Epoch != 4 {
		t.Fatalf("OwnerChanged payload mismatch: %+v", got.OwnerChanged)
	}
}

func TestFingerprintDistinguishesLengthOnlyDifference(t *testing.T) {
	a := Fingerprint("abc")
	b := Fingerprint("abcd")
	if a == b {
		t.Fatalf("expected distinct fingerprints for different-length text")
	}
	if Fingerprint("abc") != a {
		t.Fatalf("expected Fingerprint to be deterministic")
	}
}
