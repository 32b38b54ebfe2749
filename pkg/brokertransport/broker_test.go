package brokertransport

import (
	"testing"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/internal/syncmgr"
)

func TestOpenGrantsOwnershipToFirstSession(t *testing.T) {
	hub := NewHub()
	id, events := hub.Register()
	defer hub.Unregister(id)

	hub.Handle(id, protocol.NewOpenRequest("file:///a.go", "hello"))

	ev := <-events
	if ev.Opened == nil {
		t.Fatalf("expected Opened event, got %+v", ev)
	}
	if ev.Opened.Role != protocol.RoleOwner {
		t.Fatalf("expected first session to be granted ownership, got role %v", ev.Opened.Role)
	}
}

func TestDeltaAppliesAndBroadcastsRemoteDelta(t *testing.T) {
	hub := NewHub()
	owner, ownerEvents := hub.Register()
	follower, followerEvents := hub.Register()
	defer hub.Unregister(owner)
	defer hub.Unregister(follower)

	hub.Handle(owner, protocol.NewOpenRequest("file:///a.go", "hello"))
	opened := <-ownerEvents
	if opened.Opened == nil {
		t.Fatalf("expected Opened event")
	}

	hub.Handle(follower, protocol.NewOpenRequest("file:///a.go", "ignored"))
	joined := <-followerEvents
	if joined.Opened == nil || joined.Opened.Content != "hello" {
		t.Fatalf("expected follower to join with owner's content, got %+v", joined.Opened)
	}

	repl := "!"
	tx := protocol.WireTx{BaseLen: 5, Changes: []protocol.WireChange{{Start: 5, End: 5, Replacement: &repl}}}
	hub.Handle(owner, protocol.NewDeltaRequest("file:///a.go", opened.Opened.Epoch, opened.Opened.Seq, tx))

	ack := <-ownerEvents
	if ack.DeltaAck == nil || ack.DeltaAck.Seq != 1 {
		t.Fatalf("expected DeltaAck seq 1, got %+v", ack)
	}

	remote := <-followerEvents
	if remote.RemoteDelta == nil || remote.RemoteDelta.Seq != 1 {
		t.Fatalf("expected RemoteDelta seq 1, got %+v", remote)
	}
}

func TestApplyEventInstallsSnapshotForFollower(t *testing.T) {
	mgr := syncmgr.New()
	docID := document.NewID()
	mgr.PrepareOpen("file:///a.go", "hello", docID)

	ev := protocol.NewOpenedEvent("file:///a.go", protocol.RoleFollower, 2, 0, "hello world")
	install := ApplyEvent(mgr, ev)
	if install == nil {
		t.Fatalf("expected a SnapshotInstall for a follower Opened event")
	}
	if install.Content != "hello world" {
		t.Fatalf("install.Content = %q, want %q", install.Content, "hello world")
	}
	if !mgr.IsFollower("file:///a.go") {
		t.Fatalf("expected document to be tracked as follower after Opened")
	}
}
