package brokertransport

import (
	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/internal/syncmgr"
)

// localSession and remoteSession are placeholder identities ApplyEvent
// feeds into syncmgr's owner/localSession comparisons. The wire events
// already tell the receiver whether it personally holds ownership
// (OpenedEvent.Role, OwnerChangedEvent.NewOwner); ApplyEvent picks
// localSession or remoteSession as the "owner" argument accordingly, since
// internal/syncmgr only ever compares the two for equality.
const (
	localSession  syncmgr.SessionID = 1
	remoteSession syncmgr.SessionID = 2
)

// SnapshotInstall is returned by ApplyEvent when the caller must replace a
// document's local content wholesale (joining as a follower, or recovering
// from a forced resync) rather than applying an incremental transaction.
type SnapshotInstall struct {
	URI     string
	Content string
}

// ApplyEvent feeds one incoming BrokerEvent into mgr, translating wire
// types back to internal/syncmgr's. It returns a non-nil SnapshotInstall
// when the caller must install fresh content for a uri.
func ApplyEvent(mgr *syncmgr.Manager, ev *protocol.BrokerEvent) *SnapshotInstall {
	switch {
	case ev.Opened != nil:
		o := ev.Opened
		var snapshot *string
		if o.Role == protocol.RoleFollower {
			snapshot = &o.Content
		}
		if text := mgr.HandleOpened(o.URI, wireToRole(o.Role), syncmgr.Epoch(o.Epoch), syncmgr.Seq(o.Seq), snapshot); text != nil {
			return &SnapshotInstall{URI: o.URI, Content: *text}
		}

	case ev.OwnershipResult != nil:
		// TakeOwnershipResult is only ever sent to the requester, and this
		// demo broker never denies a request, so the receiver is always
		// the new owner.
		r := ev.OwnershipResult
		mgr.HandleOwnershipResult(r.URI, wireToOwnershipStatus(r.Status), syncmgr.Epoch(r.Epoch), localSession, localSession)

	case ev.OwnerConfirmRes != nil:
		// OwnerConfirmResult is only ever sent to the session that issued
		// the OwnerConfirm request, which is always the current owner.
		r := ev.OwnerConfirmRes
		mgr.HandleOwnerConfirmResult(r.URI, wireToConfirmStatus(r.Status), syncmgr.Epoch(r.Epoch), 0, localSession, localSession)

	case ev.DeltaAck != nil:
		a := ev.DeltaAck
		mgr.HandleDeltaAck(a.URI, syncmgr.Seq(a.Seq))

	case ev.DeltaRejected != nil:
		mgr.MarkNeedsResync(ev.DeltaRejected.URI)

	case ev.Snapshot != nil:
		// A Resync answer always demotes the caller to follower until the
		// next explicit TakeOwnership; safe default after a corruption.
		s := ev.Snapshot
		text := mgr.HandleSnapshot(s.URI, s.Content, syncmgr.Epoch(s.Epoch), syncmgr.Seq(s.Seq), remoteSession, localSession)
		return &SnapshotInstall{URI: s.URI, Content: text}

	case ev.RemoteDelta != nil:
		mgr.HandleRemoteDelta(ev.RemoteDelta.URI, syncmgr.Epoch(ev.RemoteDelta.Epoch), syncmgr.Seq(ev.RemoteDelta.Seq))

	case ev.OwnerChanged != nil:
		c := ev.OwnerChanged
		owner := remoteSession
		if c.NewOwner {
			owner = localSession
		}
		mgr.HandleOwnerChanged(c.URI, syncmgr.Epoch(c.Epoch), owner, localSession)

	case ev.RequestFailed != nil:
		mgr.HandleRequestFailed(ev.RequestFailed.URI)

	case ev.Disconnected != nil:
		mgr.DisableAll()
	}

	return nil
}
