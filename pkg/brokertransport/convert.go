package brokertransport

import (
	"github.com/shiv248/kolabcore/internal/change"
	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/internal/syncmgr"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// changeSetToWire converts a change.ChangeSet into its wire shape.
func changeSetToWire(cs change.ChangeSet) protocol.WireTx {
	entries := cs.Entries()
	changes := make([]protocol.WireChange, 0, len(entries))
	for _, e := range entries {
		changes = append(changes, protocol.WireChange{
			Start:       uint64(e.Start),
			End:         uint64(e.End),
			Replacement: e.Replacement,
		})
	}
	return protocol.WireTx{BaseLen: uint64(cs.LenBefore()), Changes: changes}
}

// wireToChangeSet converts a wire tx back into a change.ChangeSet.
func wireToChangeSet(tx protocol.WireTx) (change.ChangeSet, error) {
	entries := make([]change.Entry, 0, len(tx.Changes))
	for _, c := range tx.Changes {
		entries = append(entries, change.Entry{
			Start:       int(c.Start),
			End:         int(c.End),
			Replacement: c.Replacement,
		})
	}
	return change.New(int(tx.BaseLen), entries)
}

// txToWire converts a transaction.Transaction into its wire shape, dropping
// the selection: the broker only ever sees text changes, not cursors.
func txToWire(tx transaction.Transaction) protocol.WireTx {
	return changeSetToWire(tx.Changes)
}

// roleToWire converts a syncmgr.Role into its wire representation.
func roleToWire(r syncmgr.Role) protocol.Role {
	if r == syncmgr.RoleOwner {
		return protocol.RoleOwner
	}
	return protocol.RoleFollower
}

// wireToRole converts a wire role into a syncmgr.Role.
func wireToRole(r protocol.Role) syncmgr.Role {
	if r == protocol.RoleOwner {
		return syncmgr.RoleOwner
	}
	return syncmgr.RoleFollower
}

// ownershipStatusToWire converts a syncmgr.OwnershipStatus into its wire form.
func ownershipStatusToWire(s syncmgr.OwnershipStatus) protocol.OwnershipStatus {
	if s == syncmgr.OwnershipGranted {
		return protocol.OwnershipGranted
	}
	return protocol.OwnershipDenied
}

// wireToOwnershipStatus converts a wire ownership status into syncmgr's.
func wireToOwnershipStatus(s protocol.OwnershipStatus) syncmgr.OwnershipStatus {
	if s == protocol.OwnershipGranted {
		return syncmgr.OwnershipGranted
	}
	return syncmgr.OwnershipDenied
}

// confirmStatusToWire converts a syncmgr.OwnerConfirmStatus into its wire form.
func confirmStatusToWire(s syncmgr.OwnerConfirmStatus) protocol.OwnerConfirmStatus {
	if s == syncmgr.ConfirmConfirmed {
		return protocol.OwnerConfirmConfirmed
	}
	return protocol.OwnerConfirmNeedSnapshot
}

// wireToConfirmStatus converts a wire confirm status into syncmgr's.
func wireToConfirmStatus(s protocol.OwnerConfirmStatus) syncmgr.OwnerConfirmStatus {
	if s == protocol.OwnerConfirmConfirmed {
		return syncmgr.ConfirmConfirmed
	}
	return syncmgr.ConfirmNeedSnapshot
}

// requestToWire converts a syncmgr.PendingRequest into the BrokerRequest the
// transport actually sends over the wire.
func requestToWire(req syncmgr.PendingRequest) *protocol.BrokerRequest {
	switch req.Kind {
	case syncmgr.RequestOpen:
		return protocol.NewOpenRequest(req.URI, req.Text)
	case syncmgr.RequestTakeOwnership:
		return protocol.NewTakeOwnershipRequest(req.URI)
	case syncmgr.RequestOwnerConfirm:
		return protocol.NewOwnerConfirmRequest(req.URI, uint64(req.Epoch), req.Fingerprint)
	case syncmgr.RequestDelta:
		return protocol.NewDeltaRequest(req.URI, uint64(req.Epoch), uint64(req.BaseSeq), txToWire(req.Tx))
	case syncmgr.RequestResync:
		return protocol.NewResyncRequest(req.URI)
	case syncmgr.RequestClose:
		return protocol.NewCloseRequest(req.URI)
	default:
		return nil
	}
}
