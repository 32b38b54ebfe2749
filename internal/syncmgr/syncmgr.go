// Package syncmgr implements the cross-process buffer sync manager: the
// owner/follower state machine that lets several processes editing the
// same file converge through a broker, without requiring every open
// document to route through it. Ported from the original editor's
// buffer_sync manager onto Go maps/slices guarded by a single mutex, the
// way kolabpad guards its room state.
package syncmgr

import (
	"container/list"
	"sync"

	"github.com/shiv248/kolabcore/internal/document"
	"github.com/shiv248/kolabcore/internal/selection"
	"github.com/shiv248/kolabcore/internal/transaction"
)

// SessionID identifies a session across the broker.
type SessionID uint64

// Epoch is the ownership generation for a synced document; it advances
// every time ownership changes hands.
type Epoch uint64

// Seq is the per-epoch delta sequence number.
type Seq uint64

// Role is a document's local synchronization role.
type Role int

const (
	RoleFollower Role = iota
	RoleOwner
)

// OwnershipStatus is the result of a TakeOwnership request.
type OwnershipStatus int

const (
	OwnershipGranted OwnershipStatus = iota
	OwnershipDenied
)

// OwnerConfirmStatus is the result of an OwnerConfirm request.
type OwnerConfirmStatus int

const (
	ConfirmConfirmed OwnerConfirmStatus = iota
	ConfirmNeedSnapshot
)

// Status is the UI-facing synchronization status for a document.
type Status int

const (
	StatusOff Status = iota
	StatusOwner
	StatusFollower
	StatusAcquiring
	StatusConfirming
	StatusNeedsResync
)

// RequestKind distinguishes the broker requests PendingRequest carries.
type RequestKind int

const (
	RequestOpen RequestKind = iota
	RequestTakeOwnership
	RequestOwnerConfirm
	RequestDelta
	RequestResync
	RequestClose
)

// PendingRequest is an outgoing broker request prepared by the manager;
// the transport layer is responsible for actually sending it. Fingerprint
// is only meaningful for RequestOwnerConfirm: the caller computes it from
// its own current content, since the manager holds no text itself.
type PendingRequest struct {
	Kind        RequestKind
	URI         string
	Text        string
	Epoch       Epoch
	BaseSeq     Seq
	Fingerprint uint64
	Tx          transaction.Transaction
}

// PendingEdit is an edit deferred because the local session is not
// currently allowed to write (follower, acquiring, or confirming).
type PendingEdit struct {
	Tx        transaction.Transaction
	Selection *selection.Selection
	Undo      document.UndoPolicy
	Origin    document.EditSource
}

// ReplayEdit is a PendingEdit handed back once the document is unblocked.
type ReplayEdit struct {
	DocID     document.ID
	Tx        transaction.Transaction
	Selection *selection.Selection
	Undo      document.UndoPolicy
	Origin    document.EditSource
}

// DeferOutcome is the result of attempting to apply an edit to a tracked
// document.
type DeferOutcome int

const (
	Allowed DeferOutcome = iota
	NeedTakeOwnership
	AlreadyAcquiring
	NotTracked
)

// OwnerConfirmNeed flags a document whose ownership was just granted but
// not yet confirmed via content fingerprint.
type OwnerConfirmNeed struct {
	URI   string
	Epoch Epoch
	DocID document.ID
}

type docEntry struct {
	docID                document.ID
	epoch                Epoch
	seq                  Seq
	role                 Role
	owner                SessionID
	needsResync          bool
	resyncRequested      bool
	acquireInFlight      bool
	ownerConfirmRequired bool
	ownerConfirmInFlight bool
	pending              *list.List // of PendingEdit
}

func (e *docEntry) isBlocked() bool {
	return e.role == RoleFollower ||
		e.needsResync ||
		e.acquireInFlight ||
		e.ownerConfirmRequired ||
		e.ownerConfirmInFlight
}

// Manager tracks cross-process sync state for every open, synced
// document and exposes the edit-deferral, request-preparation, and
// event-handling surface the editor coordinator drives.
type Manager struct {
	mu         sync.Mutex
	docs       map[string]*docEntry
	uriToDocID map[string]document.ID
	docIDToURI map[document.ID]string
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		docs:       make(map[string]*docEntry),
		uriToDocID: make(map[string]document.ID),
		docIDToURI: make(map[document.ID]string),
	}
}

// IsEditBlocked reports whether writes to uri are currently prohibited.
func (m *Manager) IsEditBlocked(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.isBlocked()
}

// DeferEdit attempts to apply edit immediately; if the document is
// blocked it is queued and, for a follower not already acquiring, a
// TakeOwnership request is returned to send.
func (m *Manager) DeferEdit(uri string, edit PendingEdit) (DeferOutcome, *PendingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return NotTracked, nil
	}
	if !e.isBlocked() {
		return Allowed, nil
	}

	e.pending.PushBack(edit)

	if e.role == RoleFollower && !e.acquireInFlight {
		e.acquireInFlight = true
		return NeedTakeOwnership, &PendingRequest{Kind: RequestTakeOwnership, URI: uri}
	}
	return AlreadyAcquiring, nil
}

// DrainOwnerConfirmRequests returns documents whose ownership was
// granted but not yet confirmed, marking confirmation in flight.
func (m *Manager) DrainOwnerConfirmRequests() []OwnerConfirmNeed {
	m.mu.Lock()
	defer m.mu.Unlock()
	var needs []OwnerConfirmNeed
	for uri, e := range m.docs {
		if e.ownerConfirmRequired && !e.ownerConfirmInFlight {
			e.ownerConfirmInFlight = true
			needs = append(needs, OwnerConfirmNeed{URI: uri, Epoch: e.epoch, DocID: e.docID})
		}
	}
	return needs
}

// DrainReplayEdits returns, for every document that is no longer
// blocked, its queued pending edits in FIFO order, clearing the queue.
func (m *Manager) DrainReplayEdits() []ReplayEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ready []ReplayEdit
	for _, e := range m.docs {
		if e.isBlocked() {
			continue
		}
		for e.pending.Len() > 0 {
			front := e.pending.Remove(e.pending.Front()).(PendingEdit)
			ready = append(ready, ReplayEdit{
				DocID:     e.docID,
				Tx:        front.Tx,
				Selection: front.Selection,
				Undo:      front.Undo,
				Origin:    front.Origin,
			})
		}
	}
	return ready
}

// PrepareOpen registers the uri<->docID mapping and returns the Open
// request to send.
func (m *Manager) PrepareOpen(uri, text string, docID document.ID) PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uriToDocID[uri] = docID
	m.docIDToURI[docID] = uri
	return PendingRequest{Kind: RequestOpen, URI: uri, Text: text}
}

// HandleOpened installs sync state after the broker answers Open,
// returning the snapshot text if joining as a follower.
func (m *Manager) HandleOpened(uri string, role Role, epoch Epoch, seq Seq, snapshot *string) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	docID, ok := m.uriToDocID[uri]
	if !ok {
		return nil
	}
	m.docs[uri] = &docEntry{
		docID:   docID,
		epoch:   epoch,
		seq:     seq,
		role:    role,
		pending: list.New(),
	}
	if role == RoleFollower {
		return snapshot
	}
	return nil
}

// PrepareDelta builds a Delta request if the session owns uri and isn't
// blocked, optimistically advancing the local sequence number.
func (m *Manager) PrepareDelta(uri string, tx transaction.Transaction) *PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok || e.role != RoleOwner || e.isBlocked() {
		return nil
	}
	base := e.seq
	e.seq++
	return &PendingRequest{Kind: RequestDelta, URI: uri, Epoch: e.epoch, BaseSeq: base, Tx: tx}
}

// HandleDeltaAck advances the local sequence on a broker acknowledgment.
func (m *Manager) HandleDeltaAck(uri string, seq Seq) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.docs[uri]; ok && seq > e.seq {
		e.seq = seq
	}
}

// MarkNeedsResync flags uri for a full resync after a delta rejection.
func (m *Manager) MarkNeedsResync(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.docs[uri]; ok {
		e.needsResync = true
		e.resyncRequested = false
	}
}

// HandleRemoteDelta validates an incoming delta's epoch/seq contiguity.
// Returns the local document id if it applies cleanly; otherwise it
// forces a resync and returns false.
func (m *Manager) HandleRemoteDelta(uri string, epoch Epoch, seq Seq) (document.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return document.ID{}, false
	}
	if e.role == RoleOwner {
		return document.ID{}, false
	}
	blocked := e.needsResync || e.acquireInFlight || e.ownerConfirmRequired || e.ownerConfirmInFlight
	if blocked || e.pending.Len() > 0 {
		e.pending.Init()
		e.needsResync = true
		e.resyncRequested = false
		return document.ID{}, false
	}
	if epoch != e.epoch {
		e.needsResync = true
		e.resyncRequested = false
		return document.ID{}, false
	}
	if seq != e.seq+1 {
		e.needsResync = true
		e.resyncRequested = false
		return document.ID{}, false
	}
	e.seq = seq
	return e.docID, true
}

// HandleOwnerChanged applies an ownership-change event: resets the
// sequence for the new epoch, and either requires confirmation (local
// session became owner) or clears pending edits (local session is now a
// follower).
func (m *Manager) HandleOwnerChanged(uri string, epoch Epoch, owner, localSession SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return
	}
	e.epoch = epoch
	e.seq = 0
	e.owner = owner
	e.acquireInFlight = false

	if owner == localSession {
		e.role = RoleOwner
		e.ownerConfirmRequired = true
		e.ownerConfirmInFlight = false
		e.needsResync = false
	} else {
		e.role = RoleFollower
		e.ownerConfirmRequired = false
		e.ownerConfirmInFlight = false
		e.needsResync = false
		e.resyncRequested = false
		e.pending.Init()
	}
}

// HandleOwnershipResult applies a TakeOwnership response, discarding
// pending edits outright if the request was denied.
func (m *Manager) HandleOwnershipResult(uri string, status OwnershipStatus, epoch Epoch, owner, localSession SessionID) {
	m.HandleOwnerChanged(uri, epoch, owner, localSession)

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.docs[uri]; ok {
		e.acquireInFlight = false
		if status == OwnershipDenied {
			e.pending.Init()
		}
	}
}

// HandleOwnerConfirmResult applies an OwnerConfirm response. A confirmed
// result clears the confirmation gate and adopts the broker's seq; a
// need-snapshot result clears the gate but discards pending edits, since
// a snapshot is about to replace the document wholesale.
func (m *Manager) HandleOwnerConfirmResult(uri string, status OwnerConfirmStatus, epoch Epoch, seq Seq, owner, localSession SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok || e.epoch != epoch {
		return
	}
	e.ownerConfirmInFlight = false
	e.owner = owner

	if owner == localSession {
		e.role = RoleOwner
		switch status {
		case ConfirmConfirmed:
			e.ownerConfirmRequired = false
			e.seq = seq
		case ConfirmNeedSnapshot:
			e.ownerConfirmRequired = false
			e.ownerConfirmInFlight = false
			e.pending.Init()
		}
	} else {
		e.role = RoleFollower
		e.ownerConfirmRequired = false
		e.pending.Init()
	}
}

// HandleSnapshot replaces local sync state wholesale from a broker
// snapshot and returns the authoritative text.
func (m *Manager) HandleSnapshot(uri, text string, epoch Epoch, seq Seq, owner, localSession SessionID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return text
	}
	e.epoch = epoch
	e.seq = seq
	e.owner = owner
	if owner == localSession {
		e.role = RoleOwner
	} else {
		e.role = RoleFollower
	}
	e.needsResync = false
	e.resyncRequested = false
	e.ownerConfirmRequired = false
	e.ownerConfirmInFlight = false
	e.acquireInFlight = false
	e.pending.Init()
	return text
}

// HandleRequestFailed clears in-flight flags after a protocol-level
// request failure so the document isn't stuck waiting forever.
func (m *Manager) HandleRequestFailed(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.docs[uri]; ok {
		e.acquireInFlight = false
		e.ownerConfirmInFlight = false
		e.resyncRequested = false
	}
}

// PrepareClose stops tracking uri and returns the Close request to send.
func (m *Manager) PrepareClose(uri string) *PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return nil
	}
	delete(m.docs, uri)
	delete(m.uriToDocID, uri)
	delete(m.docIDToURI, e.docID)
	return &PendingRequest{Kind: RequestClose, URI: uri}
}

// IsFollower reports whether uri is tracked with the follower role.
func (m *Manager) IsFollower(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.role == RoleFollower
}

// URIForDocID returns the uri tracked for docID, if any.
func (m *Manager) URIForDocID(docID document.ID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uri, ok := m.docIDToURI[docID]
	return uri, ok
}

// DocIDForURI returns the document id tracked for uri, if any.
func (m *Manager) DocIDForURI(uri string) (document.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return document.ID{}, false
	}
	return e.docID, true
}

// RoleForURI returns the tracked role for uri, if any.
func (m *Manager) RoleForURI(uri string) (Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return 0, false
	}
	return e.role, true
}

// UIStatusForURI summarizes uri's sync role and status for the status
// bar / UI surface.
func (m *Manager) UIStatusForURI(uri string) (*Role, Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	if !ok {
		return nil, StatusOff
	}
	var status Status
	switch {
	case e.needsResync:
		status = StatusNeedsResync
	case e.acquireInFlight:
		status = StatusAcquiring
	case e.ownerConfirmRequired || e.ownerConfirmInFlight:
		status = StatusConfirming
	case e.role == RoleOwner:
		status = StatusOwner
	default:
		status = StatusFollower
	}
	role := e.role
	return &role, status
}

// DrainResyncRequests returns Resync requests for every document that
// needs one and hasn't already requested it, marking resync-requested.
func (m *Manager) DrainResyncRequests() []PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []PendingRequest
	for uri, e := range m.docs {
		if e.needsResync && !e.resyncRequested {
			e.resyncRequested = true
			reqs = append(reqs, PendingRequest{Kind: RequestResync, URI: uri})
		}
	}
	return reqs
}

// ClearNeedsResync clears the resync-required gate after a snapshot is
// applied out of band.
func (m *Manager) ClearNeedsResync(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.docs[uri]; ok {
		e.needsResync = false
		e.resyncRequested = false
	}
}

// NeedsResync reports whether uri is currently blocked awaiting resync.
func (m *Manager) NeedsResync(uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.docs[uri]
	return ok && e.needsResync
}

// DisableAll drops all sync tracking, e.g. on broker transport loss.
func (m *Manager) DisableAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*docEntry)
	m.uriToDocID = make(map[string]document.ID)
	m.docIDToURI = make(map[document.ID]string)
}
