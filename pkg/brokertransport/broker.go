// Package brokertransport is demo/test-only wiring that shuttles
// internal/protocol broker requests and events over a loopback WebSocket,
// exercising internal/syncmgr end-to-end. The core never imports this
// package (spec §1 Non-goals: transport and framing of the broker are out
// of scope for the core itself).
package brokertransport

import (
	"sync"

	"github.com/shiv248/kolabcore/internal/protocol"
	"github.com/shiv248/kolabcore/internal/rope"
	"github.com/shiv248/kolabcore/pkg/logger"
)

// SessionID identifies one connected session to the Hub. 0 is never issued.
type SessionID uint64

// hubDoc is the broker's authoritative state for one tracked uri.
type hubDoc struct {
	content string
	epoch   uint64
	seq     uint64
	owner   SessionID // 0 means unowned
}

// Hub is a minimal in-process stand-in for the buffer-sync broker: the
// authority internal/syncmgr.Manager's state machine assumes exists on the
// other end of the wire. Grounded on the teacher's ServerState (sync.Map of
// documents) generalized from one collaborative-OT document per id to the
// owner/epoch/seq ledger the sync protocol requires.
type Hub struct {
	mu       sync.Mutex
	docs     map[string]*hubDoc
	outboxes map[SessionID]chan *protocol.BrokerEvent
	nextID   uint64
	log      logger.Component
	load     func(uri string) (content string, epoch, seq uint64, ok bool)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		docs:     make(map[string]*hubDoc),
		outboxes: make(map[SessionID]chan *protocol.BrokerEvent),
		log:      logger.With("brokertransport"),
	}
}

// SetLoader installs a fallback consulted by Open when a uri has never been
// seen this process, mirroring the teacher's getOrCreateDocument falling
// back to the database before minting a blank document. load returning
// ok=false leaves the document starting from the Open request's content.
func (h *Hub) SetLoader(load func(uri string) (content string, epoch, seq uint64, ok bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load = load
}

// Register allocates a SessionID and an event channel for it. The caller
// must drain the channel (e.g. from a websocket write loop) until Unregister.
func (h *Hub) Register() (SessionID, <-chan *protocol.BrokerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := SessionID(h.nextID)
	ch := make(chan *protocol.BrokerEvent, 32)
	h.outboxes[id] = ch
	return id, ch
}

// DocSnapshot is one tracked document's authoritative state, for a host
// process to persist across restarts.
type DocSnapshot struct {
	Content string
	Epoch   uint64
	Seq     uint64
}

// Seed preloads a document's state from persisted storage before any
// session opens it, so the first Open resumes at the stored epoch/seq
// rather than restarting at epoch 1. It is a no-op if uri is already
// tracked (e.g. a session beat the host process to it).
func (h *Hub) Seed(uri, content string, epoch, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.docs[uri]; ok {
		return
	}
	h.docs[uri] = &hubDoc{content: content, epoch: epoch, seq: seq}
}

// Snapshot returns the current state of every tracked document, for a
// host process to persist on a cleanup sweep or before shutdown.
func (h *Hub) Snapshot() map[string]DocSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]DocSnapshot, len(h.docs))
	for uri, doc := range h.docs {
		out[uri] = DocSnapshot{Content: doc.content, Epoch: doc.epoch, Seq: doc.seq}
	}
	return out
}

// Unregister removes a session and closes its event channel. Any document
// it owned stays owned until another session calls TakeOwnership; the spec
// treats broker disconnection as the editor's problem (§7), not the
// broker's.
func (h *Hub) Unregister(id SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.outboxes[id]; ok {
		close(ch)
		delete(h.outboxes, id)
	}
}

func (h *Hub) send(id SessionID, ev *protocol.BrokerEvent) {
	if ch, ok := h.outboxes[id]; ok {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping event for session %d: outbox full", id)
		}
	}
}

func (h *Hub) broadcastExcept(except SessionID, ev *protocol.BrokerEvent) {
	for id := range h.outboxes {
		if id == except {
			continue
		}
		h.send(id, ev)
	}
}

// Handle processes one request from session id, pushing the resulting
// event(s) onto the relevant sessions' outboxes.
func (h *Hub) Handle(id SessionID, req *protocol.BrokerRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case req.Open != nil:
		h.handleOpen(id, req.Open)
	case req.TakeOwnership != nil:
		h.handleTakeOwnership(id, req.TakeOwnership)
	case req.OwnerConfirm != nil:
		h.handleOwnerConfirm(id, req.OwnerConfirm)
	case req.Delta != nil:
		h.handleDelta(id, req.Delta)
	case req.Resync != nil:
		h.handleResync(id, req.Resync)
	case req.Close != nil:
		h.handleClose(id, req.Close)
	}
}

func (h *Hub) handleOpen(id SessionID, p *protocol.OpenPayload) {
	doc, ok := h.docs[p.URI]
	if !ok {
		doc = &hubDoc{content: p.Content, epoch: 1, seq: 0, owner: id}
		if h.load != nil {
			if content, epoch, seq, loaded := h.load(p.URI); loaded {
				doc.content, doc.epoch, doc.seq = content, epoch, seq
			}
		}
		h.docs[p.URI] = doc
		h.send(id, protocol.NewOpenedEvent(p.URI, protocol.RoleOwner, doc.epoch, doc.seq, doc.content))
		return
	}

	role := protocol.RoleFollower
	if doc.owner == 0 {
		doc.owner = id
		role = protocol.RoleOwner
	}
	h.send(id, protocol.NewOpenedEvent(p.URI, role, doc.epoch, doc.seq, doc.content))
}

func (h *Hub) handleTakeOwnership(id SessionID, p *protocol.TakeOwnershipPayload) {
	doc, ok := h.docs[p.URI]
	if !ok {
		h.send(id, protocol.NewRequestFailedEvent(p.URI, "not tracked"))
		return
	}

	doc.owner = id
	doc.epoch++
	h.send(id, protocol.NewOwnershipResultEvent(p.URI, protocol.OwnershipGranted, doc.epoch))
	h.broadcastExcept(id, protocol.NewOwnerChangedEvent(p.URI, false, doc.epoch))
}

func (h *Hub) handleOwnerConfirm(id SessionID, p *protocol.OwnerConfirmPayload) {
	doc, ok := h.docs[p.URI]
	if !ok || doc.epoch != p.Epoch {
		h.send(id, protocol.NewRequestFailedEvent(p.URI, "stale epoch"))
		return
	}

	status := protocol.OwnerConfirmConfirmed
	if protocol.Fingerprint(doc.content) != p.Fingerprint {
		status = protocol.OwnerConfirmNeedSnapshot
	}
	h.send(id, protocol.NewOwnerConfirmResultEvent(p.URI, doc.epoch, status))
}

func (h *Hub) handleDelta(id SessionID, p *protocol.DeltaPayload) {
	doc, ok := h.docs[p.URI]
	if !ok || doc.owner != id || doc.epoch != p.Epoch || doc.seq != p.BaseSeq {
		h.send(id, protocol.NewDeltaRejectedEvent(p.URI, "stale base_seq or epoch"))
		return
	}

	cs, err := wireToChangeSet(p.Tx)
	if err != nil {
		h.send(id, protocol.NewDeltaRejectedEvent(p.URI, "invalid transaction"))
		return
	}

	doc.content = cs.Apply(rope.New(doc.content)).String()
	doc.seq++

	h.send(id, protocol.NewDeltaAckEvent(p.URI, doc.seq))
	h.broadcastExcept(id, protocol.NewRemoteDeltaEvent(p.URI, doc.epoch, doc.seq, p.Tx))
}

func (h *Hub) handleResync(id SessionID, p *protocol.ResyncPayload) {
	doc, ok := h.docs[p.URI]
	if !ok {
		h.send(id, protocol.NewRequestFailedEvent(p.URI, "not tracked"))
		return
	}
	h.send(id, protocol.NewSnapshotEvent(p.URI, doc.epoch, doc.seq, doc.content))
}

func (h *Hub) handleClose(id SessionID, p *protocol.ClosePayload) {
	doc, ok := h.docs[p.URI]
	if !ok {
		return
	}
	if doc.owner == id {
		doc.owner = 0
	}
}
