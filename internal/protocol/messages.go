// Package protocol defines the wire protocol between an editor process and
// the buffer-sync broker: request/event tagged unions plus the WireTx shape
// that mirrors a ChangeSet's (start, end, replacement) triples.
package protocol

import (
	"encoding/json"
	"hash/fnv"
)

// WireChange mirrors a single change.Entry triple on the wire.
type WireChange struct {
	Start       uint64  `json:"start"`
	End         uint64  `json:"end"`
	Replacement *string `json:"replacement,omitempty"`
}

// WireTx mirrors a change.ChangeSet: an ordered list of changes applied
// against a known base length.
type WireTx struct {
	BaseLen uint64       `json:"base_len"`
	Changes []WireChange `json:"changes"`
}

// Fingerprint computes a fixed 64-bit content fingerprint over text, used to
// detect divergence during owner confirmation and resync. It hashes the
// UTF-8 bytes with FNV-1a, then folds in the rune length so two different
// texts that happen to share a byte prefix don't collide.
func Fingerprint(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	sum := h.Sum64()

	length := uint64(len([]rune(text)))
	lh := fnv.New64a()
	lh.Write([]byte{
		byte(length >> 56), byte(length >> 48), byte(length >> 40), byte(length >> 32),
		byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length),
	})
	return sum ^ lh.Sum64()
}

// OpenPayload requests that a document be tracked under uri, seeding the
// broker with the caller's current content if it is not already tracked.
type OpenPayload struct {
	URI     string `json:"uri"`
	Content string `json:"content"`
}

// TakeOwnershipPayload requests ownership of uri for the calling session.
type TakeOwnershipPayload struct {
	URI string `json:"uri"`
}

// OwnerConfirmPayload answers an owner-confirm-required prompt with the
// caller's current fingerprint, letting the broker decide whether a
// snapshot resync is required before the new owner may publish deltas.
type OwnerConfirmPayload struct {
	URI         string `json:"uri"`
	Epoch       uint64 `json:"epoch"`
	Fingerprint uint64 `json:"fingerprint"`
}

// DeltaPayload publishes a transaction against a known epoch/base sequence.
type DeltaPayload struct {
	URI     string `json:"uri"`
	Epoch   uint64 `json:"epoch"`
	BaseSeq uint64 `json:"base_seq"`
	Tx      WireTx `json:"tx"`
}

// ResyncPayload requests a fresh snapshot of uri, discarding any pending
// local edits that could not be reconciled against the last known state.
type ResyncPayload struct {
	URI string `json:"uri"`
}

// ClosePayload stops tracking uri for the calling session.
type ClosePayload struct {
	URI string `json:"uri"`
}

// BrokerRequest represents messages sent from an editor session to the
// broker. Only one field should be set per message (tagged union pattern).
type BrokerRequest struct {
	Open          *OpenPayload          `json:"Open,omitempty"`
	TakeOwnership *TakeOwnershipPayload `json:"TakeOwnership,omitempty"`
	OwnerConfirm  *OwnerConfirmPayload  `json:"OwnerConfirm,omitempty"`
	Delta         *DeltaPayload         `json:"Delta,omitempty"`
	Resync        *ResyncPayload        `json:"Resync,omitempty"`
	Close         *ClosePayload         `json:"Close,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for BrokerRequest.
// We need to ensure only one field is present in the JSON output.
func (m *BrokerRequest) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})

	if m.Open != nil {
		result["Open"] = m.Open
	} else if m.TakeOwnership != nil {
		result["TakeOwnership"] = m.TakeOwnership
	} else if m.OwnerConfirm != nil {
		result["OwnerConfirm"] = m.OwnerConfirm
	} else if m.Delta != nil {
		result["Delta"] = m.Delta
	} else if m.Resync != nil {
		result["Resync"] = m.Resync
	} else if m.Close != nil {
		result["Close"] = m.Close
	}

	return json.Marshal(result)
}

// UnmarshalJSON implements custom JSON unmarshaling for BrokerRequest.
func (m *BrokerRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["Open"]; ok {
		var p OpenPayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Open = &p
	}
	if v, ok := raw["TakeOwnership"]; ok {
		var p TakeOwnershipPayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.TakeOwnership = &p
	}
	if v, ok := raw["OwnerConfirm"]; ok {
		var p OwnerConfirmPayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.OwnerConfirm = &p
	}
	if v, ok := raw["Delta"]; ok {
		var p DeltaPayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Delta = &p
	}
	if v, ok := raw["Resync"]; ok {
		var p ResyncPayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Resync = &p
	}
	if v, ok := raw["Close"]; ok {
		var p ClosePayload
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Close = &p
	}

	return nil
}

// OpenedEvent answers Open with the assigned role, epoch and current content.
type OpenedEvent struct {
	URI     string `json:"uri"`
	Role    Role   `json:"role"`
	Epoch   uint64 `json:"epoch"`
	Seq     uint64 `json:"seq"`
	Content string `json:"content"`
}

// OwnershipResultEvent answers TakeOwnership.
type OwnershipResultEvent struct {
	URI    string          `json:"uri"`
	Status OwnershipStatus `json:"status"`
	Epoch  uint64          `json:"epoch"`
}

// OwnerConfirmResultEvent answers OwnerConfirm.
type OwnerConfirmResultEvent struct {
	URI    string             `json:"uri"`
	Epoch  uint64             `json:"epoch"`
	Status OwnerConfirmStatus `json:"status"`
}

// DeltaAckEvent confirms a published delta was accepted at seq.
type DeltaAckEvent struct {
	URI string `json:"uri"`
	Seq uint64 `json:"seq"`
}

// DeltaRejectedEvent reports a published delta was rejected, usually due to
// a stale base_seq; the caller should expect a forced resync.
type DeltaRejectedEvent struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// SnapshotEvent answers Resync, or is pushed unsolicited after a corruption.
type SnapshotEvent struct {
	URI     string `json:"uri"`
	Epoch   uint64 `json:"epoch"`
	Seq     uint64 `json:"seq"`
	Content string `json:"content"`
}

// RemoteDeltaEvent pushes a delta published by another owner.
type RemoteDeltaEvent struct {
	URI   string `json:"uri"`
	Epoch uint64 `json:"epoch"`
	Seq   uint64 `json:"seq"`
	Tx    WireTx `json:"tx"`
}

// OwnerChangedEvent announces a new owner for uri, at a new epoch.
type OwnerChangedEvent struct {
	URI      string `json:"uri"`
	NewOwner bool   `json:"new_owner"`
	Epoch    uint64 `json:"epoch"`
}

// RequestFailedEvent reports that a prior request could not be completed.
type RequestFailedEvent struct {
	URI    string `json:"uri"`
	Reason string `json:"reason"`
}

// DisconnectedEvent announces the broker connection was lost; the session
// should fall back to local-only editing until reconnected.
type DisconnectedEvent struct {
	Reason string `json:"reason"`
}

// BrokerEvent represents messages pushed from the broker to an editor
// session. Only one field should be set per message (tagged union pattern).
type BrokerEvent struct {
	Opened          *OpenedEvent             `json:"Opened,omitempty"`
	OwnershipResult *OwnershipResultEvent    `json:"OwnershipResult,omitempty"`
	OwnerConfirmRes *OwnerConfirmResultEvent `json:"OwnerConfirmResult,omitempty"`
	DeltaAck        *DeltaAckEvent           `json:"DeltaAck,omitempty"`
	DeltaRejected   *DeltaRejectedEvent      `json:"DeltaRejected,omitempty"`
	Snapshot        *SnapshotEvent           `json:"Snapshot,omitempty"`
	RemoteDelta     *RemoteDeltaEvent        `json:"RemoteDelta,omitempty"`
	OwnerChanged    *OwnerChangedEvent       `json:"OwnerChanged,omitempty"`
	RequestFailed   *RequestFailedEvent      `json:"RequestFailed,omitempty"`
	Disconnected    *DisconnectedEvent       `json:"Disconnected,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for BrokerEvent.
// We need to ensure only one field is present in the JSON output.
func (m *BrokerEvent) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})

	switch {
	case m.Opened != nil:
		result["Opened"] = m.Opened
	case m.OwnershipResult != nil:
		result["OwnershipResult"] = m.OwnershipResult
	case m.OwnerConfirmRes != nil:
		result["OwnerConfirmResult"] = m.OwnerConfirmRes
	case m.DeltaAck != nil:
		result["DeltaAck"] = m.DeltaAck
	case m.DeltaRejected != nil:
		result["DeltaRejected"] = m.DeltaRejected
	case m.Snapshot != nil:
		result["Snapshot"] = m.Snapshot
	case m.RemoteDelta != nil:
		result["RemoteDelta"] = m.RemoteDelta
	case m.OwnerChanged != nil:
		result["OwnerChanged"] = m.OwnerChanged
	case m.RequestFailed != nil:
		result["RequestFailed"] = m.RequestFailed
	case m.Disconnected != nil:
		result["Disconnected"] = m.Disconnected
	}

	return json.Marshal(result)
}

// UnmarshalJSON implements custom JSON unmarshaling for BrokerEvent.
func (m *BrokerEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["Opened"]; ok {
		var p OpenedEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Opened = &p
	}
	if v, ok := raw["OwnershipResult"]; ok {
		var p OwnershipResultEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.OwnershipResult = &p
	}
	if v, ok := raw["OwnerConfirmResult"]; ok {
		var p OwnerConfirmResultEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.OwnerConfirmRes = &p
	}
	if v, ok := raw["DeltaAck"]; ok {
		var p DeltaAckEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.DeltaAck = &p
	}
	if v, ok := raw["DeltaRejected"]; ok {
		var p DeltaRejectedEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.DeltaRejected = &p
	}
	if v, ok := raw["Snapshot"]; ok {
		var p SnapshotEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Snapshot = &p
	}
	if v, ok := raw["RemoteDelta"]; ok {
		var p RemoteDeltaEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.RemoteDelta = &p
	}
	if v, ok := raw["OwnerChanged"]; ok {
		var p OwnerChangedEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.OwnerChanged = &p
	}
	if v, ok := raw["RequestFailed"]; ok {
		var p RequestFailedEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.RequestFailed = &p
	}
	if v, ok := raw["Disconnected"]; ok {
		var p DisconnectedEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		m.Disconnected = &p
	}

	return nil
}

// Helper constructors for broker requests.

// NewOpenRequest creates an Open request.
func NewOpenRequest(uri, content string) *BrokerRequest {
	return &BrokerRequest{Open: &OpenPayload{URI: uri, Content: content}}
}

// NewTakeOwnershipRequest creates a TakeOwnership request.
func NewTakeOwnershipRequest(uri string) *BrokerRequest {
	return &BrokerRequest{TakeOwnership: &TakeOwnershipPayload{URI: uri}}
}

// NewOwnerConfirmRequest creates an OwnerConfirm request.
func NewOwnerConfirmRequest(uri string, epoch, fingerprint uint64) *BrokerRequest {
	return &BrokerRequest{OwnerConfirm: &OwnerConfirmPayload{URI: uri, Epoch: epoch, Fingerprint: fingerprint}}
}

// NewDeltaRequest creates a Delta request.
func NewDeltaRequest(uri string, epoch, baseSeq uint64, tx WireTx) *BrokerRequest {
	return &BrokerRequest{Delta: &DeltaPayload{URI: uri, Epoch: epoch, BaseSeq: baseSeq, Tx: tx}}
}

// NewResyncRequest creates a Resync request.
func NewResyncRequest(uri string) *BrokerRequest {
	return &BrokerRequest{Resync: &ResyncPayload{URI: uri}}
}

// NewCloseRequest creates a Close request.
func NewCloseRequest(uri string) *BrokerRequest {
	return &BrokerRequest{Close: &ClosePayload{URI: uri}}
}

// Helper constructors for broker events.

// NewOpenedEvent creates an Opened event.
func NewOpenedEvent(uri string, role Role, epoch, seq uint64, content string) *BrokerEvent {
	return &BrokerEvent{Opened: &OpenedEvent{URI: uri, Role: role, Epoch: epoch, Seq: seq, Content: content}}
}

// NewOwnershipResultEvent creates an OwnershipResult event.
func NewOwnershipResultEvent(uri string, status OwnershipStatus, epoch uint64) *BrokerEvent {
	return &BrokerEvent{OwnershipResult: &OwnershipResultEvent{URI: uri, Status: status, Epoch: epoch}}
}

// NewOwnerConfirmResultEvent creates an OwnerConfirmResult event.
func NewOwnerConfirmResultEvent(uri string, epoch uint64, status OwnerConfirmStatus) *BrokerEvent {
	return &BrokerEvent{OwnerConfirmRes: &OwnerConfirmResultEvent{URI: uri, Epoch: epoch, Status: status}}
}

// NewDeltaAckEvent creates a DeltaAck event.
func NewDeltaAckEvent(uri string, seq uint64) *BrokerEvent {
	return &BrokerEvent{DeltaAck: &DeltaAckEvent{URI: uri, Seq: seq}}
}

// NewDeltaRejectedEvent creates a DeltaRejected event.
func NewDeltaRejectedEvent(uri, reason string) *BrokerEvent {
	return &BrokerEvent{DeltaRejected: &DeltaRejectedEvent{URI: uri, Reason: reason}}
}

// NewSnapshotEvent creates a Snapshot event.
func NewSnapshotEvent(uri string, epoch, seq uint64, content string) *BrokerEvent {
	return &BrokerEvent{Snapshot: &SnapshotEvent{URI: uri, Epoch: epoch, Seq: seq, Content: content}}
}

// NewRemoteDeltaEvent creates a RemoteDelta event.
func NewRemoteDeltaEvent(uri string, epoch, seq uint64, tx WireTx) *BrokerEvent {
	return &BrokerEvent{RemoteDelta: &RemoteDeltaEvent{URI: uri, Epoch: epoch, Seq: seq, Tx: tx}}
}

// NewOwnerChangedEvent creates an OwnerChanged event.
func NewOwnerChangedEvent(uri string, newOwner bool, epoch uint64) *BrokerEvent {
	return &BrokerEvent{OwnerChanged: &OwnerChangedEvent{URI: uri, NewOwner: newOwner, Epoch: epoch}}
}

// NewRequestFailedEvent creates a RequestFailed event.
func NewRequestFailedEvent(uri, reason string) *BrokerEvent {
	return &BrokerEvent{RequestFailed: &RequestFailedEvent{URI: uri, Reason: reason}}
}

// NewDisconnectedEvent creates a Disconnected event.
func NewDisconnectedEvent(reason string) *BrokerEvent {
	return &BrokerEvent{Disconnected: &DisconnectedEvent{Reason: reason}}
}
