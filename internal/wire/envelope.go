// Package wire implements the JSON wire codec and schema validation for the
// gossip protocol's message envelope. Every message is exactly one UTF-8
// JSON object per UDP datagram.
package wire

import (
	"encoding/json"
	"fmt"
	"net"
)

// Version is the only accepted envelope version.
const Version = 1

// Kind enumerates the eight wire message types.
type Kind string

const (
	KindHello     Kind = "HELLO"
	KindGetPeers  Kind = "GET_PEERS"
	KindPeersList Kind = "PEERS_LIST"
	KindPing      Kind = "PING"
	KindPong      Kind = "PONG"
	KindGossip    Kind = "GOSSIP"
	KindIHave     Kind = "IHAVE"
	KindIWant     Kind = "IWANT"
)

// knownKinds mirrors original_source/src/messages.py's KNOWN_MSG_TYPES set.
var knownKinds = map[Kind]bool{
	KindHello: true, KindGetPeers: true, KindPeersList: true,
	KindPing: true, KindPong: true, KindGossip: true,
	KindIHave: true, KindIWant: true,
}

// Envelope is the decoded, validated wire message.
type Envelope struct {
	Version      int             `json:"version"`
	MsgID        string          `json:"msg_id"`
	MsgType      Kind            `json:"msg_type"`
	SenderID     string          `json:"sender_id"`
	SenderAddr   string          `json:"sender_addr"`
	TimestampMs  int64           `json:"timestamp_ms"`
	Payload      json.RawMessage `json:"payload"`
	TTL          *int            `json:"ttl,omitempty"`
}

// Encode serializes the envelope to its wire form.
func Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// ValidationError names the reason a datagram was rejected, matching the
// failure-reason vocabulary consumed by the structured event log (C9).
type ValidationError struct {
	Reason  string
	MsgType Kind
	MsgID   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid envelope: %s", e.Reason)
}

func invalid(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// Decode parses and validates a raw datagram per spec.md §4.1. On failure it
// returns a *ValidationError carrying as much of msg_type/msg_id as could be
// extracted before the rejecting field was found, so the caller can still
// log recv_invalid_schema with partial context.
func Decode(data []byte) (*Envelope, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(newUTF8Reader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("bad_json")
	}
	if raw == nil {
		return nil, invalid("not_object")
	}

	partial := &ValidationError{}

	msgType, _ := raw["msg_type"].(string)
	partial.MsgType = Kind(msgType)
	msgID, _ := raw["msg_id"].(string)
	partial.MsgID = msgID

	for _, field := range []string{"version", "msg_id", "msg_type", "sender_id", "sender_addr", "timestamp_ms", "payload"} {
		if _, ok := raw[field]; !ok {
			partial.Reason = "missing_" + field
			return nil, partial
		}
	}

	versionNum, ok := raw["version"].(json.Number)
	if !ok {
		partial.Reason = "invalid_version"
		return nil, partial
	}
	versionInt, err := versionNum.Int64()
	if err != nil || versionInt != Version {
		partial.Reason = "invalid_version"
		return nil, partial
	}

	if msgID == "" {
		partial.Reason = "invalid_msg_id"
		return nil, partial
	}

	if !knownKinds[Kind(msgType)] {
		partial.Reason = "unknown_type"
		return nil, partial
	}

	senderID, ok := raw["sender_id"].(string)
	if !ok || senderID == "" {
		partial.Reason = "invalid_sender_id"
		return nil, partial
	}

	senderAddr, ok := raw["sender_addr"].(string)
	if !ok {
		partial.Reason = "invalid_sender_addr_format"
		return nil, partial
	}
	if _, _, err := net.SplitHostPort(senderAddr); err != nil {
		partial.Reason = "invalid_sender_addr_format"
		return nil, partial
	}

	tsNum, ok := raw["timestamp_ms"].(json.Number)
	if !ok {
		partial.Reason = "invalid_timestamp"
		return nil, partial
	}
	tsInt, err := tsNum.Int64()
	if err != nil {
		partial.Reason = "invalid_timestamp"
		return nil, partial
	}

	payloadRaw, ok := raw["payload"].(map[string]interface{})
	if !ok {
		partial.Reason = "invalid_payload"
		return nil, partial
	}
	payloadBytes, err := json.Marshal(payloadRaw)
	if err != nil {
		partial.Reason = "invalid_payload"
		return nil, partial
	}

	env := &Envelope{
		Version:     int(versionInt),
		MsgID:       msgID,
		MsgType:     Kind(msgType),
		SenderID:    senderID,
		SenderAddr:  senderAddr,
		TimestampMs: tsInt,
		Payload:     payloadBytes,
	}

	if ttlRaw, present := raw["ttl"]; present {
		ttlNum, ok := ttlRaw.(json.Number)
		if !ok {
			partial.Reason = "invalid_ttl_type"
			return nil, partial
		}
		ttlInt, err := ttlNum.Int64()
		if err != nil || ttlInt < 0 {
			partial.Reason = "invalid_ttl"
			return nil, partial
		}
		ttl := int(ttlInt)
		env.TTL = &ttl
	} else if msgType == string(KindGossip) {
		partial.Reason = "missing_ttl"
		return nil, partial
	}

	return env, nil
}
