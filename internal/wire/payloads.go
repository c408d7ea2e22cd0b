package wire

import "encoding/json"

// Payload shapes for each msg_type, per spec.md §4.5. These are decoded
// on demand by handlers (not at envelope-decode time) since payload schema
// is a per-handler policy concern, not a transport-layer one.

type PowCredential struct {
	HashAlg     string `json:"hash_alg"`
	DifficultyK int    `json:"difficulty_k"`
	Nonce       string `json:"nonce"`
	DigestHex   string `json:"digest_hex"`
}

type HelloPayload struct {
	Capabilities []string       `json:"capabilities"`
	Pow          *PowCredential `json:"pow,omitempty"`
}

type GetPeersPayload struct {
	MaxPeers int `json:"max_peers"`
}

type PeerRecord struct {
	NodeID string `json:"node_id"`
	Addr   string `json:"addr"`
}

type PeersListPayload struct {
	Peers []PeerRecord `json:"peers"`
}

type PingPayload struct {
	PingID string `json:"ping_id"`
	Seq    int    `json:"seq"`
}

type PongPayload struct {
	PingID string `json:"ping_id"`
	Seq    int    `json:"seq"`
}

type GossipPayload struct {
	Topic             string `json:"topic"`
	Data              string `json:"data"`
	OriginID          string `json:"origin_id"`
	OriginTimestampMs int64  `json:"origin_timestamp_ms"`
}

type IHavePayload struct {
	IDs    []string `json:"ids"`
	MaxIDs int      `json:"max_ids"`
}

type IWantPayload struct {
	IDs []string `json:"ids"`
}

// DecodePayload unmarshals env.Payload into v, returning a *ValidationError
// with reason "invalid_payload_shape" on any type mismatch.
func DecodePayload(env *Envelope, v interface{}) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &ValidationError{Reason: "invalid_payload_shape", MsgType: env.MsgType, MsgID: env.MsgID}
	}
	return nil
}

// EncodePayload marshals v for use as an outbound Envelope.Payload.
func EncodePayload(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}
