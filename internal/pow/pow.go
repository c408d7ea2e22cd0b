// Package pow implements the optional admission proof-of-work puzzle (C6):
// find a nonce such that sha256(nonce‖node_id) begins with k hex zeros.
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Credential is the wire shape of a proof-of-work solution, mirroring
// wire.PowCredential.
type Credential struct {
	HashAlg     string
	DifficultyK int
	Nonce       string
	DigestHex   string
}

// digest computes sha256(nonce‖node_id) in lowercase hex. Per spec.md §4.6
// the preimage is the decimal string form of nonce concatenated with
// node_id, no separator — nonce first. (original_source/gossip_node.py's
// _compute_pow concatenates the opposite order; spec.md states this order
// explicitly, so it governs here.)
func digest(nonce string, nodeID string) string {
	sum := sha256.Sum256([]byte(nonce + nodeID))
	return hex.EncodeToString(sum[:])
}

// Generate searches for a nonce such that digest(nonce, nodeID) begins with
// k hex zero characters, starting from 0 and incrementing. k=0 accepts the
// first nonce tried (empty prefix requirement is vacuously true).
func Generate(nodeID string, k int) Credential {
	prefix := strings.Repeat("0", k)
	for n := 0; ; n++ {
		nonce := strconv.Itoa(n)
		d := digest(nonce, nodeID)
		if strings.HasPrefix(d, prefix) {
			return Credential{
				HashAlg:     "sha256",
				DifficultyK: k,
				Nonce:       nonce,
				DigestHex:   d,
			}
		}
	}
}

// Verify recomputes the digest for cred against nodeID and checks both
// exact equality with the claimed digest_hex and the k-zero prefix
// requirement. kRequired is the admission policy's required difficulty,
// which may differ from cred.DifficultyK (a credential must claim at least
// the required difficulty).
func Verify(nodeID string, cred Credential, kRequired int) bool {
	if kRequired <= 0 {
		return true
	}
	if cred.HashAlg != "sha256" {
		return false
	}
	if cred.DifficultyK < kRequired {
		return false
	}
	want := digest(cred.Nonce, nodeID)
	if want != cred.DigestHex {
		return false
	}
	return strings.HasPrefix(want, strings.Repeat("0", kRequired))
}
