// Package wallet holds the local keypair signer.
package wallet

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// KeypairSigner signs transactions with a locally held ed25519 keypair.
// The key never leaves the process; everything upstream of Sign works with
// the pubkey only.
type KeypairSigner struct {
	key    ed25519.PrivateKey
	pubkey string
}

// NewSignerFromBase58 builds a signer from a base58-encoded 64-byte secret
// key (seed followed by public key).
func NewSignerFromBase58(secret string) (*KeypairSigner, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	key := ed25519.PrivateKey(raw)
	return &KeypairSigner{
		key:    key,
		pubkey: base58.Encode(key.Public().(ed25519.PublicKey)),
	}, nil
}

// Pubkey returns the signer's base58 public key.
func (s *KeypairSigner) Pubkey() string {
	return s.pubkey
}

// Sign fills the fee payer's signature slot of a serialized transaction:
// a compact-u16 signature count, the signature slots, then the message
// bytes that get signed.
func (s *KeypairSigner) Sign(_ context.Context, tx []byte) ([]byte, error) {
	sigCount, offset, err := decodeCompactU16(tx)
	if err != nil {
		return nil, fmt.Errorf("malformed transaction: %w", err)
	}
	if sigCount < 1 {
		return nil, fmt.Errorf("transaction has no signature slots")
	}

	msgStart := offset + sigCount*ed25519.SignatureSize
	if msgStart >= len(tx) {
		return nil, fmt.Errorf("transaction shorter than its %d signature slots", sigCount)
	}

	signed := make([]byte, len(tx))
	copy(signed, tx)
	copy(signed[offset:], ed25519.Sign(s.key, tx[msgStart:]))
	return signed, nil
}

// Disabled is the signer used when no private key is configured. Analysis
// and dry runs still work; any attempt to execute fails.
type Disabled struct{}

func (Disabled) Pubkey() string { return "" }

func (Disabled) Sign(_ context.Context, _ []byte) ([]byte, error) {
	return nil, fmt.Errorf("no wallet private key configured")
}

// decodeCompactU16 reads a compact-u16 length prefix, returning the value
// and the number of bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("truncated compact-u16")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16 longer than 3 bytes")
}
