package payment

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/go-payment-notify/internal/domain"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashScheme derives the expected security hash from the shared secret and the
// notification's transaction id.
type HashScheme interface {
	Name() string
	Sum(secret, transactionID string) string
}

// hexScheme hashes transactionID+secret and hex-encodes the digest, which is the
// processor's documented layout.
type hexScheme struct {
	name    string
	newHash func() hash.Hash
}

func (s hexScheme) Name() string { return s.name }

func (s hexScheme) Sum(secret, transactionID string) string {
	h := s.newHash()
	h.Write([]byte(transactionID + secret))
	return hex.EncodeToString(h.Sum(nil))
}

var schemes = map[string]HashScheme{
	"sha512":   hexScheme{name: "sha512", newHash: sha512.New},
	"sha256":   hexScheme{name: "sha256", newHash: sha256.New},
	"sha3-512": hexScheme{name: "sha3-512", newHash: sha3.New512},
	"blake2b-512": hexScheme{name: "blake2b-512", newHash: func() hash.Hash {
		h, _ := blake2b.New512(nil) // only fails for keys longer than 64 bytes
		return h
	}},
}

// DefaultScheme is the processor's SHA-512 scheme.
var DefaultScheme = schemes["sha512"]

// SchemeByName resolves a configured scheme name.
func SchemeByName(name string) (HashScheme, error) {
	if s, ok := schemes[name]; ok {
		return s, nil
	}
	names := make([]string, 0, len(schemes))
	for n := range schemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown hash scheme %q (want one of %v): %w", name, names, domain.ErrBadRequest)
}

// Verifier gates every notification on its security hash.
type Verifier struct {
	scheme HashScheme
}

func NewVerifier(scheme HashScheme) *Verifier {
	if scheme == nil {
		scheme = DefaultScheme
	}
	return &Verifier{scheme: scheme}
}

// Verify recomputes the hash for secret and the notification's transaction id and
// compares it in constant time with the embedded one. An empty secret is hashed like
// any other value; it never disables the check.
func (v *Verifier) Verify(n domain.Notification, secret, sourceAddress string) error {
	txnID := n.TransactionID()
	fail := func(reason string) error {
		return &domain.AuthenticationError{SourceAddress: sourceAddress, TransactionID: txnID, Reason: reason}
	}
	if txnID == "" {
		return fail("missing transaction id")
	}
	got := n.SecurityHash()
	if got == "" {
		return fail("empty security hash")
	}
	want := v.scheme.Sum(secret, txnID)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return fail("hash mismatch")
	}
	return nil
}
