// Package cryptox holds the one-way password hash primitives and the random
// token source used by the account service.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Names accepted by NewPasswordHasher.
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher is a salted one-way hash. Hash must draw a fresh random salt
// on every call; Verify must compare in constant time.
type PasswordHasher interface {
	Hash(plain []byte) ([]byte, error)
	Verify(plain, hash []byte) bool
}

// NewPasswordHasher returns the hasher registered under name.
// bcryptCost is only used by bcrypt; 0 selects bcrypt.DefaultCost.
func NewPasswordHasher(name string, bcryptCost int) (PasswordHasher, error) {
	switch strings.ToLower(name) {
	case "", HasherBcrypt:
		return NewBcryptHasher(bcryptCost), nil
	case HasherArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// BcryptHasher stores bcrypt's own modular-crypt string; the salt is embedded.
// The password is reduced to base64(SHA-256(password)) before bcrypt sees it,
// so passwords of any length hash and no two passwords sharing a 72-byte
// prefix collide.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(bcryptInput(plain), h.cost)
}

func (h *BcryptHasher) Verify(plain, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, bcryptInput(plain)) == nil
}

// bcryptInput is 44 bytes of base64 text: under bcrypt's 72-byte limit and
// free of NUL bytes.
func bcryptInput(plain []byte) []byte {
	sum := sha256.Sum256(plain)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// Argon2idHasher stores a PHC string:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// with unpadded standard base64 for salt and key.
type Argon2idHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{Time: 1, Memory: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}
}

func (h *Argon2idHasher) Hash(plain []byte) ([]byte, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := argon2.IDKey(plain, salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	enc := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	return []byte(enc), nil
}

func (h *Argon2idHasher) Verify(plain, hash []byte) bool {
	p, err := decodeArgon2id(string(hash))
	if err != nil {
		return false
	}

	key := argon2.IDKey(plain, p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1
}

type argon2idParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodeArgon2id(s string) (*argon2idParams, error) {
	parts := strings.Split(s, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	p := &argon2idParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, ErrMalformedHash
	}
	if p.time == 0 || p.threads == 0 {
		return nil, ErrMalformedHash
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, ErrMalformedHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, ErrMalformedHash
	}

	return p, nil
}
