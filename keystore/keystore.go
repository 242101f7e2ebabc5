// Package keystore implements the signer daemon's key store: encrypted at
// rest ed25519 key pairs with explicit lock/unlock state and account
// metadata.
package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
)

// Meta holds the user-facing metadata attached to a key pair. It is mutated
// only through the store so that every change can be replayed to account
// subscribers.
type Meta struct {
	// Name is the user supplied account label.
	Name string `json:"name"`

	// GenesisHash optionally ties the account to a single chain.
	GenesisHash string `json:"genesisHash,omitempty"`

	// IsHidden excludes the account from injected account lists.
	IsHidden bool `json:"isHidden,omitempty"`

	// WhenCreated is the unix-millisecond creation timestamp. Account
	// lists are sorted by it.
	WhenCreated int64 `json:"whenCreated"`

	// WhenSelected is the unix-millisecond timestamp of the last time
	// this account was made the active selection. The account with the
	// maximum value is the currently selected one.
	WhenSelected int64 `json:"whenSelected,omitempty"`
}

// Pair is a single managed key pair. The private key material is only held
// in memory while the pair is unlocked.
type Pair struct {
	mtx sync.Mutex

	address string
	pubKey  ed25519.PublicKey
	enc     *encryptedKey

	// privKey is non-nil only while the pair is unlocked.
	privKey ed25519.PrivateKey

	meta Meta
}

// Address returns the hex-encoded address of the pair.
func (p *Pair) Address() string {
	return p.address
}

// Meta returns a copy of the pair's metadata.
func (p *Pair) Meta() Meta {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.meta
}

// Locked reports whether the private key material is currently unavailable.
func (p *Pair) Locked() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.privKey == nil
}

// Unlock decrypts the private key with the given password, making the pair
// usable for signing until Lock is called.
func (p *Pair) Unlock(password string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.privKey != nil {
		return nil
	}

	seed, err := p.enc.decryptSeed(password)
	if err != nil {
		return err
	}

	priv := ed25519.NewKeyFromSeed(seed)
	if !p.pubKey.Equal(priv.Public().(ed25519.PublicKey)) {
		// The box opened but does not belong to this pair. Treat it
		// the same as a bad password.
		return ErrInvalidPassword
	}

	p.privKey = priv
	return nil
}

// Lock drops the in-memory private key material.
func (p *Pair) Lock() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.privKey = nil
}

// Sign produces a signature over the payload with the unlocked private key.
// Payloads longer than 256 bytes are signed over their blake2b-256 digest.
func (p *Pair) Sign(payload []byte) ([]byte, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.privKey == nil {
		return nil, ErrLocked
	}

	return ed25519.Sign(p.privKey, SigningDigest(payload)), nil
}

// Verify checks a signature produced by Sign against the pair's public key.
func (p *Pair) Verify(payload, sig []byte) bool {
	return ed25519.Verify(p.pubKey, SigningDigest(payload), sig)
}

// Store holds all managed key pairs, keyed by address.
type Store struct {
	mtx sync.RWMutex

	clk   clock.Clock
	pairs map[string]*Pair

	// onChange, if set, is invoked after every mutation of the pair set
	// or of any pair's metadata.
	onChange func()
}

// NewStore creates an empty key store.
func NewStore(clk clock.Clock) *Store {
	return &Store{
		clk:   clk,
		pairs: make(map[string]*Pair),
	}
}

// SetNotifier registers a callback fired after every store mutation. Used by
// the session state to replay account changes to subscribers.
func (s *Store) SetNotifier(onChange func()) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.onChange = onChange
}

func (s *Store) notify() {
	s.mtx.RLock()
	onChange := s.onChange
	s.mtx.RUnlock()

	if onChange != nil {
		onChange()
	}
}

// ImportPrivateKey adds a new pair from a raw hex-encoded ed25519 seed,
// encrypting it under the given password. This is the entry point for keys
// handed over by the external authentication flow. The derived address is
// returned via the new pair.
func (s *Store) ImportPrivateKey(privHex, password, name string) (*Pair,
	error) {

	seed, err := hex.DecodeString(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("unable to decode private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key length: %d",
			len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	address := "0x" + hex.EncodeToString(pub)

	enc, err := encryptSeed(seed, password)
	if err != nil {
		return nil, err
	}

	pair := &Pair{
		address: address,
		pubKey:  pub,
		enc:     enc,
		meta: Meta{
			Name:        name,
			WhenCreated: s.clk.Now().UnixMilli(),
		},
	}

	s.mtx.Lock()
	if _, ok := s.pairs[address]; ok {
		s.mtx.Unlock()
		return nil, ErrAddressCollision
	}
	s.pairs[address] = pair
	s.mtx.Unlock()

	log.Infof("Imported account %s (%s)", name, address)

	s.notify()
	return pair, nil
}

// Pair returns the pair for the given address.
func (s *Store) Pair(address string) (*Pair, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	pair, ok := s.pairs[address]
	if !ok {
		return nil, ErrKeyNotFound
	}

	return pair, nil
}

// Pairs returns all pairs, sorted by creation time.
func (s *Store) Pairs() []*Pair {
	s.mtx.RLock()
	pairs := make([]*Pair, 0, len(s.pairs))
	for _, pair := range s.pairs {
		pairs = append(pairs, pair)
	}
	s.mtx.RUnlock()

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Meta().WhenCreated < pairs[j].Meta().WhenCreated
	})

	return pairs
}

// Forget removes the pair for the given address from the store.
func (s *Store) Forget(address string) error {
	s.mtx.Lock()
	pair, ok := s.pairs[address]
	if !ok {
		s.mtx.Unlock()
		return ErrKeyNotFound
	}

	pair.Lock()
	delete(s.pairs, address)
	s.mtx.Unlock()

	log.Infof("Forgot account %s", address)

	s.notify()
	return nil
}

// UpdateMeta applies the given mutation to the pair's metadata.
func (s *Store) UpdateMeta(address string, update func(*Meta)) error {
	pair, err := s.Pair(address)
	if err != nil {
		return err
	}

	pair.mtx.Lock()
	update(&pair.meta)
	pair.mtx.Unlock()

	s.notify()
	return nil
}

// encodedPair is the serialized form of a pair, used for persistence.
type encodedPair struct {
	Address string `json:"address"`
	PubKey  string `json:"pubKey"`
	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Box     string `json:"box"`
	Meta    Meta   `json:"meta"`
}

// EncodePair serializes a pair, including its encrypted seed, for storage.
// The cleartext private key is never part of the encoding.
func EncodePair(p *Pair) ([]byte, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return json.Marshal(&encodedPair{
		Address: p.address,
		PubKey:  hex.EncodeToString(p.pubKey),
		Salt:    hex.EncodeToString(p.enc.salt),
		Nonce:   hex.EncodeToString(p.enc.nonce),
		Box:     hex.EncodeToString(p.enc.box),
		Meta:    p.meta,
	})
}

// AddEncoded restores a previously encoded pair into the store. The restored
// pair starts out locked.
func (s *Store) AddEncoded(data []byte) error {
	var enc encodedPair
	if err := json.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("unable to decode stored pair: %w", err)
	}

	pubKey, err := hex.DecodeString(enc.PubKey)
	if err != nil {
		return err
	}
	salt, err := hex.DecodeString(enc.Salt)
	if err != nil {
		return err
	}
	nonce, err := hex.DecodeString(enc.Nonce)
	if err != nil {
		return err
	}
	box, err := hex.DecodeString(enc.Box)
	if err != nil {
		return err
	}

	pair := &Pair{
		address: enc.Address,
		pubKey:  ed25519.PublicKey(pubKey),
		enc: &encryptedKey{
			salt:  salt,
			nonce: nonce,
			box:   box,
		},
		meta: enc.Meta,
	}

	s.mtx.Lock()
	s.pairs[enc.Address] = pair
	s.mtx.Unlock()

	return nil
}
