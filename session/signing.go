package session

import (
	"encoding/hex"
	"errors"

	"github.com/davecgh/go-spew/spew"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/subscribe"
)

// SigningPayload is the kind-specific payload of a pending signing request:
// the resolved signing account plus either a structured extrinsic payload or
// a raw byte payload.
type SigningPayload struct {
	// Address is the signing account's address.
	Address string `json:"address"`

	// Account carries display metadata of the signing account for the
	// approval UI.
	Account extwire.InjectedAccount `json:"account"`

	// Extrinsic is set for pub(extrinsic.sign) requests.
	Extrinsic *extwire.SignerPayloadJSON `json:"extrinsic,omitempty"`

	// Raw is set for pub(bytes.sign) requests.
	Raw *extwire.SignerPayloadRaw `json:"raw,omitempty"`
}

// signingBytes returns the blob the keystore will sign.
func (p *SigningPayload) signingBytes() ([]byte, error) {
	switch {
	case p.Extrinsic != nil:
		return p.Extrinsic.SigningBytes()
	case p.Raw != nil:
		return p.Raw.SigningBytes()
	default:
		return nil, errors.New("signing request carries no payload")
	}
}

// genesisHash returns the chain the payload targets, if it names one.
func (p *SigningPayload) genesisHash() string {
	if p.Extrinsic != nil {
		return p.Extrinsic.GenesisHash
	}

	return ""
}

// SigningRequest is a pending signing request.
type SigningRequest = PendingRequest[*SigningPayload]

// RequestSign enqueues a signing request for the given origin and blocks
// until the user approves or rejects it. The signing pair must exist;
// callers are expected to have passed EnsureAuthorized already.
func (s *State) RequestSign(origin, url, connID string,
	payload *SigningPayload) (*extwire.SignatureResult, error) {

	pair, err := s.cfg.KeyStore.Pair(payload.Address)
	if err != nil {
		return nil, err
	}

	// Resolve account display metadata for the approval UI.
	meta := pair.Meta()
	payload.Account = extwire.InjectedAccount{
		Address:     pair.Address(),
		GenesisHash: meta.GenesisHash,
		Name:        meta.Name,
		Type:        "ed25519",
	}

	id := s.nextID()
	done, err := s.signQueue.enqueue(id, origin, url, connID, payload)
	if err != nil {
		return nil, err
	}

	log.Infof("Queued signing request %s for origin %s, account %s", id,
		origin, payload.Address)
	log.Tracef("Signing payload: %v",
		newLogClosure(func() string { return spew.Sdump(payload) }))

	return await(s, done)
}

// SignApprove approves a pending signing request. A locked pair with no
// password fails with ErrPasswordRequired and a wrong password with
// keystore.ErrInvalidPassword; in both cases the request stays pending and
// the approval can be retried. On success the original caller's promise
// resolves with the signature. With savePassword the unlock cache keeps the
// pair unlocked for the configured TTL, otherwise the pair is relocked
// immediately so the unlocked state never outlives the single sign
// operation.
func (s *State) SignApprove(id, password string, savePassword bool) error {
	req, err := s.signQueue.get(id)
	if err != nil {
		return err
	}

	payload := req.Request
	pair, err := s.cfg.KeyStore.Pair(payload.Address)
	if err != nil {
		return err
	}

	// Reconcile unlock expiry before reading the raw lock state.
	s.unlock.refresh(payload.Address)

	// Track whether this call opened the unlocked state, so every
	// failure exit below can close it again. The unlocked state must
	// not outlive the single approval unless explicitly remembered.
	unlockedHere := false
	if pair.Locked() {
		if password == "" {
			return ErrPasswordRequired
		}

		if err := pair.Unlock(password); err != nil {
			return err
		}
		unlockedHere = true
	}

	// Chain metadata is only needed to decode the payload for display;
	// its absence must not block signing.
	if genesisHash := payload.genesisHash(); genesisHash != "" {
		s.mtx.Lock()
		_, known := s.metadata[genesisHash]
		s.mtx.Unlock()

		if !known {
			log.Debugf("No metadata for genesis %s, signing "+
				"without decode", genesisHash)
		}
	}

	blob, err := payload.signingBytes()
	if err != nil {
		if unlockedHere {
			pair.Lock()
		}

		// A payload that cannot be assembled can never be signed;
		// terminate the request so the dApp learns about it.
		if rejectErr := s.signQueue.reject(id, err); rejectErr != nil {
			log.Errorf("Unable to reject malformed signing "+
				"request %s: %v", id, rejectErr)
		}

		return err
	}

	sig, err := pair.Sign(blob)
	if err != nil {
		if unlockedHere {
			pair.Lock()
		}

		return err
	}

	if savePassword {
		s.unlock.markUnlocked(
			payload.Address, s.cfg.PasswordTimeout,
		)
	} else {
		// Clear rather than lock directly, so a trust window left
		// over from an earlier remembered approval goes with it.
		s.unlock.clear(payload.Address)
	}

	log.Infof("Signing request %s approved for account %s "+
		"(savePassword=%v)", id, payload.Address, savePassword)

	return s.signQueue.resolve(id, &extwire.SignatureResult{
		ID:        id,
		Signature: "0x" + hex.EncodeToString(sig),
	})
}

// SignCancel rejects a pending signing request on the user's behalf. A
// second cancel of the same id reports ErrRequestNotFound without touching
// the first outcome.
func (s *State) SignCancel(id string) error {
	if err := s.signQueue.reject(id, ErrCancelled); err != nil {
		return err
	}

	log.Infof("Signing request %s cancelled", id)

	return nil
}

// SignIsLocked probes the lock state of a pending request's account so the
// UI can decide whether to prompt for a password. The remaining unlock-cache
// time is reported in milliseconds.
func (s *State) SignIsLocked(id string) (*extwire.ResponseSigningIsLocked,
	error) {

	req, err := s.signQueue.get(id)
	if err != nil {
		return nil, err
	}

	pair, err := s.cfg.KeyStore.Pair(req.Request.Address)
	if err != nil {
		return nil, err
	}

	remaining := s.unlock.refresh(req.Request.Address)

	return &extwire.ResponseSigningIsLocked{
		IsLocked:      pair.Locked(),
		RemainingTime: remaining.Milliseconds(),
	}, nil
}

// PendingSigningRequests returns the current signing queue snapshot.
func (s *State) PendingSigningRequests() []*SigningRequest {
	return s.signQueue.snapshot()
}

// SubscribeSigningRequests registers a subscriber for signing queue
// snapshots. Outstanding requests survive a subscriber disconnect and are
// re-offered here to the next subscriber via the returned current snapshot.
func (s *State) SubscribeSigningRequests() (
	*subscribe.Client[[]*SigningRequest], []*SigningRequest, error) {

	client, err := s.signQueue.subscribe()
	if err != nil {
		return nil, nil, err
	}

	return client, s.signQueue.snapshot(), nil
}
