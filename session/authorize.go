package session

import (
	"fmt"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/signerdb"
	"github.com/reef-chain/signerd/subscribe"
)

// AuthorizeRequest is a pending origin-authorization request.
type AuthorizeRequest = PendingRequest[*extwire.RequestAuthorizeTab]

// AuthorizeURL gates a tab origin. Origins with a persisted allow record
// pass synchronously; explicitly denied origins fail with ErrOriginDenied;
// unseen origins enqueue an authorization prompt and block until the user
// decides. The origin MUST be the transport-derived one.
func (s *State) AuthorizeURL(origin, url, connID string,
	req *extwire.RequestAuthorizeTab) (bool, error) {

	s.mtx.Lock()
	info, ok := s.authURLs[origin]
	s.mtx.Unlock()

	if ok {
		if !info.IsAllowed {
			return false, fmt.Errorf("%w: %s", ErrOriginDenied,
				origin)
		}

		return true, nil
	}

	id := s.nextID()
	done, err := s.authQueue.enqueue(id, origin, url, connID, req)
	if err != nil {
		return false, err
	}

	log.Infof("Queued authorization request %s for origin %s", id, origin)

	return await(s, done)
}

// EnsureAuthorized verifies that the origin may perform gated operations,
// prompting the user if the origin has never been seen. It is the single
// entry point every gated tab request must pass before any account data is
// released.
func (s *State) EnsureAuthorized(origin, url, connID string) error {
	_, err := s.AuthorizeURL(origin, url, connID,
		&extwire.RequestAuthorizeTab{Origin: origin})
	return err
}

// AuthorizeApprove approves a pending authorization request, persisting the
// origin's allow record before the original caller's promise resolves.
func (s *State) AuthorizeApprove(id string,
	authorizedAccounts []string) error {

	req, err := s.authQueue.get(id)
	if err != nil {
		return err
	}

	info := &signerdb.AuthURLInfo{
		Origin:             req.Origin,
		IsAllowed:          true,
		AuthorizedAccounts: authorizedAccounts,
		LastAuthorized:     s.clk.Now().UnixMilli(),
	}
	if err := s.persistAuthURL(info); err != nil {
		return err
	}

	log.Infof("Origin %s authorized", req.Origin)

	return s.authQueue.resolve(id, true)
}

// AuthorizeReject rejects a pending authorization request, persisting a
// denial record so subsequent requests from the origin fail fast.
func (s *State) AuthorizeReject(id string) error {
	req, err := s.authQueue.get(id)
	if err != nil {
		return err
	}

	info := &signerdb.AuthURLInfo{
		Origin:         req.Origin,
		IsAllowed:      false,
		LastAuthorized: s.clk.Now().UnixMilli(),
	}
	if err := s.persistAuthURL(info); err != nil {
		return err
	}

	log.Infof("Origin %s denied", req.Origin)

	return s.authQueue.reject(id, ErrCancelled)
}

// ToggleAuthorization flips the allow flag of an existing origin record and
// returns the full updated map for direct UI rendering.
func (s *State) ToggleAuthorization(origin string) (
	map[string]*signerdb.AuthURLInfo, error) {

	s.mtx.Lock()
	info, ok := s.authURLs[origin]
	s.mtx.Unlock()

	if !ok {
		return nil, fmt.Errorf("no authorization record for origin "+
			"%s", origin)
	}

	updated := *info
	updated.IsAllowed = !info.IsAllowed
	if err := s.persistAuthURL(&updated); err != nil {
		return nil, err
	}

	return s.AuthURLs(), nil
}

// RemoveAuthorization deletes the origin's record entirely, reverting it to
// "never seen, must prompt".
func (s *State) RemoveAuthorization(origin string) (
	map[string]*signerdb.AuthURLInfo, error) {

	if err := s.cfg.DB.DeleteAuthURL(origin); err != nil {
		return nil, err
	}

	s.mtx.Lock()
	delete(s.authURLs, origin)
	s.mtx.Unlock()

	log.Infof("Removed authorization record of origin %s", origin)

	return s.AuthURLs(), nil
}

// AuthURLs returns a snapshot of the full origin -> record map.
func (s *State) AuthURLs() map[string]*signerdb.AuthURLInfo {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	authURLs := make(map[string]*signerdb.AuthURLInfo, len(s.authURLs))
	for origin, info := range s.authURLs {
		infoCopy := *info
		authURLs[origin] = &infoCopy
	}

	return authURLs
}

// persistAuthURL writes the record through to the store before updating the
// in-memory registry, so an eviction right after an approval cannot lose it.
func (s *State) persistAuthURL(info *signerdb.AuthURLInfo) error {
	if err := s.cfg.DB.PutAuthURL(info); err != nil {
		return fmt.Errorf("unable to persist auth record: %w", err)
	}

	s.mtx.Lock()
	s.authURLs[info.Origin] = info
	s.mtx.Unlock()

	return nil
}

// PendingAuthorizeRequests returns the current authorization queue snapshot.
func (s *State) PendingAuthorizeRequests() []*AuthorizeRequest {
	return s.authQueue.snapshot()
}

// SubscribeAuthorizeRequests registers a subscriber for authorization queue
// snapshots and returns the current snapshot alongside, so new subscribers
// see outstanding requests immediately.
func (s *State) SubscribeAuthorizeRequests() (
	*subscribe.Client[[]*AuthorizeRequest], []*AuthorizeRequest, error) {

	client, err := s.authQueue.subscribe()
	if err != nil {
		return nil, nil, err
	}

	return client, s.authQueue.snapshot(), nil
}
