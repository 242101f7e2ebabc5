package session

import (
	"sort"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/subscribe"
)

// MetadataRequest is a pending chain-metadata injection request.
type MetadataRequest = PendingRequest[*extwire.MetadataDef]

// InjectMetadata enqueues a metadata definition offered by a dApp and blocks
// until the user decides whether to accept it into the known-metadata
// registry.
func (s *State) InjectMetadata(origin, url, connID string,
	def *extwire.MetadataDef) (bool, error) {

	id := s.nextID()
	done, err := s.metaQueue.enqueue(id, origin, url, connID, def)
	if err != nil {
		return false, err
	}

	log.Infof("Queued metadata request %s for chain %s (spec %d) from "+
		"origin %s", id, def.Chain, def.SpecVersion, origin)

	return await(s, done)
}

// MetadataApprove accepts a pending metadata definition, persisting it into
// the known-metadata registry before the dApp's promise resolves.
func (s *State) MetadataApprove(id string) error {
	req, err := s.metaQueue.get(id)
	if err != nil {
		return err
	}

	def := req.Request
	if err := s.cfg.DB.PutMetadata(def); err != nil {
		return err
	}

	s.mtx.Lock()
	s.metadata[def.GenesisHash] = def
	s.mtx.Unlock()

	log.Infof("Known metadata updated: %s spec %d", def.Chain,
		def.SpecVersion)

	return s.metaQueue.resolve(id, true)
}

// MetadataReject rejects a pending metadata definition.
func (s *State) MetadataReject(id string) error {
	return s.metaQueue.reject(id, ErrCancelled)
}

// KnownMetadata returns all accepted metadata definitions, sorted by chain
// name.
func (s *State) KnownMetadata() []*extwire.MetadataDef {
	s.mtx.Lock()
	defs := make([]*extwire.MetadataDef, 0, len(s.metadata))
	for _, def := range s.metadata {
		defs = append(defs, def)
	}
	s.mtx.Unlock()

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Chain < defs[j].Chain
	})

	return defs
}

// MetadataList returns the trimmed known-metadata view injected into dApps.
func (s *State) MetadataList() []*extwire.InjectedMetadataKnown {
	defs := s.KnownMetadata()

	known := make([]*extwire.InjectedMetadataKnown, 0, len(defs))
	for _, def := range defs {
		known = append(known, &extwire.InjectedMetadataKnown{
			GenesisHash: def.GenesisHash,
			SpecVersion: def.SpecVersion,
		})
	}

	return known
}

// PendingMetadataRequests returns the current metadata queue snapshot.
func (s *State) PendingMetadataRequests() []*MetadataRequest {
	return s.metaQueue.snapshot()
}

// SubscribeMetadataRequests registers a subscriber for metadata queue
// snapshots and returns the current snapshot alongside.
func (s *State) SubscribeMetadataRequests() (
	*subscribe.Client[[]*MetadataRequest], []*MetadataRequest, error) {

	client, err := s.metaQueue.subscribe()
	if err != nil {
		return nil, nil, err
	}

	return client, s.metaQueue.snapshot(), nil
}
