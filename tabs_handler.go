package signerd

import (
	"fmt"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/session"
)

// handleTabRequest serves the low-trust pub(...) namespace on behalf of web
// pages. The identity of every request is the connection's transport-derived
// origin, and all account-touching operations are gated on that origin
// holding an authorization.
func (c *wsConn) handleTabRequest(req *extwire.Request) (*extwire.Response,
	error) {

	if !req.Message.IsTabKind() {
		return nil, fmt.Errorf("message %s is not valid on the "+
			"content channel", req.Message)
	}

	state := c.server.state

	// Gate account-touching operations. Unseen origins block here until
	// the user decides on the authorization prompt this raises.
	if req.Message.RequiresAuthorization() {
		err := state.EnsureAuthorized(c.origin, c.origin, c.id)
		if err != nil {
			return nil, err
		}
	}

	switch req.Message {
	case extwire.MsgAuthorizeTab:
		payload, err := decodeRequest[extwire.RequestAuthorizeTab](req)
		if err != nil {
			return nil, err
		}

		authorized, err := state.AuthorizeURL(
			c.origin, c.origin, c.id, payload,
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, authorized)

	case extwire.MsgAccountsList:
		return extwire.NewResponse(req.ID, state.Accounts())

	case extwire.MsgAccountsSubscribeTab:
		client, current, err := state.SubscribeAccounts()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgExtrinsicSign:
		payload, err := decodeRequest[extwire.SignerPayloadJSON](req)
		if err != nil {
			return nil, err
		}

		result, err := state.RequestSign(
			c.origin, c.origin, c.id, &session.SigningPayload{
				Address:   payload.Address,
				Extrinsic: payload,
			},
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, result)

	case extwire.MsgBytesSign:
		payload, err := decodeRequest[extwire.SignerPayloadRaw](req)
		if err != nil {
			return nil, err
		}

		result, err := state.RequestSign(
			c.origin, c.origin, c.id, &session.SigningPayload{
				Address: payload.Address,
				Raw:     payload,
			},
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, result)

	case extwire.MsgMetadataListTab:
		return extwire.NewResponse(req.ID, state.MetadataList())

	case extwire.MsgMetadataProvide:
		payload, err := decodeRequest[extwire.MetadataDef](req)
		if err != nil {
			return nil, err
		}

		accepted, err := state.InjectMetadata(
			c.origin, c.origin, c.id, payload,
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, accepted)

	case extwire.MsgNetworkSubscribe:
		client, current, err := state.SubscribeNetwork()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgPhishingRedirect:
		// The page asks whether its own origin has been denied so the
		// in-page provider can bounce the user away.
		info, known := state.AuthURLs()[c.origin]
		denied := known && !info.IsAllowed

		return extwire.NewResponse(req.ID, denied)

	default:
		return nil, fmt.Errorf("unknown message %s", req.Message)
	}
}
