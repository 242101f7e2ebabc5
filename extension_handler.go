package signerd

import (
	"fmt"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/netparams"
)

// handleExtensionRequest serves the trusted pri(...) namespace: account
// management, decisions on pending requests and the observable streams the
// popup UI renders.
func (c *wsConn) handleExtensionRequest(req *extwire.Request) (
	*extwire.Response, error) {

	if !req.Message.IsExtensionKind() {
		return nil, fmt.Errorf("message %s is not valid on the "+
			"extension channel", req.Message)
	}

	state := c.server.state

	switch req.Message {
	case extwire.MsgAccountsCreateSuri:
		payload, err := decodeRequest[extwire.RequestAccountCreateSuri](req)
		if err != nil {
			return nil, err
		}

		address, err := state.CreateAccount(
			payload.Name, payload.PrivateKey, payload.Password,
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, address)

	case extwire.MsgAccountsEdit:
		payload, err := decodeRequest[extwire.RequestAccountEdit](req)
		if err != nil {
			return nil, err
		}

		err = state.EditAccount(payload.Address, payload.Name)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgAccountsForget:
		payload, err := decodeRequest[extwire.RequestAccountForget](req)
		if err != nil {
			return nil, err
		}

		if err := state.ForgetAccount(payload.Address); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgAccountsSelect:
		payload, err := decodeRequest[extwire.RequestAccountSelect](req)
		if err != nil {
			return nil, err
		}

		if err := state.SelectAccount(payload.Address); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgAccountsSubscribe:
		client, current, err := state.SubscribeAccounts()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgAuthorizeList:
		return extwire.NewResponse(req.ID, state.AuthURLs())

	case extwire.MsgAuthorizeApprove:
		payload, err := decodeRequest[extwire.RequestAuthorizeApprove](req)
		if err != nil {
			return nil, err
		}

		err = state.AuthorizeApprove(
			payload.ID, payload.AuthorizedAccounts,
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgAuthorizeReject:
		payload, err := decodeRequest[extwire.RequestID](req)
		if err != nil {
			return nil, err
		}

		if err := state.AuthorizeReject(payload.ID); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgAuthorizeToggle:
		payload, err := decodeRequest[extwire.RequestAuthorizedOrigin](req)
		if err != nil {
			return nil, err
		}

		urls, err := state.ToggleAuthorization(payload.Origin)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, urls)

	case extwire.MsgAuthorizeRemove:
		payload, err := decodeRequest[extwire.RequestAuthorizedOrigin](req)
		if err != nil {
			return nil, err
		}

		urls, err := state.RemoveAuthorization(payload.Origin)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, urls)

	case extwire.MsgAuthorizeRequests:
		client, current, err := state.SubscribeAuthorizeRequests()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgMetadataApprove:
		payload, err := decodeRequest[extwire.RequestID](req)
		if err != nil {
			return nil, err
		}

		if err := state.MetadataApprove(payload.ID); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgMetadataReject:
		payload, err := decodeRequest[extwire.RequestID](req)
		if err != nil {
			return nil, err
		}

		if err := state.MetadataReject(payload.ID); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgMetadataList:
		return extwire.NewResponse(req.ID, state.KnownMetadata())

	case extwire.MsgMetadataRequests:
		client, current, err := state.SubscribeMetadataRequests()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgNetworkSelect:
		payload, err := decodeRequest[extwire.RequestNetworkSelect](req)
		if err != nil {
			return nil, err
		}

		network, err := state.SelectNetwork(
			netparams.NetworkID(payload.ID),
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, network)

	case extwire.MsgNetworkSubscribePri:
		client, current, err := state.SubscribeNetwork()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	case extwire.MsgSigningApprove:
		payload, err := decodeRequest[extwire.RequestSigningApprove](req)
		if err != nil {
			return nil, err
		}

		err = state.SignApprove(
			payload.ID, payload.Password, payload.SavePassword,
		)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgSigningCancel:
		payload, err := decodeRequest[extwire.RequestID](req)
		if err != nil {
			return nil, err
		}

		if err := state.SignCancel(payload.ID); err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, true)

	case extwire.MsgSigningIsLocked:
		payload, err := decodeRequest[extwire.RequestID](req)
		if err != nil {
			return nil, err
		}

		lockState, err := state.SignIsLocked(payload.ID)
		if err != nil {
			return nil, err
		}

		return extwire.NewResponse(req.ID, lockState)

	case extwire.MsgSigningRequests:
		client, current, err := state.SubscribeSigningRequests()
		if err != nil {
			return nil, err
		}

		return streamSubscription(c, req.ID, client, current)

	default:
		return nil, fmt.Errorf("unknown message %s", req.Message)
	}
}
