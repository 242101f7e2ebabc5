package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli"

	"github.com/reef-chain/signerd"
	"github.com/reef-chain/signerd/build"
	"github.com/reef-chain/signerd/extwire"
)

// fatal exits the process printing the given error.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[signercli] %v\n", err)
	os.Exit(1)
}

// wsClient is a minimal request/response client for the daemon's trusted
// websocket channel.
type wsClient struct {
	conn    *websocket.Conn
	counter int
}

// getClient dials the daemon's extension endpoint. The returned cleanup
// closure must be called when done.
func getClient(ctx *cli.Context) (*wsClient, func()) {
	addr := url.URL{
		Scheme: "ws",
		Host:   ctx.GlobalString("rpcserver"),
		Path:   "/" + extwire.PortExtension,
	}

	conn, _, err := websocket.DefaultDialer.Dial(addr.String(), nil)
	if err != nil {
		fatal(fmt.Errorf("unable to connect to %v: %w", addr.String(),
			err))
	}

	cleanup := func() {
		_ = conn.Close()
	}

	return &wsClient{conn: conn}, cleanup
}

// call performs a single request/response round trip. Subscription messages
// for other in-flight requests are skipped.
func (c *wsClient) call(message extwire.MessageKind,
	payload interface{}) (json.RawMessage, error) {

	c.counter++
	id := fmt.Sprintf("signercli.%d", c.counter)

	req := extwire.Request{ID: id, Message: message}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Request = raw
	}

	if err := c.conn.WriteJSON(&req); err != nil {
		return nil, err
	}

	for {
		var resp extwire.Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, err
		}

		if resp.ID != id {
			continue
		}

		if resp.Error != "" {
			return nil, fmt.Errorf("%s", resp.Error)
		}

		// Subscription responses acknowledge first, the value
		// arrives as a separate message.
		if resp.Response != nil {
			return resp.Response, nil
		}
	}
}

// callSubscriptionValue subscribes with the given message and returns the
// first value published on the subscription, which by convention is the
// current state.
func (c *wsClient) callSubscriptionValue(
	message extwire.MessageKind) (json.RawMessage, error) {

	c.counter++
	id := fmt.Sprintf("signercli.%d", c.counter)

	req := extwire.Request{ID: id, Message: message}
	if err := c.conn.WriteJSON(&req); err != nil {
		return nil, err
	}

	for {
		var resp extwire.Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, err
		}

		if resp.ID != id {
			continue
		}

		if resp.Error != "" {
			return nil, fmt.Errorf("%s", resp.Error)
		}

		if resp.Subscription != nil {
			return resp.Subscription, nil
		}
	}
}

// printRespJSON pretty prints the raw response payload.
func printRespJSON(resp json.RawMessage) {
	var out interface{}
	if err := json.Unmarshal(resp, &out); err != nil {
		fmt.Println(string(resp))
		return
	}

	pretty, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		fmt.Println(string(resp))
		return
	}

	fmt.Println(string(pretty))
}

func main() {
	app := cli.NewApp()
	app.Name = "signercli"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "control plane for your Reef Signer Daemon (signerd)"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: signerd.DefaultListenAddr,
			Usage: "The host:port of the signer daemon.",
		},
	}
	app.Commands = []cli.Command{
		listAccountsCommand,
		newAccountCommand,
		editAccountCommand,
		forgetAccountCommand,
		selectAccountCommand,
		listAuthCommand,
		approveAuthCommand,
		rejectAuthCommand,
		toggleAuthCommand,
		removeAuthCommand,
		pendingRequestsCommand,
		approveSignCommand,
		cancelSignCommand,
		isLockedCommand,
		listMetadataCommand,
		approveMetadataCommand,
		rejectMetadataCommand,
		getNetworkCommand,
		setNetworkCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
