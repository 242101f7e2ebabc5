package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli"

	"github.com/reef-chain/signerd/extwire"
)

var listAccountsCommand = cli.Command{
	Name:     "listaccounts",
	Category: "Accounts",
	Usage:    "List all managed accounts.",
	Action:   listAccounts,
}

func listAccounts(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.callSubscriptionValue(
		extwire.MsgAccountsSubscribe,
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var newAccountCommand = cli.Command{
	Name:     "newaccount",
	Category: "Accounts",
	Usage:    "Import a new account from a raw private key.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "name",
			Usage: "the display name of the new account",
		},
		cli.StringFlag{
			Name:  "private_key",
			Usage: "the hex encoded ed25519 seed",
		},
		cli.StringFlag{
			Name:  "password",
			Usage: "the password the key is encrypted under",
		},
	},
	Action: newAccount,
}

func newAccount(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAccountsCreateSuri,
		&extwire.RequestAccountCreateSuri{
			Name:       ctx.String("name"),
			PrivateKey: ctx.String("private_key"),
			Password:   ctx.String("password"),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var editAccountCommand = cli.Command{
	Name:      "editaccount",
	Category:  "Accounts",
	Usage:     "Rename an account.",
	ArgsUsage: "address name",
	Action:    editAccount,
}

func editAccount(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "editaccount")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAccountsEdit, &extwire.RequestAccountEdit{
			Address: ctx.Args().Get(0),
			Name:    ctx.Args().Get(1),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var forgetAccountCommand = cli.Command{
	Name:      "forgetaccount",
	Category:  "Accounts",
	Usage:     "Remove an account and its encrypted backup.",
	ArgsUsage: "address",
	Action:    forgetAccount,
}

func forgetAccount(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "forgetaccount")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAccountsForget, &extwire.RequestAccountForget{
			Address: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var selectAccountCommand = cli.Command{
	Name:      "selectaccount",
	Category:  "Accounts",
	Usage:     "Mark an account as the selected one.",
	ArgsUsage: "address",
	Action:    selectAccount,
}

func selectAccount(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "selectaccount")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAccountsSelect, &extwire.RequestAccountSelect{
			Address: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var listAuthCommand = cli.Command{
	Name:     "listauth",
	Category: "Authorization",
	Usage:    "List all origins with a persisted authorization decision.",
	Action:   listAuth,
}

func listAuth(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(extwire.MsgAuthorizeList, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var approveAuthCommand = cli.Command{
	Name:      "approveauth",
	Category:  "Authorization",
	Usage:     "Approve a pending authorization request.",
	ArgsUsage: "request_id",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name: "account",
			Usage: "restrict the origin to this address; may " +
				"be specified multiple times, all accounts " +
				"when omitted",
		},
	},
	Action: approveAuth,
}

func approveAuth(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "approveauth")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAuthorizeApprove, &extwire.RequestAuthorizeApprove{
			ID:                 ctx.Args().First(),
			AuthorizedAccounts: ctx.StringSlice("account"),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var rejectAuthCommand = cli.Command{
	Name:      "rejectauth",
	Category:  "Authorization",
	Usage:     "Reject a pending authorization request.",
	ArgsUsage: "request_id",
	Action:    rejectAuth,
}

func rejectAuth(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "rejectauth")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAuthorizeReject, &extwire.RequestID{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var toggleAuthCommand = cli.Command{
	Name:      "toggleauth",
	Category:  "Authorization",
	Usage:     "Flip the allow/deny decision of an origin.",
	ArgsUsage: "origin",
	Action:    toggleAuth,
}

func toggleAuth(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "toggleauth")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAuthorizeToggle, &extwire.RequestAuthorizedOrigin{
			Origin: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var removeAuthCommand = cli.Command{
	Name:      "removeauth",
	Category:  "Authorization",
	Usage:     "Forget the persisted decision of an origin.",
	ArgsUsage: "origin",
	Action:    removeAuth,
}

func removeAuth(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "removeauth")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgAuthorizeRemove, &extwire.RequestAuthorizedOrigin{
			Origin: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var pendingRequestsCommand = cli.Command{
	Name:     "pending",
	Category: "Requests",
	Usage:    "Show all requests awaiting a decision.",
	Action:   pendingRequests,
}

func pendingRequests(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	pending := make(map[string]json.RawMessage)
	for kind, message := range map[string]extwire.MessageKind{
		"authorize": extwire.MsgAuthorizeRequests,
		"signing":   extwire.MsgSigningRequests,
		"metadata":  extwire.MsgMetadataRequests,
	} {
		resp, err := client.callSubscriptionValue(message)
		if err != nil {
			return err
		}
		pending[kind] = resp
	}

	out, err := json.MarshalIndent(pending, "", "    ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}

var approveSignCommand = cli.Command{
	Name:      "approvesign",
	Category:  "Signing",
	Usage:     "Approve a pending signing request.",
	ArgsUsage: "request_id",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "password",
			Usage: "the password of the signing account",
		},
		cli.BoolFlag{
			Name: "save_password",
			Usage: "keep the account unlocked for the " +
				"configured timeout",
		},
	},
	Action: approveSign,
}

func approveSign(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "approvesign")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgSigningApprove, &extwire.RequestSigningApprove{
			ID:           ctx.Args().First(),
			Password:     ctx.String("password"),
			SavePassword: ctx.Bool("save_password"),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var cancelSignCommand = cli.Command{
	Name:      "cancelsign",
	Category:  "Signing",
	Usage:     "Cancel a pending signing request.",
	ArgsUsage: "request_id",
	Action:    cancelSign,
}

func cancelSign(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "cancelsign")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgSigningCancel, &extwire.RequestID{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var isLockedCommand = cli.Command{
	Name:      "islocked",
	Category:  "Signing",
	Usage:     "Probe the lock state of a pending request's account.",
	ArgsUsage: "request_id",
	Action:    isLocked,
}

func isLocked(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "islocked")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgSigningIsLocked, &extwire.RequestID{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var listMetadataCommand = cli.Command{
	Name:     "listmetadata",
	Category: "Metadata",
	Usage:    "List all registered chain metadata definitions.",
	Action:   listMetadata,
}

func listMetadata(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(extwire.MsgMetadataList, nil)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var approveMetadataCommand = cli.Command{
	Name:      "approvemetadata",
	Category:  "Metadata",
	Usage:     "Approve a pending metadata request.",
	ArgsUsage: "request_id",
	Action:    approveMetadata,
}

func approveMetadata(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "approvemetadata")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgMetadataApprove, &extwire.RequestID{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var rejectMetadataCommand = cli.Command{
	Name:      "rejectmetadata",
	Category:  "Metadata",
	Usage:     "Reject a pending metadata request.",
	ArgsUsage: "request_id",
	Action:    rejectMetadata,
}

func rejectMetadata(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "rejectmetadata")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgMetadataReject, &extwire.RequestID{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var getNetworkCommand = cli.Command{
	Name:     "getnetwork",
	Category: "Network",
	Usage:    "Show the currently selected Reef network.",
	Action:   getNetwork,
}

func getNetwork(ctx *cli.Context) error {
	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.callSubscriptionValue(
		extwire.MsgNetworkSubscribePri,
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}

var setNetworkCommand = cli.Command{
	Name:      "setnetwork",
	Category:  "Network",
	Usage:     "Switch the daemon to another Reef network.",
	ArgsUsage: "network_id",
	Action:    setNetwork,
}

func setNetwork(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "setnetwork")
	}

	client, cleanup := getClient(ctx)
	defer cleanup()

	resp, err := client.call(
		extwire.MsgNetworkSelect, &extwire.RequestNetworkSelect{
			ID: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
