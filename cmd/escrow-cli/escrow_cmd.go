package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
	switch args[0] {
	case "issue":
		return runEscrowIssue(args[1:], stdout, stderr)
	case "settle":
		return runEscrowByID("escrow settle", "escrow_settle", true, args[1:], stdout, stderr)
	case "get":
		return runEscrowByID("escrow get", "escrow_get", false, args[1:], stdout, stderr)
	case "status":
		return runEscrowByID("escrow status", "escrow_status", false, args[1:], stdout, stderr)
	case "is-settled":
		return runEscrowByID("escrow is-settled", "escrow_isSettled", false, args[1:], stdout, stderr)
	case "identity":
		return runEscrowIdentity(args[1:], stdout, stderr)
	case "events":
		return runEscrowEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func escrowUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli escrow <command> [flags]

Commands:
  issue       Lock a principal against an order (caller is the depositor)
  settle      Release a principal to the current claim owner
  get         Fetch the escrow record by id
  status      Report unknown, pending or settled
  is-settled  Report whether an escrow has been settled
  identity    Compute the id of an order without issuing it
  events      Page through the ledger event log
`)
}

type orderFlags struct {
	nonce        string
	issuer       string
	counterparty string
	terms        string
	expiry       string
}

func (o *orderFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.nonce, "nonce", "", "non-zero order nonce")
	fs.StringVar(&o.issuer, "issuer", "", "order issuer address (defaults to the token subject)")
	fs.StringVar(&o.counterparty, "counterparty", "", "order counterparty address")
	fs.StringVar(&o.terms, "terms", "", "opaque order terms as 0x-prefixed hex")
	fs.StringVar(&o.expiry, "expiry", "0", "order expiry as unix seconds")
}

func (o *orderFlags) params() (map[string]interface{}, error) {
	nonce, err := validateNonce(o.nonce)
	if err != nil {
		return nil, err
	}
	if err := validateAddress("counterparty", o.counterparty); err != nil {
		return nil, err
	}
	expiry, err := strconv.ParseUint(strings.TrimSpace(o.expiry), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("--expiry must be unix seconds")
	}
	order := map[string]interface{}{
		"nonce":        nonce,
		"counterparty": o.counterparty,
		"expiry":       expiry,
	}
	if strings.TrimSpace(o.issuer) != "" {
		if err := validateAddress("issuer", o.issuer); err != nil {
			return nil, err
		}
		order["issuer"] = o.issuer
	}
	if strings.TrimSpace(o.terms) != "" {
		if !strings.HasPrefix(o.terms, "0x") {
			return nil, fmt.Errorf("--terms must be 0x-prefixed hex")
		}
		order["terms"] = o.terms
	}
	return order, nil
}

func runEscrowIssue(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow issue", stderr, escrowUsage)
	var asset, amount string
	var order orderFlags
	fs.StringVar(&asset, "asset", "", "asset address")
	fs.StringVar(&amount, "amount", "", "principal amount (supports 100e18 shorthand)")
	order.register(fs)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("asset", asset); err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	orderParams, err := order.params()
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"asset":  asset,
		"amount": normalized,
		"order":  orderParams,
	}
	return invoke("escrow_issue", params, true, stdout, stderr)
}

func runEscrowByID(name, method string, write bool, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, escrowUsage)
	var id string
	fs.StringVar(&id, "id", "", "escrow identifier")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateID(id); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, map[string]interface{}{"id": id}, write, stdout, stderr)
}

func runEscrowIdentity(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow identity", stderr, escrowUsage)
	var order orderFlags
	order.register(fs)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	orderParams, err := order.params()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("escrow_identity", map[string]interface{}{"order": orderParams}, false, stdout, stderr)
}

func runEscrowEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("escrow events", stderr, escrowUsage)
	after := fs.Int64("after", 0, "return events with a sequence above this cursor")
	limit := fs.Int("limit", 0, "maximum number of events (server default when zero)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *after < 0 || *limit < 0 {
		return printError(stderr, "--after and --limit must not be negative")
	}
	params := map[string]interface{}{"after": *after}
	if *limit > 0 {
		params["limit"] = *limit
	}
	return invoke("escrow_listEvents", params, false, stdout, stderr)
}
