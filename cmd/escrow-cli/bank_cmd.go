package main

import (
	"fmt"
	"io"
	"strings"
)

func runBankCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, bankUsage())
		return 1
	}
	switch args[0] {
	case "mint":
		return runBankMove("bank mint", "bank_mint", "to", args[1:], stdout, stderr)
	case "transfer":
		return runBankMove("bank transfer", "bank_transfer", "to", args[1:], stdout, stderr)
	case "approve":
		return runBankMove("bank approve", "bank_approve", "spender", args[1:], stdout, stderr)
	case "balance":
		return runBankBalance(args[1:], stdout, stderr)
	case "allowance":
		return runBankAllowance(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown bank subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, bankUsage())
		return 1
	}
}

func bankUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli bank <command> [flags]

Commands:
  mint       Credit an account (admin scope)
  transfer   Move funds from the caller
  approve    Let a spender, usually the escrow custody, pull from the caller
  balance    Query a balance
  allowance  Query an allowance
`)
}

// runBankMove handles the write calls that take asset, a counterpart address
// and an amount.
func runBankMove(name, method, target string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, bankUsage)
	var asset, to, amount string
	fs.StringVar(&asset, "asset", "", "asset address")
	fs.StringVar(&to, target, "", target+" address")
	fs.StringVar(&amount, "amount", "", "amount (supports 100e18 shorthand)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("asset", asset); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress(target, to); err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"asset":  asset,
		target:   to,
		"amount": normalized,
	}
	return invoke(method, params, true, stdout, stderr)
}

func runBankBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("bank balance", stderr, bankUsage)
	var asset, owner string
	fs.StringVar(&asset, "asset", "", "asset address")
	fs.StringVar(&owner, "owner", "", "account address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("asset", asset); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("owner", owner); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("bank_balance", map[string]interface{}{"asset": asset, "owner": owner}, false, stdout, stderr)
}

func runBankAllowance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("bank allowance", stderr, bankUsage)
	var asset, owner, spender string
	fs.StringVar(&asset, "asset", "", "asset address")
	fs.StringVar(&owner, "owner", "", "account address")
	fs.StringVar(&spender, "spender", "", "spender address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	for _, check := range []struct{ name, value string }{{"asset", asset}, {"owner", owner}, {"spender", spender}} {
		if err := validateAddress(check.name, check.value); err != nil {
			return printError(stderr, err.Error())
		}
	}
	params := map[string]interface{}{"asset": asset, "owner": owner, "spender": spender}
	return invoke("bank_allowance", params, false, stdout, stderr)
}
