package main

import (
	"fmt"
	"io"
	"strings"
)

func runClaimsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, claimsUsage())
		return 1
	}
	switch args[0] {
	case "mint":
		return runClaimsWithTarget("claims mint", "claims_mint", args[1:], stdout, stderr)
	case "transfer":
		return runClaimsWithTarget("claims transfer", "claims_transfer", args[1:], stdout, stderr)
	case "burn":
		return runEscrowByID("claims burn", "claims_burn", true, args[1:], stdout, stderr)
	case "owner":
		return runEscrowByID("claims owner", "claims_ownerOf", false, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown claims subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, claimsUsage())
		return 1
	}
}

func claimsUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli claims <command> [flags]

Commands:
  mint      Create the claim for an escrow id (admin scope)
  transfer  Hand the caller's claim to another holder
  burn      Destroy the caller's claim
  owner     Show the current claim holder
`)
}

func runClaimsWithTarget(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, claimsUsage)
	var id, to string
	fs.StringVar(&id, "id", "", "escrow identifier")
	fs.StringVar(&to, "to", "", "recipient address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateID(id); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("to", to); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, map[string]interface{}{"id": id, "to": to}, true, stdout, stderr)
}
