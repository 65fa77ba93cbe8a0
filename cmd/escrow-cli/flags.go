package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/native/escrow"
)

func newFlagSet(name string, stderr io.Writer, usage func() string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage())
	}
	return fs
}

// parseFlags parses args and rejects positional leftovers.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func validateAddress(flagName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", flagName)
	}
	if _, err := crypto.ParseAddress(value); err != nil {
		return fmt.Errorf("--%s: %v", flagName, err)
	}
	return nil
}

func validateID(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--id is required")
	}
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return fmt.Errorf("--id must be a 0x-prefixed 32-byte hex string")
	}
	if _, err := escrow.ParseIdentity(value); err != nil {
		return fmt.Errorf("--id must be a 0x-prefixed 32-byte hex string")
	}
	return nil
}

func validateNonce(value string) (uint64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("--nonce is required")
	}
	nonce, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || nonce == 0 {
		return 0, fmt.Errorf("--nonce must be a positive integer")
	}
	return nonce, nil
}

// normalizeAmount expands shorthand like 100e18 or 1.5e6 into a base-10
// integer that fits in 256 bits.
func normalizeAmount(value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("--amount is required")
	}
	var exponent int
	base := trimmed
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		expValue, err := strconv.ParseInt(strings.TrimSpace(trimmed[idx+1:]), 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid scientific notation in --amount")
		}
		exponent = int(expValue)
	}
	base = strings.TrimPrefix(strings.TrimSpace(base), "+")
	if strings.HasPrefix(base, "-") {
		return "", fmt.Errorf("--amount must not be negative")
	}
	parts := strings.Split(base, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid amount format")
	}
	fractional := ""
	if len(parts) == 2 {
		fractional = parts[1]
	}
	digits := parts[0] + fractional
	if digits == "" || !isDigits(digits) {
		return "", fmt.Errorf("invalid amount format")
	}
	fracLen := len(fractional)
	for fracLen > 0 && len(digits) > 1 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		fracLen--
	}
	shift := exponent - fracLen
	if shift < 0 {
		return "", fmt.Errorf("--amount must be an integer")
	}
	digits += strings.Repeat("0", shift)
	amount, err := uint256.FromDecimal(strings.TrimLeft(digits, "0") + zeroIfEmpty(digits))
	if err != nil {
		return "", fmt.Errorf("--amount exceeds 256 bits")
	}
	return amount.Dec(), nil
}

func zeroIfEmpty(digits string) string {
	if strings.TrimLeft(digits, "0") == "" {
		return "0"
	}
	return ""
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
