package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/punnkam/private-lending/crypto"
	"github.com/punnkam/private-lending/rpc"
)

const envJWTSecret = "ESCROW_JWT_SECRET"

func tokenUsage() string {
	return strings.TrimSpace(`Usage:
  escrow-cli token --subject ADDRESS [--scope admin] [--ttl 1h] [--issuer NAME]

The HMAC secret is read from ESCROW_JWT_SECRET.
`)
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr, tokenUsage)
	var subject, scope, issuer string
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	fs.StringVar(&subject, "subject", "", "caller address the token speaks for")
	fs.StringVar(&scope, "scope", "", "space separated scopes, e.g. admin")
	fs.StringVar(&issuer, "issuer", "", "optional iss claim")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateAddress("subject", subject); err != nil {
		return printError(stderr, err.Error())
	}
	secret := strings.TrimSpace(os.Getenv(envJWTSecret))
	if secret == "" {
		return printError(stderr, envJWTSecret+" must be set")
	}
	token, err := rpc.IssueToken(secret, subject, issuer, strings.Fields(scope), *ttl)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runGenerateAddress(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintf(stdout, "address: %s\n", key.PubKey().Address().String())
	fmt.Fprintf(stdout, "private key: %s\n", hex.EncodeToString(key.Bytes()))
	return 0
}
