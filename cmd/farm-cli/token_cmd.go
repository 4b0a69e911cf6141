package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"farmmarket/cmd/internal/secret"
	"farmmarket/crypto"
	"farmmarket/rpc"
)

const jwtSecretEnv = "FARM_RPC_JWT_SECRET"

// secretSource is swapped out in tests.
var secretSource = func() (string, error) {
	return secret.NewSource(jwtSecretEnv, "RPC JWT secret").Get()
}

var generateKey = crypto.GeneratePrivateKey

func runKeygenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 0 {
		return printError(stderr, "keygen takes no arguments")
	}
	key, err := generateKey()
	if err != nil {
		return printError(stderr, fmt.Sprintf("generate key: %v", err))
	}
	out := map[string]string{
		"address":    key.PubKey().Address().String(),
		"privateKey": key.Hex(),
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(stdout, string(encoded))
	return 0
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr, tokenUsage)
	var address, issuer, audience string
	var ttl time.Duration
	fs.StringVar(&address, "address", "", "caller address placed in the subject claim")
	fs.StringVar(&issuer, "issuer", "farmmarket", "issuer claim; must match the node's JWTIssuer")
	fs.StringVar(&audience, "audience", "", "audience claim; must match the node's JWTAudience")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, err := crypto.ParseAddress(address)
	if err != nil {
		return printError(stderr, fmt.Sprintf("invalid --address: %v", err))
	}
	if ttl <= 0 {
		return printError(stderr, "--ttl must be positive")
	}
	jwtSecret, err := secretSource()
	if err != nil {
		return printError(stderr, err.Error())
	}
	token, err := rpc.IssueToken(jwtSecret, issuer, audience, caller, ttl)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func tokenUsage() string {
	return `Usage:
  farm-cli token --address <farm1...> [--issuer farmmarket] [--audience AUD] [--ttl 1h]

The signing secret is read from FARM_RPC_JWT_SECRET or prompted for.`
}
