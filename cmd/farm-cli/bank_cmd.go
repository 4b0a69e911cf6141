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
	case "balance":
		if len(args) != 2 {
			return printError(stderr, "usage: farm-cli bank balance <address>")
		}
		if err := validateAddress("address", args[1]); err != nil {
			return printError(stderr, err.Error())
		}
		return invoke(stdout, stderr, "bank_balance", map[string]interface{}{"address": args[1]}, false)
	case "supply":
		return invoke(stdout, stderr, "bank_totalSupply", nil, false)
	case "faucet":
		fs := newFlagSet("bank faucet", stderr, bankUsage)
		var to, amountStr string
		fs.StringVar(&to, "to", "", "recipient address")
		fs.StringVar(&amountStr, "amount", "", "amount to mint")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if err := validateAddress("--to", to); err != nil {
			return printError(stderr, err.Error())
		}
		amount, err := parseAmount("--amount", amountStr)
		if err != nil {
			return printError(stderr, err.Error())
		}
		return invoke(stdout, stderr, "bank_faucet", map[string]interface{}{"address": to, "amount": amount}, false)
	default:
		fmt.Fprintf(stderr, "Unknown bank subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, bankUsage())
		return 1
	}
}

func bankUsage() string {
	return strings.TrimSpace(`Usage:
  farm-cli bank <command> [flags]

Commands:
  balance <address>  Show an account balance
  supply             Show total minted supply
  faucet             Mint development tokens (--to --amount)
`)
}
