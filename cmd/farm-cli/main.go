package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// rpcEndpoint defaults to localhost and can be overridden via FARM_RPC_URL or
// the --rpc flag.
var rpcEndpoint = defaultRPCEndpoint()

// rpcAuthToken is sent as a bearer token on calls that act for a caller.
var rpcAuthToken = strings.TrimSpace(os.Getenv("FARM_RPC_TOKEN"))

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	switch args[0] {
	case "keygen":
		return runKeygenCommand(args[1:], stdout, stderr)
	case "token":
		return runTokenCommand(args[1:], stdout, stderr)
	case "product":
		return runProductCommand(args[1:], stdout, stderr)
	case "order":
		return runOrderCommand(args[1:], stdout, stderr)
	case "dispute":
		return runDisputeCommand(args[1:], stdout, stderr)
	case "bank":
		return runBankCommand(args[1:], stdout, stderr)
	case "events":
		return runEventsCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  farm-cli [--rpc URL] [--token JWT] <command> [args]

Commands:
  keygen   Generate a key pair and print its farm address
  token    Mint a development bearer token for an address
  product  List, update and inspect products
  order    Place, confirm and expire orders
  dispute  Open and settle disputes
  bank     Balances, supply and the development faucet
  events   Page through or export the event journal
`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("FARM_RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8645"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				rpcAuthToken = strings.TrimSpace(args[i+1])
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			rpcAuthToken = strings.TrimSpace(strings.TrimPrefix(arg, "--token="))
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}
