package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"farmmarket/integrations/exports"
	"farmmarket/observability/eventlog"
)

const exportPageSize = 500

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, eventsUsage())
		return 1
	}
	switch args[0] {
	case "list":
		return runEventsList(args[1:], stdout, stderr)
	case "export":
		return runEventsExport(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown events subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, eventsUsage())
		return 1
	}
}

func runEventsList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events list", stderr, eventsUsage)
	var types, order string
	var after uint64
	var limit int
	fs.StringVar(&types, "types", "", "comma separated event types")
	fs.StringVar(&order, "order", "", "only events for this order id")
	fs.Uint64Var(&after, "after", 0, "return entries after this sequence")
	fs.IntVar(&limit, "limit", 100, "maximum entries to return")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{"after": after, "limit": limit}
	if list := splitList(types); len(list) > 0 {
		params["types"] = list
	}
	if order != "" {
		if err := validateID("--order", order); err != nil {
			return printError(stderr, err.Error())
		}
		params["orderId"] = order
	}
	return invoke(stdout, stderr, "market_listEvents", params, false)
}

// runEventsExport pages through every settlement in the journal and writes
// them in the requested format.
func runEventsExport(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events export", stderr, eventsUsage)
	var format, out string
	fs.StringVar(&format, "format", "csv", "csv, jsonl or parquet")
	fs.StringVar(&out, "out", "", "output file (required for parquet)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	format = strings.ToLower(strings.TrimSpace(format))
	var encode func([]exports.Settlement) ([]byte, string, error)
	switch format {
	case "csv":
		encode = exports.SettlementsCSV
	case "jsonl":
		encode = exports.SettlementsJSONL
	case "parquet":
		encode = exports.SettlementsParquet
		if out == "" {
			return printError(stderr, "--out is required for parquet exports")
		}
	default:
		return printError(stderr, fmt.Sprintf("unsupported --format %q", format))
	}

	var entries []eventlog.Entry
	var after uint64
	for {
		params := map[string]interface{}{
			"types": exports.SettlementTypes(),
			"after": after,
			"limit": exportPageSize,
		}
		result, rpcErr, err := rpcCall("market_listEvents", params, false)
		if code := handleRPCCallError(stderr, err); code != 0 {
			return code
		}
		if code := handleRPCError(stderr, rpcErr); code != 0 {
			return code
		}
		var page []eventlog.Entry
		if err := json.Unmarshal(result, &page); err != nil {
			return printError(stderr, fmt.Sprintf("decode events: %v", err))
		}
		entries = append(entries, page...)
		if len(page) < exportPageSize {
			break
		}
		after = page[len(page)-1].Sequence
	}

	data, digest, err := encode(exports.SettlementsFromEntries(entries))
	if err != nil {
		return printError(stderr, fmt.Sprintf("encode %s: %v", format, err))
	}
	if out == "" {
		_, _ = stdout.Write(data)
		fmt.Fprintf(stderr, "sha256 %s\n", digest)
		return 0
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return printError(stderr, fmt.Sprintf("write %s: %v", out, err))
	}
	fmt.Fprintf(stdout, "wrote %s (sha256 %s)\n", out, digest)
	return 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func eventsUsage() string {
	return strings.TrimSpace(`Usage:
  farm-cli events <command> [flags]

Commands:
  list    Page through the event journal (--types --order --after --limit)
  export  Export settlements (--format csv|jsonl|parquet --out FILE)
`)
}
