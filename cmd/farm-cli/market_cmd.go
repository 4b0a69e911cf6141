package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"farmmarket/crypto"
)

func runProductCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, productUsage())
		return 1
	}
	switch args[0] {
	case "list":
		return runProductList(args[1:], stdout, stderr)
	case "update-stock":
		return runProductUpdateStock(args[1:], stdout, stderr)
	case "delete":
		return runProductDelete(args[1:], stdout, stderr)
	case "get":
		return runProductGet(args[1:], stdout, stderr)
	case "ls":
		return runProductLs(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown product subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, productUsage())
		return 1
	}
}

func runProductList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("product list", stderr, productUsage)
	var name, priceStr, stockStr string
	fs.StringVar(&name, "name", "", "product name")
	fs.StringVar(&priceStr, "price", "", "unit price in base units")
	fs.StringVar(&stockStr, "stock", "", "initial stock")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(name) == "" {
		return printError(stderr, "--name is required")
	}
	price, err := parseAmount("--price", priceStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	stock, err := parseAmount("--stock", stockStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{"name": name, "unitPrice": price, "stock": stock}
	return invoke(stdout, stderr, "market_listProduct", params, true)
}

func runProductUpdateStock(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("product update-stock", stderr, productUsage)
	var id, stockStr string
	fs.StringVar(&id, "id", "", "product id")
	fs.StringVar(&stockStr, "stock", "", "new stock level")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateID("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	stock, err := parseAmount("--stock", stockStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "market_updateStock", map[string]interface{}{"productId": id, "stock": stock}, true)
}

func runProductDelete(args []string, stdout, stderr io.Writer) int {
	id, code := parseSingleID("product delete", "id", args, stderr, productUsage)
	if code != 0 {
		return code
	}
	return invoke(stdout, stderr, "market_deleteProduct", map[string]interface{}{"productId": id}, true)
}

func runProductGet(args []string, stdout, stderr io.Writer) int {
	id, code := parseSingleID("product get", "id", args, stderr, productUsage)
	if code != 0 {
		return code
	}
	return invoke(stdout, stderr, "market_getProduct", map[string]interface{}{"productId": id}, false)
}

func runProductLs(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("product ls", stderr, productUsage)
	var farmer string
	fs.StringVar(&farmer, "farmer", "", "only list this farmer's products")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{}
	if farmer != "" {
		if err := validateAddress("--farmer", farmer); err != nil {
			return printError(stderr, err.Error())
		}
		params["farmer"] = farmer
	}
	return invoke(stdout, stderr, "market_listProducts", params, false)
}

func runOrderCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, orderUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runOrderCreate(args[1:], stdout, stderr)
	case "confirm":
		return runOrderAction("order confirm", "market_confirmDelivery", args[1:], stdout, stderr)
	case "expire":
		return runOrderAction("order expire", "market_processExpiredOrder", args[1:], stdout, stderr)
	case "get":
		id, code := parseSingleID("order get", "id", args[1:], stderr, orderUsage)
		if code != 0 {
			return code
		}
		return invoke(stdout, stderr, "market_getOrder", map[string]interface{}{"orderId": id}, false)
	case "ls":
		return runOrderLs(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown order subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, orderUsage())
		return 1
	}
}

func runOrderCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order create", stderr, orderUsage)
	var product, qtyStr, hoursStr, paymentStr string
	fs.StringVar(&product, "product", "", "product id")
	fs.StringVar(&qtyStr, "qty", "", "quantity to buy")
	fs.StringVar(&hoursStr, "deadline-hours", "", "hours until the order may be expired")
	fs.StringVar(&paymentStr, "payment", "", "amount to lock in escrow")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateID("--product", product); err != nil {
		return printError(stderr, err.Error())
	}
	qty, err := parseAmount("--qty", qtyStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	hours, err := parseAmount("--deadline-hours", hoursStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	payment, err := parseAmount("--payment", paymentStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"productId":     product,
		"quantity":      qty,
		"deadlineHours": hours,
		"payment":       payment,
	}
	return invoke(stdout, stderr, "market_createOrder", params, true)
}

func runOrderAction(name, method string, args []string, stdout, stderr io.Writer) int {
	id, code := parseSingleID(name, "id", args, stderr, orderUsage)
	if code != 0 {
		return code
	}
	return invoke(stdout, stderr, method, map[string]interface{}{"orderId": id}, true)
}

func runOrderLs(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("order ls", stderr, orderUsage)
	var buyer, farmer, status string
	fs.StringVar(&buyer, "buyer", "", "filter by buyer address")
	fs.StringVar(&farmer, "farmer", "", "filter by farmer address")
	fs.StringVar(&status, "status", "", "filter by status (escrowed or disputed)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{}
	if buyer != "" {
		if err := validateAddress("--buyer", buyer); err != nil {
			return printError(stderr, err.Error())
		}
		params["buyer"] = buyer
	}
	if farmer != "" {
		if err := validateAddress("--farmer", farmer); err != nil {
			return printError(stderr, err.Error())
		}
		params["farmer"] = farmer
	}
	if status != "" {
		params["status"] = status
	}
	return invoke(stdout, stderr, "market_listOrders", params, false)
}

func runDisputeCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, disputeUsage())
		return 1
	}
	switch args[0] {
	case "open":
		id, code := parseSingleID("dispute open", "order", args[1:], stderr, disputeUsage)
		if code != 0 {
			return code
		}
		return invoke(stdout, stderr, "market_createDispute", map[string]interface{}{"orderId": id}, true)
	case "propose":
		return runDisputePropose(args[1:], stdout, stderr)
	case "accept":
		return runDisputeAccept(args[1:], stdout, stderr)
	case "vote":
		return runDisputeVote(args[1:], stdout, stderr)
	case "get":
		id, code := parseSingleID("dispute get", "id", args[1:], stderr, disputeUsage)
		if code != 0 {
			return code
		}
		return invoke(stdout, stderr, "market_getDispute", map[string]interface{}{"disputeId": id}, false)
	case "ls":
		fs := newFlagSet("dispute ls", stderr, disputeUsage)
		var order string
		fs.StringVar(&order, "order", "", "only disputes for this order id")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		params := map[string]interface{}{}
		if order != "" {
			if err := validateID("--order", order); err != nil {
				return printError(stderr, err.Error())
			}
			params["orderId"] = order
		}
		return invoke(stdout, stderr, "market_listDisputes", params, false)
	default:
		fmt.Fprintf(stderr, "Unknown dispute subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, disputeUsage())
		return 1
	}
}

func runDisputePropose(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dispute propose", stderr, disputeUsage)
	var id, farmerStr, buyerStr string
	fs.StringVar(&id, "id", "", "dispute id")
	fs.StringVar(&farmerStr, "farmer-pct", "", "farmer percentage (0-100)")
	fs.StringVar(&buyerStr, "buyer-pct", "", "buyer percentage (0-100)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateID("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	farmerPct, err := parsePercentage("--farmer-pct", farmerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	buyerPct, err := parsePercentage("--buyer-pct", buyerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"disputeId":        id,
		"farmerPercentage": farmerPct,
		"buyerPercentage":  buyerPct,
	}
	return invoke(stdout, stderr, "market_proposeCompensation", params, true)
}

func runDisputeAccept(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dispute accept", stderr, disputeUsage)
	var id, order string
	fs.StringVar(&id, "id", "", "dispute id")
	fs.StringVar(&order, "order", "", "order id the dispute covers")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateID("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateID("--order", order); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "market_acceptCompensation", map[string]interface{}{"disputeId": id, "orderId": order}, true)
}

func runDisputeVote(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("dispute vote", stderr, disputeUsage)
	var id string
	var against bool
	fs.StringVar(&id, "id", "", "dispute id")
	fs.BoolVar(&against, "against", false, "vote against instead of for")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateID("--id", id); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(stdout, stderr, "market_voteOnDispute", map[string]interface{}{"disputeId": id, "voteFor": !against}, false)
}

func parseSingleID(name, flagName string, args []string, stderr io.Writer, usage func() string) (string, int) {
	fs := newFlagSet(name, stderr, usage)
	var id string
	fs.StringVar(&id, flagName, "", "object id (64 hex characters)")
	if err := fs.Parse(args); err != nil {
		return "", 1
	}
	if err := validateID("--"+flagName, id); err != nil {
		return "", printError(stderr, err.Error())
	}
	return id, 0
}

func validateID(field, value string) error {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return fmt.Errorf("%s is required", field)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%s must be 32 bytes of hex", field)
	}
	return nil
}

func validateAddress(field, value string) error {
	if _, err := crypto.ParseAddress(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid %s: %v", field, err)
	}
	return nil
}

// parseAmount accepts base-10 integers with optional underscores.
func parseAmount(field, value string) (uint64, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", field, value)
	}
	return v, nil
}

func parsePercentage(field, value string) (uint8, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	v, err := strconv.ParseUint(trimmed, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", field, value)
	}
	return uint8(v), nil
}

func productUsage() string {
	return strings.TrimSpace(`Usage:
  farm-cli product <command> [flags]

Commands:
  list          List a new product (--name --price --stock)
  update-stock  Set a product's stock (--id --stock)
  delete        Remove a product (--id)
  get           Show a product (--id)
  ls            List products (--farmer)
`)
}

func orderUsage() string {
	return strings.TrimSpace(`Usage:
  farm-cli order <command> [flags]

Commands:
  create   Place an escrowed order (--product --qty --deadline-hours --payment)
  confirm  Confirm delivery and pay the farmer (--id)
  expire   Refund an order past its deadline (--id)
  get      Show an order and its escrowed value (--id)
  ls       List open orders (--buyer --farmer --status)
`)
}

func disputeUsage() string {
	return strings.TrimSpace(`Usage:
  farm-cli dispute <command> [flags]

Commands:
  open     Open a dispute on an order (--order)
  propose  Propose a split (--id --farmer-pct --buyer-pct)
  accept   Accept the proposed split (--id --order)
  vote     Cast an advisory vote (--id [--against])
  get      Show a dispute (--id)
  ls       List open disputes (--order)
`)
}
