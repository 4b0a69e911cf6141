package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"farmmarket/crypto"
)

var (
	testID      = strings.Repeat("ab", 32)
	testAddress = crypto.FormatAddress([20]byte{0xB0})
)

type recordedCall struct {
	method      string
	params      map[string]interface{}
	requireAuth bool
}

// stubRPC replaces rpcCall for the duration of the test. respond may be nil
// for calls that only need an empty object result.
func stubRPC(t *testing.T, respond func(call recordedCall) (json.RawMessage, *rpcError, error)) *[]recordedCall {
	t.Helper()
	var calls []recordedCall
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		call := recordedCall{method: method, requireAuth: requireAuth}
		if params != nil {
			raw, err := json.Marshal(params)
			if err != nil {
				t.Fatalf("marshal params: %v", err)
			}
			if err := json.Unmarshal(raw, &call.params); err != nil {
				t.Fatalf("unmarshal params: %v", err)
			}
		}
		calls = append(calls, call)
		if respond == nil {
			return json.RawMessage(`{"ok":true}`), nil, nil
		}
		return respond(call)
	}
	t.Cleanup(func() { rpcCall = original })
	return &calls
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestArgValidationNeverCallsRPC(t *testing.T) {
	stubRPC(t, func(call recordedCall) (json.RawMessage, *rpcError, error) {
		t.Fatalf("unexpected RPC call for method %s", call.method)
		return nil, nil, nil
	})

	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no command", args: nil, wantErr: "Usage:"},
		{name: "unknown command", args: []string{"barn"}, wantErr: "Unknown command: barn"},
		{name: "product missing name", args: []string{"product", "list", "--price", "1", "--stock", "1"}, wantErr: "Error: --name is required\n"},
		{name: "product bad price", args: []string{"product", "list", "--name", "maize", "--price", "1.5", "--stock", "1"}, wantErr: "Error: invalid --price: 1.5\n"},
		{name: "order short id", args: []string{"order", "confirm", "--id", "0x1234"}, wantErr: "Error: --id must be 32 bytes of hex\n"},
		{name: "order create missing payment", args: []string{"order", "create", "--product", testID, "--qty", "1", "--deadline-hours", "24"}, wantErr: "Error: --payment is required\n"},
		{name: "dispute pct overflow", args: []string{"dispute", "propose", "--id", testID, "--farmer-pct", "300", "--buyer-pct", "0"}, wantErr: "Error: invalid --farmer-pct: 300\n"},
		{name: "bank bad address", args: []string{"bank", "balance", "nhb1qqqq"}, wantErr: "Error: invalid address"},
		{name: "export bad format", args: []string{"events", "export", "--format", "xml"}, wantErr: "Error: unsupported --format \"xml\"\n"},
		{name: "parquet needs out", args: []string{"events", "export", "--format", "parquet"}, wantErr: "Error: --out is required for parquet exports\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			if code := run(tc.args, stdout, stderr); code != 1 {
				t.Fatalf("unexpected exit code %d", code)
			}
			if stdout.Len() != 0 {
				t.Fatalf("expected empty stdout, got %q", stdout.String())
			}
			if !strings.Contains(stderr.String(), tc.wantErr) {
				t.Fatalf("stderr %q does not contain %q", stderr.String(), tc.wantErr)
			}
		})
	}
}

func TestCommandsMapToRPCMethods(t *testing.T) {
	cases := []struct {
		args       []string
		method     string
		auth       bool
		wantParams map[string]interface{}
	}{
		{
			args:       []string{"product", "list", "--name", "maize", "--price", "50_000_000", "--stock", "1000"},
			method:     "market_listProduct",
			auth:       true,
			wantParams: map[string]interface{}{"name": "maize", "unitPrice": float64(50_000_000), "stock": float64(1000)},
		},
		{
			args:       []string{"order", "create", "--product", testID, "--qty", "10", "--deadline-hours", "24", "--payment", "500000000"},
			method:     "market_createOrder",
			auth:       true,
			wantParams: map[string]interface{}{"productId": testID, "quantity": float64(10), "deadlineHours": float64(24), "payment": float64(500_000_000)},
		},
		{
			args:       []string{"order", "expire", "--id", testID},
			method:     "market_processExpiredOrder",
			auth:       true,
			wantParams: map[string]interface{}{"orderId": testID},
		},
		{
			args:       []string{"dispute", "accept", "--id", testID, "--order", testID},
			method:     "market_acceptCompensation",
			auth:       true,
			wantParams: map[string]interface{}{"disputeId": testID, "orderId": testID},
		},
		{
			args:       []string{"dispute", "vote", "--id", testID, "--against"},
			method:     "market_voteOnDispute",
			auth:       false,
			wantParams: map[string]interface{}{"disputeId": testID, "voteFor": false},
		},
		{
			args:       []string{"bank", "faucet", "--to", testAddress, "--amount", "1000"},
			method:     "bank_faucet",
			auth:       false,
			wantParams: map[string]interface{}{"address": testAddress, "amount": float64(1000)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			calls := stubRPC(t, nil)
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			if code := run(tc.args, stdout, stderr); code != 0 {
				t.Fatalf("unexpected exit code %d: %s", code, stderr.String())
			}
			if len(*calls) != 1 {
				t.Fatalf("expected one call, got %d", len(*calls))
			}
			call := (*calls)[0]
			if call.method != tc.method || call.requireAuth != tc.auth {
				t.Fatalf("unexpected call %+v", call)
			}
			for key, want := range tc.wantParams {
				if got := call.params[key]; got != want {
					t.Fatalf("param %s: got %v (%T), want %v", key, got, got, want)
				}
			}
			if !strings.Contains(stdout.String(), `"ok": true`) {
				t.Fatalf("expected pretty printed result, got %q", stdout.String())
			}
		})
	}
}

func TestRPCErrorIsReported(t *testing.T) {
	stubRPC(t, func(recordedCall) (json.RawMessage, *rpcError, error) {
		return nil, &rpcError{Code: -32023, Message: "forbidden", Data: json.RawMessage(`"market: caller is not the order's buyer"`)}, nil
	})
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if code := run([]string{"order", "confirm", "--id", testID}, stdout, stderr); code != 1 {
		t.Fatalf("expected failure exit code, got %d", code)
	}
	want := "RPC error -32023: forbidden (market: caller is not the order's buyer)\n"
	if stderr.String() != want {
		t.Fatalf("unexpected stderr: got %q, want %q", stderr.String(), want)
	}
}

func TestAuthenticatedCallWithoutTokenFails(t *testing.T) {
	originalToken := rpcAuthToken
	rpcAuthToken = ""
	defer func() { rpcAuthToken = originalToken }()

	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("request must not be sent without a token")
		return nil, nil
	})}
	defer func() { http.DefaultClient = originalClient }()

	stderr := &bytes.Buffer{}
	if code := run([]string{"order", "confirm", "--id", testID}, io.Discard, stderr); code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr.String(), "requires FARM_RPC_TOKEN") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestGlobalFlagsSetEndpointAndToken(t *testing.T) {
	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	defer func() { rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken }()

	var seen *http.Request
	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)),
			Header:     make(http.Header),
		}, nil
	})}
	defer func() { http.DefaultClient = originalClient }()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	args := []string{"--rpc", "http://node.test:9000", "--token=abc", "order", "confirm", "--id", testID}
	if code := run(args, stdout, stderr); code != 0 {
		t.Fatalf("unexpected exit code %d: %s", code, stderr.String())
	}
	if seen == nil || seen.URL.String() != "http://node.test:9000" {
		t.Fatalf("unexpected endpoint %v", seen)
	}
	if got := seen.Header.Get("Authorization"); got != "Bearer abc" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	original := secretSource
	secretSource = func() (string, error) { return "cli-secret", nil }
	defer func() { secretSource = original }()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if code := run([]string{"token", "--address", testAddress, "--audience", "farm-rpc"}, stdout, stderr); code != 0 {
		t.Fatalf("unexpected exit code %d: %s", code, stderr.String())
	}
	token := strings.TrimSpace(stdout.String())
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a JWT, got %q", token)
	}

	secretSource = func() (string, error) { return "", errors.New("FARM_RPC_JWT_SECRET required") }
	stderr.Reset()
	if code := run([]string{"token", "--address", testAddress}, io.Discard, stderr); code != 1 {
		t.Fatalf("expected failure without secret")
	}
}

func TestKeygenPrintsFarmAddress(t *testing.T) {
	stdout := &bytes.Buffer{}
	if code := run([]string{"keygen"}, stdout, io.Discard); code != 0 {
		t.Fatalf("keygen failed")
	}
	var out map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decode keygen output: %v", err)
	}
	if _, err := crypto.ParseAddress(out["address"]); err != nil {
		t.Fatalf("keygen address must parse: %v", err)
	}
	if len(out["privateKey"]) != 64 {
		t.Fatalf("unexpected private key length %d", len(out["privateKey"]))
	}
}

func TestEventsExportPagesAndWritesFile(t *testing.T) {
	page := func(start, n int) json.RawMessage {
		entries := make([]map[string]interface{}, 0, n)
		for i := 0; i < n; i++ {
			entries = append(entries, map[string]interface{}{
				"sequence":   start + i,
				"id":         "id",
				"type":       "market.order.refunded",
				"attributes": map[string]string{"orderId": testID, "buyer": testAddress, "amount": "5"},
				"createdAt":  "2024-01-01T00:00:00Z",
			})
		}
		raw, _ := json.Marshal(entries)
		return raw
	}
	calls := stubRPC(t, func(call recordedCall) (json.RawMessage, *rpcError, error) {
		if call.params["after"] == float64(0) {
			return page(1, exportPageSize), nil, nil
		}
		return page(exportPageSize+1, 3), nil, nil
	})

	out := filepath.Join(t.TempDir(), "settlements.jsonl")
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if code := run([]string{"events", "export", "--format", "jsonl", "--out", out}, stdout, stderr); code != 0 {
		t.Fatalf("export failed: %s", stderr.String())
	}
	if len(*calls) != 2 {
		t.Fatalf("expected two pages, got %d calls", len(*calls))
	}
	if after := (*calls)[1].params["after"]; after != float64(exportPageSize) {
		t.Fatalf("second page should start after %d, got %v", exportPageSize, after)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != exportPageSize+3 {
		t.Fatalf("expected %d rows, got %d", exportPageSize+3, lines)
	}
	if !strings.Contains(stdout.String(), "sha256") {
		t.Fatalf("expected digest in output, got %q", stdout.String())
	}
}
