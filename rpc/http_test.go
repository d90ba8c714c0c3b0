package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"fanvault/core"
	"fanvault/crypto"
	"fanvault/storage"
)

func newTestNode(t *testing.T) (*core.Node, *int64) {
	t.Helper()
	node := core.NewNode(storage.NewMemDB(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := int64(1_000)
	node.SetNowFunc(func() int64 { return now })
	return node, &now
}

func newTestServer(t *testing.T, node *core.Node) *Server {
	t.Helper()
	return NewServer(node, 60_000, 1_000)
}

func testBech(t *testing.T, b byte) string {
	t.Helper()
	var addr [20]byte
	addr[19] = b
	encoded, err := crypto.NewAddress(crypto.FanPrefix, addr[:])
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}
	return encoded.String()
}

func fund(t *testing.T, node *core.Node, encoded string, amount int64) {
	t.Helper()
	if err := node.ApplyGenesis(map[string]*big.Int{encoded: big.NewInt(amount)}); err != nil {
		t.Fatalf("fund %s: %v", encoded, err)
	}
}

func call(t *testing.T, server *Server, token string, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp, rec.Code
}

func resultInto(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

const testPeriodAmount = "2592000000000"

func TestUnknownMethod(t *testing.T) {
	node, _ := newTestNode(t)
	server := newTestServer(t, node)

	resp, status := call(t, server, "", "fv_unknown", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want method-not-found", resp.Error)
	}
}

func TestMalformedPayload(t *testing.T) {
	node, _ := newTestNode(t)
	server := newTestServer(t, node)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("error = %+v, want parse error", resp.Error)
	}
}

func TestMethodRequired(t *testing.T) {
	node, _ := newTestNode(t)
	server := newTestServer(t, node)

	resp, _ := call(t, server, "", "", nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("error = %+v, want invalid request", resp.Error)
	}
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	t.Setenv(authTokenEnv, "secret-token")
	node, _ := newTestNode(t)
	server := newTestServer(t, node)
	creator := testBech(t, 1)

	resp, status := call(t, server, "", "creator_register", creatorRegisterParams{Caller: creator, Name: "alice"})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error = %+v, want unauthorized", resp.Error)
	}

	resp, _ = call(t, server, "wrong-token", "creator_register", creatorRegisterParams{Caller: creator, Name: "alice"})
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error = %+v, want unauthorized for bad token", resp.Error)
	}

	resp, _ = call(t, server, "secret-token", "creator_register", creatorRegisterParams{Caller: creator, Name: "alice"})
	if resp.Error != nil {
		t.Fatalf("register with valid token failed: %+v", resp.Error)
	}

	// Reads stay open without a token.
	resp, _ = call(t, server, "", "creator_profile", creatorProfileParams{Creator: creator})
	if resp.Error != nil {
		t.Fatalf("profile read failed: %+v", resp.Error)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	node, _ := newTestNode(t)
	server := NewServer(node, 0.0001, 1)

	first, _ := call(t, server, "", "creator_register", creatorRegisterParams{Caller: testBech(t, 1), Name: "alice"})
	if first.Error != nil {
		t.Fatalf("first call failed: %+v", first.Error)
	}
	second, status := call(t, server, "", "creator_register", creatorRegisterParams{Caller: testBech(t, 2), Name: "bob"})
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	if second.Error == nil || second.Error.Code != codeRateLimited {
		t.Fatalf("error = %+v, want rate limited", second.Error)
	}
}

func TestInvalidAddressParam(t *testing.T) {
	node, _ := newTestNode(t)
	server := newTestServer(t, node)

	resp, _ := call(t, server, "", "creator_profile", creatorProfileParams{Creator: "not-an-address"})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v, want invalid params", resp.Error)
	}
}

func TestSubscriptionFlowOverRPC(t *testing.T) {
	node, now := newTestNode(t)
	server := newTestServer(t, node)
	creator, fan := testBech(t, 1), testBech(t, 2)
	fund(t, node, fan, 2*2_592_000_000_000)

	resp, _ := call(t, server, "", "creator_register", creatorRegisterParams{Caller: creator, Name: "alice"})
	if resp.Error != nil {
		t.Fatalf("register: %+v", resp.Error)
	}
	resp, _ = call(t, server, "", "creator_publish", creatorPublishParams{Caller: creator, URI: "ipfs://drop"})
	if resp.Error != nil {
		t.Fatalf("publish: %+v", resp.Error)
	}

	// The fan has no deposit yet, so the content stays gated.
	resp, status := call(t, server, "", "creator_content", creatorContentParams{Caller: fan, Creator: creator})
	if status != http.StatusForbidden || resp.Error == nil {
		t.Fatalf("expected gated content, got status=%d error=%+v", status, resp.Error)
	}

	resp, _ = call(t, server, "", "sub_open", subOpenParams{
		Caller:       fan,
		Creator:      creator,
		PeriodAmount: testPeriodAmount,
		Amount:       testPeriodAmount,
	})
	var opened subDepositResult
	resultInto(t, resp, &opened)
	if opened.RatePerSecond != "1000000" {
		t.Fatalf("rate = %s, want 1000000", opened.RatePerSecond)
	}
	if !opened.Active {
		t.Fatalf("opened deposit not active")
	}

	resp, _ = call(t, server, "", "creator_content", creatorContentParams{Caller: fan, Creator: creator})
	var content creatorContentResult
	resultInto(t, resp, &content)
	if content.ContentURI != "ipfs://drop" {
		t.Fatalf("contentURI = %q", content.ContentURI)
	}

	*now += 1000 * 1000
	resp, _ = call(t, server, "", "sub_claim", subClaimParams{Caller: creator, Fan: fan})
	var claim subClaimResult
	resultInto(t, resp, &claim)
	if claim.Claimed != "1000000000" {
		t.Fatalf("claimed = %s, want 1000000000", claim.Claimed)
	}

	resp, _ = call(t, server, "", "fv_getBalance", balanceParams{Address: creator})
	var balance balanceResult
	resultInto(t, resp, &balance)
	if balance.Balance != "1000000000" {
		t.Fatalf("creator balance = %s", balance.Balance)
	}

	*now += 500 * 1000
	resp, _ = call(t, server, "", "sub_cancel", subCancelParams{Caller: fan, Creator: creator})
	var cancelled subCancelResult
	resultInto(t, resp, &cancelled)
	if cancelled.Settled != "500000000" {
		t.Fatalf("settled = %s, want 500000000", cancelled.Settled)
	}
	wantRefund := new(big.Int).Sub(big.NewInt(2_592_000_000_000), big.NewInt(1_500_000_000))
	if cancelled.Refund != wantRefund.String() {
		t.Fatalf("refund = %s, want %s", cancelled.Refund, wantRefund)
	}

	resp, _ = call(t, server, "", "sub_get", subGetParams{Fan: fan, Creator: creator})
	var final subDepositResult
	resultInto(t, resp, &final)
	if final.Active {
		t.Fatalf("deposit still active after cancel")
	}
	if final.RemainingBalance != "0" {
		t.Fatalf("remaining = %s after cancel", final.RemainingBalance)
	}

	resp, _ = call(t, server, "", "fv_recentEvents", recentEventsParams{Limit: 10})
	var events []map[string]interface{}
	resultInto(t, resp, &events)
	if len(events) == 0 {
		t.Fatalf("expected emitted events in the tail")
	}
}

func TestSubscriptionErrorsOverRPC(t *testing.T) {
	node, _ := newTestNode(t)
	server := newTestServer(t, node)
	creator, fan := testBech(t, 1), testBech(t, 2)
	fund(t, node, fan, 2_592_000_000_000)

	// Unregistered payee.
	resp, status := call(t, server, "", "sub_open", subOpenParams{
		Caller:       fan,
		Creator:      creator,
		PeriodAmount: testPeriodAmount,
		Amount:       testPeriodAmount,
	})
	if status != http.StatusNotFound || resp.Error == nil {
		t.Fatalf("expected payee-not-found, got status=%d error=%+v", status, resp.Error)
	}

	if _, err := node.CreatorRegister(mustDecode(t, creator), "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Deposit below one period.
	resp, _ = call(t, server, "", "sub_open", subOpenParams{
		Caller:       fan,
		Creator:      creator,
		PeriodAmount: testPeriodAmount,
		Amount:       "1000",
	})
	if resp.Error == nil {
		t.Fatalf("expected insufficient payment error")
	}

	// Claim with no deposit.
	resp, status = call(t, server, "", "sub_claim", subClaimParams{Caller: creator, Fan: fan})
	if status != http.StatusNotFound || resp.Error == nil {
		t.Fatalf("expected no-active-deposit, got status=%d error=%+v", status, resp.Error)
	}

	// Double open.
	open := subOpenParams{Caller: fan, Creator: creator, PeriodAmount: testPeriodAmount, Amount: testPeriodAmount}
	if resp, _ := call(t, server, "", "sub_open", open); resp.Error != nil {
		t.Fatalf("open: %+v", resp.Error)
	}
	resp, status = call(t, server, "", "sub_open", open)
	if status != http.StatusConflict || resp.Error == nil {
		t.Fatalf("expected already-active conflict, got status=%d error=%+v", status, resp.Error)
	}
}

func mustDecode(t *testing.T, encoded string) [20]byte {
	t.Helper()
	addr, err := decodeAddr(encoded)
	if err != nil {
		t.Fatalf("decode %s: %v", encoded, err)
	}
	return addr
}
