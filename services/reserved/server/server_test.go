package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"openreserve/core/state"
	nativecommon "openreserve/native/common"
	"openreserve/native/reserve"
	"openreserve/services/reserved/config"
	"openreserve/storage"
)

const (
	testAPIToken   = "user-token"
	testAdminToken = "admin-token"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)

	authority, err := nativecommon.NewCapability()
	if err != nil {
		t.Fatalf("mint capability: %v", err)
	}

	ledger := reserve.NewEngine()
	ledger.SetState(manager)
	ledger.SetAuthority(authority)

	cfg := config.Config{
		Auth: config.AuthConfig{
			APITokens:   []string{testAPIToken},
			AdminTokens: []string{testAdminToken},
		},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 6000, Burst: 100},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, ledger, manager, authority, cfg).Router()
}

func doRequest(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func registerTestAsset(t *testing.T, handler http.Handler) {
	t.Helper()
	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD", testAPIToken, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("register asset: status %d body %s", resp.Code, resp.Body)
	}
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body, err)
	}
}

func TestAuthRequired(t *testing.T) {
	handler := newTestHandler(t)
	resp := doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", "wrong-token", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", resp.Code)
	}
}

func TestAdminRoutesRejectAPITokens(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)

	resp := doRequest(t, handler, http.MethodPut, "/v1/reserve/assets/USD/flash-fee", testAPIToken, `{"feeRateBps":30}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for api token on admin route, got %d", resp.Code)
	}
	resp = doRequest(t, handler, http.MethodPut, "/v1/reserve/assets/USD/flash-fee", testAdminToken, `{"feeRateBps":30}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin token, got %d body %s", resp.Code, resp.Body)
	}
}

func TestRegisterAssetConflicts(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)
	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD", testAPIToken, "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate registration, got %d", resp.Code)
	}
}

func TestUnknownAssetIsNotFound(t *testing.T) {
	handler := newTestHandler(t)
	resp := doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/EUR", testAPIToken, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered asset, got %d", resp.Code)
	}
}

func TestMintRedeemRoundTrip(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, `{"amount":"1000"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("mint: status %d body %s", resp.Code, resp.Body)
	}
	var minted amountResponse
	decodeBody(t, resp, &minted)
	if minted.Amount != "1000" {
		t.Fatalf("expected 1000 receipts, got %s", minted.Amount)
	}

	resp = doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/redeem", testAPIToken, `{"amount":"400"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("redeem: status %d body %s", resp.Code, resp.Body)
	}
	var redeemed amountResponse
	decodeBody(t, resp, &redeemed)
	if redeemed.Amount != "400" {
		t.Fatalf("expected 400 underlying, got %s", redeemed.Amount)
	}

	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", testAPIToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("balance sheet: status %d", resp.Code)
	}
	var sheet balanceSheetResponse
	decodeBody(t, resp, &sheet)
	if sheet.Cash != "600" || sheet.ReceiptSupply != "600" {
		t.Fatalf("unexpected sheet: %+v", sheet)
	}
}

func TestBorrowBeyondCashIsRejected(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)
	doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, `{"amount":"100"}`)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/borrow", testAPIToken, `{"amount":"200"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for over-borrow, got %d body %s", resp.Code, resp.Body)
	}

	// The failed borrow must leave the ledger untouched.
	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", testAPIToken, "")
	var sheet balanceSheetResponse
	decodeBody(t, resp, &sheet)
	if sheet.Cash != "100" || sheet.Debt != "0" {
		t.Fatalf("failed borrow changed the sheet: %+v", sheet)
	}
}

func TestFlashLoanSettlesWithinOneRequest(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)
	doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, `{"amount":"1000"}`)
	doRequest(t, handler, http.MethodPut, "/v1/reserve/assets/USD/flash-fee", testAdminToken, `{"feeRateBps":30}`)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/flash-loan", testAPIToken,
		`{"amount":"100","repayment":"101"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("flash loan: status %d body %s", resp.Code, resp.Body)
	}
	var receipt flashLoanResponse
	decodeBody(t, resp, &receipt)
	if receipt.Fee != "1" || receipt.Collected != "1" {
		t.Fatalf("unexpected flash loan receipt: %+v", receipt)
	}

	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", testAPIToken, "")
	var sheet balanceSheetResponse
	decodeBody(t, resp, &sheet)
	if sheet.Cash != "1001" || sheet.Revenue != "1" {
		t.Fatalf("unexpected sheet after flash loan: %+v", sheet)
	}
}

func TestFlashLoanUnderpaymentUnwinds(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)
	doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, `{"amount":"1000"}`)
	doRequest(t, handler, http.MethodPut, "/v1/reserve/assets/USD/flash-fee", testAdminToken, `{"feeRateBps":30}`)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/flash-loan", testAPIToken,
		`{"amount":"100","repayment":"100"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for underpaid flash loan, got %d body %s", resp.Code, resp.Body)
	}

	// Nothing from the aborted loan may persist.
	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD", testAPIToken, "")
	var sheet balanceSheetResponse
	decodeBody(t, resp, &sheet)
	if sheet.Cash != "1000" || sheet.Revenue != "0" {
		t.Fatalf("aborted flash loan changed the sheet: %+v", sheet)
	}
}

func TestBorrowFeeAdminWithdrawal(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/borrow-fees/deposit", testAPIToken, `{"amount":"30"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("deposit fee: status %d body %s", resp.Code, resp.Body)
	}

	resp = doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/borrow-fees/withdraw", testAPIToken, `{"amount":"10"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for api token withdrawal, got %d", resp.Code)
	}

	resp = doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/borrow-fees/withdraw", testAdminToken, `{"amount":"10"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("withdraw fee: status %d body %s", resp.Code, resp.Body)
	}

	resp = doRequest(t, handler, http.MethodGet, "/v1/reserve/assets/USD/borrow-fees", testAPIToken, "")
	var pool amountResponse
	decodeBody(t, resp, &pool)
	if pool.Amount != "20" {
		t.Fatalf("expected pool 20, got %s", pool.Amount)
	}

	resp = doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/borrow-fees/withdraw", testAdminToken, `{"amount":"100"}`)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overdraw, got %d", resp.Code)
	}
}

func TestMalformedAmountIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)
	registerTestAsset(t, handler)

	resp := doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, `{"amount":"abc"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed amount, got %d", resp.Code)
	}
	resp = doRequest(t, handler, http.MethodPost, "/v1/reserve/assets/USD/mint", testAPIToken, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}
}
