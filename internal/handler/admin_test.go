package handler

import (
	"encoding/json"
	"math/big"
	"net/http"
	"testing"

	"github.com/DustGate/dustgate/internal/model"
)

func TestAdminEndpointsRequireKey(t *testing.T) {
	f := newGateway(t)

	rec := f.do(http.MethodGet, "/v1/admin/params", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", rec.Code)
	}

	rec2 := f.do(http.MethodGet, "/v1/admin/params", nil, "X-Admin-Key", "wrong")
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong admin key, got %d", rec2.Code)
	}

	rec3 := f.asAdmin(http.MethodGet, "/v1/admin/params", nil)
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec3.Code)
	}
}

func TestAdminParamsEndpoint(t *testing.T) {
	f := newGateway(t)

	rec := f.asAdmin(http.MethodGet, "/v1/admin/params", nil)
	var resp model.ParamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.ProtocolFeeBps != 200 || resp.PayoutSplitBps != 5000 {
		t.Fatalf("unexpected params: %+v", resp)
	}
	if resp.TierDiscounts[1] != 500 {
		t.Fatalf("tier 1 discount missing: %+v", resp.TierDiscounts)
	}
	if resp.AccruedFeesWei != "0" {
		t.Fatalf("expected no accrued fees, got %s", resp.AccruedFeesWei)
	}
	if len(resp.TrustedSigners) != 1 {
		t.Fatalf("expected one trusted signer, got %v", resp.TrustedSigners)
	}
}

func TestAdminFeeEndpoint(t *testing.T) {
	f := newGateway(t)

	rec := f.asAdmin(http.MethodPut, "/v1/admin/fee", model.SetFeeRequest{FeeBps: 300})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ParamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.ProtocolFeeBps != 300 {
		t.Fatalf("fee not applied: %+v", resp)
	}

	rec2 := f.asAdmin(http.MethodPut, "/v1/admin/fee", model.SetFeeRequest{FeeBps: 9999})
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range fee, got %d", rec2.Code)
	}
	if code := errorCode(t, rec2); code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %s", code)
	}
}

func TestAdminTierEndpoints(t *testing.T) {
	f := newGateway(t)

	// Assigning a configured tier works and reports the new metadata.
	rec := f.asAdmin(http.MethodPut, "/v1/admin/tokens/tier", model.AssignTierRequest{Token: tokenAddr.Hex(), Tier: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var meta model.TokenMetadataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if meta.Tier != 1 || meta.Token != tokenAddr.Hex() {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	// A tier with no configured discount is not assignable.
	rec2 := f.asAdmin(http.MethodPut, "/v1/admin/tokens/tier", model.AssignTierRequest{Token: tokenAddr.Hex(), Tier: 9})
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unconfigured tier, got %d", rec2.Code)
	}
	if code := errorCode(t, rec2); code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %s", code)
	}

	// Configure tier 2, then it becomes assignable.
	rec3 := f.asAdmin(http.MethodPut, "/v1/admin/tiers", model.SetTierDiscountRequest{Tier: 2, DiscountBps: 1500})
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec3.Code, rec3.Body.String())
	}
	rec4 := f.asAdmin(http.MethodPut, "/v1/admin/tokens/tier", model.AssignTierRequest{Token: tokenAddr.Hex(), Tier: 2})
	if rec4.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec4.Code, rec4.Body.String())
	}
}

func TestFreezeEndpoint(t *testing.T) {
	f := newGateway(t)
	f.fundMaker(2000000)

	rec := f.asAdmin(http.MethodPut, "/v1/admin/freeze", model.SetFrozenRequest{Frozen: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ParamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.Frozen {
		t.Fatalf("params should report frozen: %+v", resp)
	}

	// Settlement is refused while frozen.
	body := f.settleBody(t, big.NewInt(1e15), big.NewInt(3e15))
	rec2 := f.asCaller(http.MethodPost, "/v1/settlements", body)
	if rec2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while frozen, got %d: %s", rec2.Code, rec2.Body.String())
	}
	if code := errorCode(t, rec2); code != "FROZEN" {
		t.Fatalf("expected FROZEN, got %s", code)
	}

	// Reads and previews stay up.
	rec3 := f.asCaller(http.MethodGet, "/v1/settlements", nil)
	if rec3.Code != http.StatusOK {
		t.Fatalf("record reads should survive a freeze, got %d", rec3.Code)
	}
	rec4 := f.asCaller(http.MethodPost, "/v1/settlements/preview", body)
	if rec4.Code != http.StatusOK {
		t.Fatalf("preview should survive a freeze, got %d: %s", rec4.Code, rec4.Body.String())
	}

	// Unfreeze, and the same packet settles: the frozen attempt and the
	// preview burned nothing.
	rec5 := f.asAdmin(http.MethodPut, "/v1/admin/freeze", model.SetFrozenRequest{Frozen: false})
	if rec5.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec5.Code)
	}
	rec6 := f.asCaller(http.MethodPost, "/v1/settlements", body)
	if rec6.Code != http.StatusOK {
		t.Fatalf("expected 200 after unfreeze, got %d: %s", rec6.Code, rec6.Body.String())
	}
}

func TestLedgerEndpoints(t *testing.T) {
	f := newGateway(t)

	native := model.LedgerCreditRequest{Account: makerAddr.Hex(), Amount: "5000"}
	rec := f.asAdmin(http.MethodPost, "/v1/admin/ledger/credit", native)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.ledger.NativeBalanceOf(makerAddr); got.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("native credit not applied: %s", got)
	}

	// Token credit with approval arms the maker for sweeping.
	tok := model.LedgerCreditRequest{Account: makerAddr.Hex(), Token: tokenAddr.Hex(), Amount: "2000000", Approve: true}
	rec2 := f.asAdmin(http.MethodPost, "/v1/admin/ledger/credit", tok)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}

	body := f.settleBody(t, big.NewInt(1e15), big.NewInt(3e15))
	rec3 := f.asCaller(http.MethodPost, "/v1/settlements", body)
	if rec3.Code != http.StatusOK {
		t.Fatalf("credited maker should settle, got %d: %s", rec3.Code, rec3.Body.String())
	}

	rec4 := f.asAdmin(http.MethodGet, "/v1/admin/ledger/"+makerAddr.Hex(), nil)
	if rec4.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec4.Code)
	}
	var bal map[string]string
	if err := json.Unmarshal(rec4.Body.Bytes(), &bal); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	// 5000 deposit plus the 2e15 sweep payout.
	want := new(big.Int).Add(big.NewInt(5000), big.NewInt(2e15))
	if bal["native_wei"] != want.String() {
		t.Fatalf("unexpected balance: %s", bal["native_wei"])
	}

	rec5 := f.asAdmin(http.MethodPost, "/v1/admin/ledger/credit", model.LedgerCreditRequest{Account: makerAddr.Hex(), Amount: "-5"})
	if rec5.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rec5.Code)
	}
}
