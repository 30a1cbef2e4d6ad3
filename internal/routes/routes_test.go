package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/bridge-pay/bridge_pay/internal/config"
	"github.com/bridge-pay/bridge_pay/internal/ledger"
	"github.com/bridge-pay/bridge_pay/internal/logging"
	"github.com/bridge-pay/bridge_pay/internal/merchant"
	"github.com/bridge-pay/bridge_pay/internal/transaction"
)

const (
	payerAccount    = "1001"
	merchantAccount = "2001"
	custodyAccount  = "9001"
	merchantCode    = "MRC123"
)

func testApp(t *testing.T) (*fiber.App, ledger.Ledger) {
	t.Helper()
	ctx := context.Background()

	led := ledger.NewInMemory()
	for _, a := range []ledger.Account{
		{Number: payerAccount, HolderName: "Awa Diop", BankCode: "TSTB", BankName: "Test Bank", Status: ledger.StatusActive},
		{Number: merchantAccount, HolderName: "Marché Central", BankCode: "TSTB", BankName: "Test Bank", Status: ledger.StatusActive},
		{Number: custodyAccount, HolderName: "Custody", BankCode: "CSTD", BankName: "Custody Holding", Status: ledger.StatusActive},
	} {
		if err := led.CreateAccount(ctx, a); err != nil {
			t.Fatalf("create account: %v", err)
		}
	}
	ledger.SeedBalance(led, payerAccount, 10_000)

	merchants := merchant.NewMemoryRepository()
	if err := merchants.Create(ctx, merchant.Merchant{Code: merchantCode, Name: "Marché Central", AccountNumber: merchantAccount, Active: true}); err != nil {
		t.Fatalf("create merchant: %v", err)
	}

	cfg := config.Config{
		Env:            "development",
		CustodyAccount: custodyAccount,
		CommissionBps:  200,
	}

	app := fiber.New()
	err := Setup(app, Deps{
		Cfg:          cfg,
		Logger:       logging.Discard(),
		Ledger:       led,
		Transactions: transaction.NewMemoryRepository(),
		Merchants:    merchants,
	})
	if err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app, led
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func payBody() string {
	return `{"account_number":"1001","holder_name":"Awa Diop","bank_code":"TSTB","bank_name":"Test Bank"}`
}

func TestPaymentAndApprovalFlow(t *testing.T) {
	app, led := testApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments/MRC123/1000", payBody())
	if status != fiber.StatusOK {
		t.Fatalf("intake status %d: %v", status, body)
	}
	txn, _ := body["transaction"].(map[string]any)
	id, _ := txn["id"].(string)
	if id == "" {
		t.Fatalf("no transaction id in response: %v", body)
	}
	if ref, _ := body["reference"].(string); len(ref) != 8 {
		t.Fatalf("reference %q", body["reference"])
	}

	status, body = doJSON(t, app, fiber.MethodPut, "/api/v1/transactions/"+id+"/approve", "")
	if status != fiber.StatusOK {
		t.Fatalf("approve status %d: %v", status, body)
	}

	if bal, _ := led.Balance(context.Background(), merchantAccount); bal != 980 {
		t.Fatalf("merchant balance %d", bal)
	}
	if bal, _ := led.Balance(context.Background(), custodyAccount); bal != 20 {
		t.Fatalf("custody balance %d", bal)
	}

	// The stale retry pattern: a second approve is a client error, not a
	// second payout.
	status, _ = doJSON(t, app, fiber.MethodPut, "/api/v1/transactions/"+id+"/approve", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("second approve status %d", status)
	}
	if bal, _ := led.Balance(context.Background(), merchantAccount); bal != 980 {
		t.Fatalf("merchant paid twice, balance %d", bal)
	}
}

func TestRejectFlowRefundsNet(t *testing.T) {
	app, led := testApp(t)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments/MRC123/500", payBody())
	if status != fiber.StatusOK {
		t.Fatalf("intake status %d: %v", status, body)
	}
	txn, _ := body["transaction"].(map[string]any)
	id, _ := txn["id"].(string)

	status, body = doJSON(t, app, fiber.MethodPut, "/api/v1/transactions/"+id+"/reject", `{"reason":"suspected fraud"}`)
	if status != fiber.StatusOK {
		t.Fatalf("reject status %d: %v", status, body)
	}

	// 500 at 2% keeps 10 in custody; 490 returns to the payer.
	if bal, _ := led.Balance(context.Background(), payerAccount); bal != 9_990 {
		t.Fatalf("payer balance %d", bal)
	}
	if bal, _ := led.Balance(context.Background(), custodyAccount); bal != 10 {
		t.Fatalf("custody balance %d", bal)
	}
}

func TestSettleAllEndpoint(t *testing.T) {
	app, _ := testApp(t)

	for i := 0; i < 3; i++ {
		status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments/MRC123/1000", payBody())
		if status != fiber.StatusOK {
			t.Fatalf("intake %d status %d: %v", i, status, body)
		}
	}

	status, body := doJSON(t, app, fiber.MethodPut, "/api/v1/transactions/settle-all", "")
	if status != fiber.StatusOK {
		t.Fatalf("settle-all status %d: %v", status, body)
	}
	if count, _ := body["settled_count"].(float64); count != 3 {
		t.Fatalf("settled_count %v", body["settled_count"])
	}
	if group, _ := body["settlement_group_id"].(string); group == "" {
		t.Fatal("settlement_group_id missing")
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/transactions", "")
	if status != fiber.StatusOK {
		t.Fatalf("list status %d", status)
	}
}

func TestIntakeValidationErrors(t *testing.T) {
	app, _ := testApp(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown merchant", fiber.MethodPost, "/api/v1/payments/NOPE/1000", payBody(), fiber.StatusBadRequest},
		{"bad amount", fiber.MethodPost, "/api/v1/payments/MRC123/zero", payBody(), fiber.StatusBadRequest},
		{"payer mismatch", fiber.MethodPost, "/api/v1/payments/MRC123/1000", `{"account_number":"1001","holder_name":"Wrong","bank_code":"TSTB"}`, fiber.StatusBadRequest},
		{"unknown transaction", fiber.MethodPut, "/api/v1/transactions/0a0a0a0a-0000-0000-0000-000000000000/approve", "", fiber.StatusNotFound},
		{"code check unknown", fiber.MethodGet, "/api/v1/payments/NOPE", "", fiber.StatusNotFound},
	}

	for _, tc := range cases {
		status, body := doJSON(t, app, tc.method, tc.path, tc.body)
		if status != tc.want {
			t.Fatalf("%s: status %d want %d (%v)", tc.name, status, tc.want, body)
		}
	}
}

func TestInsufficientPayerKeepsBalanceAndRecords(t *testing.T) {
	app, led := testApp(t)
	ledger.SeedBalance(led, payerAccount, 100)

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/payments/MRC123/150", payBody())
	if status != fiber.StatusBadRequest {
		t.Fatalf("intake status %d: %v", status, body)
	}
	if body["transaction"] == nil {
		t.Fatalf("failed intake must still return the audit record: %v", body)
	}
	if bal, _ := led.Balance(context.Background(), payerAccount); bal != 100 {
		t.Fatalf("payer balance %d", bal)
	}

	status, list := doJSON(t, app, fiber.MethodGet, "/api/v1/admin/dashboard", "")
	if status != fiber.StatusOK {
		t.Fatalf("dashboard status %d", status)
	}
	if failed, _ := list["failed_count"].(float64); failed != 1 {
		t.Fatalf("dashboard failed_count %v", list["failed_count"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	app, _ := testApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK {
		t.Fatalf("healthz status %d", status)
	}
	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/ping", "")
	if status != fiber.StatusOK {
		t.Fatalf("ping status %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("ping body %v", body)
	}
}

func TestListStartsEmpty(t *testing.T) {
	app, _ := testApp(t)
	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/transactions", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(raw)); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}
