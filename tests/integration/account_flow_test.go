package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAccountFlow_HierarchyAndReparent(t *testing.T) {
	app := setupApp(t)

	oldParentID := app.createAccount(t, "1000", "Current Assets", "ASSET", "CURRENT_ASSET")
	newParentID := app.createAccount(t, "1500", "Fixed Assets", "ASSET", "FIXED_ASSET")
	cashID := app.createChildAccount(t, "1010", "Cash", "ASSET", "CURRENT_ASSET", oldParentID)
	revenueID := app.createAccount(t, "4000", "Sales", "REVENUE", "OPERATING_REVENUE")

	app.postEntry(t, cashID, revenueID, "60.00")
	app.assertBalance(t, oldParentID, "60")

	// Move the leaf under the other parent; the rollup balance follows it.
	body := fmt.Sprintf(`{"parent_id":%q}`, newParentID)
	rec := app.request("PUT", "/api/v1/accounts/"+cashID+"/parent", body)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	app.assertBalance(t, oldParentID, "0")
	app.assertBalance(t, newParentID, "60")

	// Reparenting under its own descendant is rejected.
	topID := app.createAccount(t, "2000", "Liabilities", "LIABILITY", "CURRENT_LIABILITY")
	subID := app.createChildAccount(t, "2010", "Payables", "LIABILITY", "CURRENT_LIABILITY", topID)
	body = fmt.Sprintf(`{"parent_id":%q}`, subID)
	rec = app.request("PUT", "/api/v1/accounts/"+topID+"/parent", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "CYCLE_DETECTED" {
		t.Errorf("expected CYCLE_DETECTED, got %v", errObj["code"])
	}
}

func TestAccountFlow_DeactivateLifecycle(t *testing.T) {
	app := setupApp(t)

	cashID := app.createAccount(t, "1000", "Cash", "ASSET", "CURRENT_ASSET")
	revenueID := app.createAccount(t, "4000", "Sales", "REVENUE", "OPERATING_REVENUE")

	entryID := app.postEntry(t, cashID, revenueID, "25.00")

	// Deactivation is blocked while the balance is non-zero.
	rec := app.request("POST", "/api/v1/accounts/"+cashID+"/deactivate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// Reverse to zero, then deactivate.
	rec = app.request("POST", "/api/v1/entries/"+entryID+"/reverse", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/accounts/"+cashID+"/deactivate", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	// The deactivated account rejects new postings but stays readable.
	body := fmt.Sprintf(`{"lines":[{"account_id":%q,"amount":"5.00"},{"account_id":%q,"amount":"-5.00"}]}`,
		cashID, revenueID)
	rec = app.request("POST", "/api/v1/entries", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "INACTIVE_ACCOUNT" {
		t.Errorf("expected INACTIVE_ACCOUNT, got %v", errObj["code"])
	}

	rec = app.request("GET", "/api/v1/accounts/"+cashID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	account := result["account"].(map[string]interface{})
	if account["is_active"] != false {
		t.Errorf("expected is_active false, got %v", account["is_active"])
	}
}

func TestAccountFlow_CodeImmutableAfterPosting(t *testing.T) {
	app := setupApp(t)

	cashID := app.createAccount(t, "1000", "Cash", "ASSET", "CURRENT_ASSET")
	revenueID := app.createAccount(t, "4000", "Sales", "REVENUE", "OPERATING_REVENUE")

	// Metadata updates work before and after posting; the code freezes after.
	rec := app.request("PUT", "/api/v1/accounts/"+cashID, `{"code":"1001","name":"Petty Cash"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	app.postEntry(t, cashID, revenueID, "5.00")

	rec = app.request("PUT", "/api/v1/accounts/"+cashID, `{"code":"1002"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "CODE_IMMUTABLE" {
		t.Errorf("expected CODE_IMMUTABLE, got %v", errObj["code"])
	}

	rec = app.request("PUT", "/api/v1/accounts/"+cashID, `{"name":"Cash on Hand"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	account := result["account"].(map[string]interface{})
	if account["name"] != "Cash on Hand" {
		t.Errorf("expected renamed account, got %v", account["name"])
	}
	if account["code"] != "1001" {
		t.Errorf("expected code unchanged, got %v", account["code"])
	}
}
