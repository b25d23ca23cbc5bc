package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coreledger/internal/handlers"
	"coreledger/internal/logger"
	"coreledger/internal/middleware"
	"coreledger/internal/models"
	"coreledger/internal/services"
	"coreledger/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:integration%d?mode=memory&cache=shared&_busy_timeout=10000", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// sqlite allows one writer at a time; a single pooled connection makes
	// concurrent requests queue instead of tripping table locks.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	allModels := []interface{}{
		&models.Account{},
		&models.JournalEntry{},
		&models.JournalLine{},
		&models.AuditRecord{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services. The registry and ledger share one lock table so hierarchy
	// changes and postings serialize on the same account locks.
	locks := services.NewLockTable()
	lockTimeout := 2 * time.Second
	auditService := services.NewAuditService(db)
	registryService := services.NewRegistryService(db, locks, lockTimeout)
	ledgerService := services.NewLedgerService(db, locks, auditService, lockTimeout)
	balanceService := services.NewBalanceService(db, locks, auditService, lockTimeout)

	// Handlers
	accountHandler := handlers.NewAccountHandler(registryService, balanceService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, balanceService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.PUT("/:id/parent", accountHandler.Reparent)
	accounts.POST("/:id/deactivate", accountHandler.Deactivate)
	accounts.GET("/:id/balance", accountHandler.BalanceAsOf)

	entries := v1.Group("/entries")
	entries.POST("", ledgerHandler.PostEntry)
	entries.GET("/:id", ledgerHandler.GetEntry)
	entries.POST("/:id/reverse", ledgerHandler.ReverseEntry)

	audit := v1.Group("/audit")
	audit.GET("/records", ledgerHandler.RecordsSince)
	audit.POST("/rebuild", ledgerHandler.Rebuild)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// createAccount creates a leaf account over the API and returns its id.
func (app *testApp) createAccount(t *testing.T, code, name, accountType, category string) string {
	t.Helper()
	body := fmt.Sprintf(`{"code":%q,"name":%q,"account_type":%q,"category":%q}`,
		code, name, accountType, category)
	rec := app.request("POST", "/api/v1/accounts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	account := result["account"].(map[string]interface{})
	return account["id"].(string)
}

// createChildAccount creates an account under the given parent and returns its id.
func (app *testApp) createChildAccount(t *testing.T, code, name, accountType, category, parentID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"code":%q,"name":%q,"account_type":%q,"category":%q,"parent_id":%q}`,
		code, name, accountType, category, parentID)
	rec := app.request("POST", "/api/v1/accounts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create child account failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	account := result["account"].(map[string]interface{})
	return account["id"].(string)
}

// postEntry posts a two-line balanced entry and returns the committed entry id.
func (app *testApp) postEntry(t *testing.T, debitID, creditID, amount string) string {
	t.Helper()
	body := fmt.Sprintf(`{"lines":[{"account_id":%q,"amount":%q},{"account_id":%q,"amount":"-%s"}]}`,
		debitID, amount, creditID, amount)
	rec := app.request("POST", "/api/v1/entries", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post entry failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	record := result["record"].(map[string]interface{})
	return record["entry_id"].(string)
}

// assertBalance fetches an account over the API and compares its cached
// balance numerically, so "100", "100.0000", and "100.00" all match.
func (app *testApp) assertBalance(t *testing.T, accountID, want string) {
	t.Helper()
	rec := app.request("GET", "/api/v1/accounts/"+accountID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get account failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	account := result["account"].(map[string]interface{})
	raw, ok := account["balance"].(string)
	if !ok {
		t.Fatalf("expected balance as string, got %T", account["balance"])
	}
	got, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("balance %q does not parse: %v", raw, err)
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected balance %s, got %s", want, raw)
	}
}
