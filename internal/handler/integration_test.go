//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/dinemate-pos/api/internal/config"
	"github.com/dinemate-pos/api/internal/database"
	"github.com/dinemate-pos/api/internal/printer"
	"github.com/dinemate-pos/api/internal/router"
	"github.com/dinemate-pos/api/internal/ws"
)

// TestIntegrationFlow drives a full dine-in lifecycle against a real
// PostgreSQL database: order capture, kitchen ticket routing, billing and
// settlement, all through the wired router.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:         "8082",
		DatabaseURL:  connStr,
		JWTSecret:    "integration-test-secret",
		PrintWorkers: 1,
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()
	spooler := printer.NewSpooler(queries, cfg.PrintWorkers)
	defer spooler.Close()

	r := router.New(cfg, queries, pool, hub, spooler)
	server := httptest.NewServer(r)
	defer server.Close()

	// --- Seed outlet, staff, station, table and menu directly ---
	outletID := seedOutlet(t, ctx, pool)
	waiterID := seedWaiter(t, ctx, pool, outletID)
	stationID := seedStation(t, ctx, pool, outletID)
	tableID := seedTable(t, ctx, pool, outletID)
	menuItemID := seedMenuItem(t, ctx, pool, outletID, stationID)

	// --- Login ---
	token := login(t, server, "waiter@test.in", "password123")

	// --- Create a dine-in order: 2 x 240.00 ---
	orderResp := httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/orders", outletID), map[string]interface{}{
		"order_type": "DINE_IN",
		"table_id":   tableID.String(),
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "quantity": 2},
		},
	}, token)
	orderID := uuid.MustParse(orderResp["id"].(string))
	if orderResp["status"].(string) != "PENDING" {
		t.Fatalf("order status: got %s, want PENDING", orderResp["status"])
	}
	if orderResp["subtotal"].(string) != "480.00" {
		t.Fatalf("order subtotal: got %s, want 480.00", orderResp["subtotal"])
	}
	if orderResp["table_session_id"] == nil {
		t.Fatalf("dine-in order has no table session")
	}

	// Table flips to OCCUPIED when the session opens.
	if status := tableStatus(t, ctx, pool, tableID); status != "OCCUPIED" {
		t.Fatalf("table status after order: got %s, want OCCUPIED", status)
	}

	// --- Send to kitchen: one ticket for the single station ---
	ticketsResp := httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s/tickets", outletID, orderID), nil, token)
	tickets := ticketsResp["tickets"].([]interface{})
	if len(tickets) != 1 {
		t.Fatalf("tickets: got %d, want 1", len(tickets))
	}
	ticket := tickets[0].(map[string]interface{})
	ticketID := uuid.MustParse(ticket["id"].(string))
	if ticket["sequence_no"].(float64) != 1 {
		t.Fatalf("ticket sequence: got %v, want 1", ticket["sequence_no"])
	}

	orderAfterSend := httpGetJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s", outletID, orderID), token)
	if orderAfterSend["status"].(string) != "CONFIRMED" {
		t.Fatalf("order status after send: got %s, want CONFIRMED", orderAfterSend["status"])
	}

	// --- Station workflow: accept, prepare, ready, serve ---
	for _, step := range []string{"accept", "preparing", "ready", "served"} {
		httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/tickets/%s/%s", outletID, ticketID, step), nil, token)
	}

	orderAfterServe := httpGetJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s", outletID, orderID), token)
	if orderAfterServe["status"].(string) != "SERVED" {
		t.Fatalf("order status after serve: got %s, want SERVED", orderAfterServe["status"])
	}

	// --- Bill: subtotal 480.00, CGST+SGST 5% = 24.00, grand 504.00 ---
	invoiceResp := httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s/bill", outletID, orderID), nil, token)
	invoiceID := uuid.MustParse(invoiceResp["id"].(string))
	if invoiceResp["subtotal"].(string) != "480.00" {
		t.Fatalf("invoice subtotal: got %s, want 480.00", invoiceResp["subtotal"])
	}
	if invoiceResp["tax_total"].(string) != "24.00" {
		t.Fatalf("invoice tax_total: got %s, want 24.00", invoiceResp["tax_total"])
	}
	if invoiceResp["grand_total"].(string) != "504.00" {
		t.Fatalf("invoice grand_total: got %s, want 504.00", invoiceResp["grand_total"])
	}
	if invoiceResp["amount_in_words"].(string) != "Rupees Five Hundred Four Only" {
		t.Fatalf("amount_in_words: got %s", invoiceResp["amount_in_words"])
	}

	// Generating again returns the same invoice, not a second one.
	repeatResp := httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s/bill", outletID, orderID), nil, token)
	if repeatResp["id"].(string) != invoiceID.String() {
		t.Fatalf("repeat bill: got %s, want %s", repeatResp["id"], invoiceID)
	}

	// --- Settle: order closes, session releases, table frees ---
	paidResp := httpPostJSON(t, server, fmt.Sprintf("/outlets/%s/invoices/%s/pay", outletID, invoiceID), nil, token)
	if paidResp["status"].(string) != "PAID" {
		t.Fatalf("invoice status: got %s, want PAID", paidResp["status"])
	}

	finalOrder := httpGetJSON(t, server, fmt.Sprintf("/outlets/%s/orders/%s", outletID, orderID), token)
	if finalOrder["status"].(string) != "PAID" {
		t.Fatalf("final order status: got %s, want PAID", finalOrder["status"])
	}
	if status := tableStatus(t, ctx, pool, tableID); status != "AVAILABLE" {
		t.Fatalf("table status after settle: got %s, want AVAILABLE", status)
	}

	t.Logf("Integration flow passed: container=%s, outlet=%s, waiter=%s, order=%s, ticket=%s, invoice=%s",
		pgContainer.GetContainerID(), outletID, waiterID, orderID, ticketID, invoiceID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dinemate_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this package directory; go test sets cwd there.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func seedOutlet(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO outlets (name, interstate) VALUES ($1, FALSE) RETURNING id`,
		"Integration Test Kitchen",
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed outlet: %v", err)
	}
	return id
}

func seedWaiter(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID uuid.UUID) uuid.UUID {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (outlet_id, full_name, email, hashed_password, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		outletID, "Test Waiter", "waiter@test.in", string(hashed), "WAITER",
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed waiter: %v", err)
	}
	return id
}

func seedStation(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO stations (outlet_id, name, station_type)
		 VALUES ($1, $2, 'KITCHEN')
		 RETURNING id`,
		outletID, "Main Kitchen",
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed station: %v", err)
	}
	return id
}

func seedTable(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO restaurant_tables (outlet_id, label) VALUES ($1, $2) RETURNING id`,
		outletID, "T1",
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return id
}

func seedMenuItem(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID, stationID uuid.UUID) uuid.UUID {
	t.Helper()

	taxGroupID := uuid.New()
	for _, comp := range []struct {
		code string
		rate string
	}{
		{"CGST", "2.500"},
		{"SGST", "2.500"},
	} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO tax_components (tax_group_id, code, rate) VALUES ($1, $2, $3)`,
			taxGroupID, comp.code, comp.rate,
		); err != nil {
			t.Fatalf("seed tax component %s: %v", comp.code, err)
		}
	}

	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO menu_items (outlet_id, name, base_price, station_id, tax_group_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		outletID, "Paneer Tikka", "240.00", stationID, taxGroupID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed menu item: %v", err)
	}
	return id
}

func tableStatus(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tableID uuid.UUID) string {
	t.Helper()
	var status string
	if err := pool.QueryRow(ctx,
		`SELECT status FROM restaurant_tables WHERE id = $1`, tableID,
	).Scan(&status); err != nil {
		t.Fatalf("read table status: %v", err)
	}
	return status
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest("POST", server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("POST %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
