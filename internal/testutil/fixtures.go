// Package testutil provides the shared sales fixture: a business view over
// a small star schema and helpers to build a matching in-memory database.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driftline/driftline/internal/bv"
)

// SalesView returns the canonical test view: a sales fact table joined to
// a customers dimension table, with revenue and order count measures.
func SalesView() *bv.BusinessView {
	return &bv.BusinessView{
		Name: "sales",
		Tables: []bv.Table{
			{
				Name: "sales_fact",
				Columns: []bv.Column{
					{Name: "id", Type: bv.TypeInteger},
					{Name: "customer_id", Type: bv.TypeInteger},
					{Name: "revenue", Type: bv.TypeFloat},
					{Name: "order_date", Type: bv.TypeDate},
				},
			},
			{
				Name: "customers",
				Columns: []bv.Column{
					{Name: "id", Type: bv.TypeInteger},
					{Name: "segment", Type: bv.TypeString},
					{Name: "region", Type: bv.TypeString},
				},
			},
		},
		Joins: []bv.Join{
			{
				LeftTable: "sales_fact", LeftKey: "customer_id",
				RightTable: "customers", RightKey: "id",
				Type: bv.JoinInner,
			},
		},
		Measures: []bv.Measure{
			{Name: "total_revenue", Expression: "SUM(sales_fact.revenue)", Format: "currency"},
			{Name: "order_count", Expression: "COUNT(sales_fact.id)", Format: "number"},
		},
		Dimensions: []bv.Dimension{
			{Name: "segment", Table: "customers", Column: "segment"},
			{Name: "region", Table: "customers", Column: "region"},
		},
		TimeDimension: bv.TimeDimension{Table: "sales_fact", Column: "order_date"},
		Calendar:      bv.DefaultCalendar(),
	}
}

const salesSchema = `
CREATE TABLE customers (
    id      INTEGER PRIMARY KEY,
    segment TEXT NOT NULL,
    region  TEXT NOT NULL
);
CREATE TABLE sales_fact (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id INTEGER NOT NULL REFERENCES customers(id),
    revenue     REAL NOT NULL,
    order_date  TEXT NOT NULL
);
`

// OpenDB opens a fresh in-memory database with the sales schema applied.
// Closed automatically when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection keeps the in-memory database alive across statements.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(salesSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// InsertCustomer adds one customer row.
func InsertCustomer(t *testing.T, db *sql.DB, id int, segment, region string) {
	t.Helper()
	if _, err := db.Exec(
		"INSERT INTO customers (id, segment, region) VALUES (?, ?, ?)",
		id, segment, region); err != nil {
		t.Fatalf("insert customer: %v", err)
	}
}

// InsertSale adds one sales fact row. date is "2006-01-02".
func InsertSale(t *testing.T, db *sql.DB, customerID int, revenue float64, date string) {
	t.Helper()
	if _, err := db.Exec(
		"INSERT INTO sales_fact (customer_id, revenue, order_date) VALUES (?, ?, ?)",
		customerID, revenue, date); err != nil {
		t.Fatalf("insert sale: %v", err)
	}
}
