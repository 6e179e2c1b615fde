// Package model holds the records shared by ingestion, reconciliation and
// persistence. All entities are ephemeral: they are recomputed from the
// commerce API and the flat tables on every action.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is one line item of one order, flattened: order-level fields are
// copied onto every line.
type OrderLine struct {
	OrderNumber int64
	CreatedAt   time.Time
	CustomerID  string // external id; empty for guest and manual orders
	Dish        string // free text, may embed a DD/MM delivery-date token
	Name        string // customer display name, set by the join or by grid edits
	Quantity    int64
	UnitPrice   decimal.NullDecimal // invalid until known; backfilled before totals
	Source      string              // enum.SourceWeb or enum.SourceNonWeb
	Note        string
}

// Customer is one directory entry.
type Customer struct {
	CustomerID string
	Name       string // first + last name, trimmed; fallback join key when unique
	Email      string
	Phone      string
	Address    string
	City       string
	Route      string // delivery route label, see enum.DeliveryRoutes
}

// EnrichedRow is an OrderLine joined with its Customer, priced.
type EnrichedRow struct {
	OrderNumber int64
	Dish        string
	Name        string
	Quantity    int64
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Source      string
	Note        string
	Route       string
	Email       string
	Phone       string
	Address     string
	City        string
}

// Price is one entry of the product price list fetched from the commerce API.
type Price struct {
	ProductID int64
	Title     string
	Price     decimal.NullDecimal
}

// Warning kinds. No condition in this system is fatal: every failure degrades
// to an empty or partial result carrying one of these.
const (
	WarnSourceUnavailable   = "SOURCE_UNAVAILABLE"
	WarnMalformedRecord     = "MALFORMED_RECORD"
	WarnAmbiguousJoin       = "AMBIGUOUS_JOIN"
	WarnPersistenceConflict = "PERSISTENCE_CONFLICT"
)

// Warning is a user-visible degradation notice surfaced next to the data.
type Warning struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
