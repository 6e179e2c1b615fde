// Package reconcile joins order rows against the customer directory, prices
// them and aggregates. Every function here is a pure transform of its
// inputs; nothing is cached between runs.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/model"
)

// Directory indexes a customer snapshot for joining. The id lookup covers
// every entry with an id; the name lookup only covers names that occur
// exactly once, ambiguous names are excluded and surfaced as warnings.
type Directory struct {
	byID   map[string]model.Customer
	byName map[string]model.Customer

	// Ambiguous lists display names excluded from name-based joins.
	Ambiguous []string
}

// NewDirectory builds the join lookups from a directory snapshot.
func NewDirectory(customers []model.Customer) (*Directory, []model.Warning) {
	d := &Directory{
		byID:   make(map[string]model.Customer),
		byName: make(map[string]model.Customer),
	}

	nameCount := make(map[string]int)
	for _, c := range customers {
		if c.CustomerID != "" {
			if _, exists := d.byID[c.CustomerID]; !exists {
				d.byID[c.CustomerID] = c
			}
		}
		if name := strings.TrimSpace(c.Name); name != "" {
			nameCount[name]++
		}
	}

	for _, c := range customers {
		name := strings.TrimSpace(c.Name)
		if name == "" || nameCount[name] != 1 {
			continue
		}
		d.byName[name] = c
	}

	var warnings []model.Warning
	for name, n := range nameCount {
		if n > 1 {
			d.Ambiguous = append(d.Ambiguous, name)
		}
	}
	sort.Strings(d.Ambiguous)
	for _, name := range d.Ambiguous {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarnAmbiguousJoin,
			Message: fmt.Sprintf("%d directory entries named %q; excluded from name joins", nameCount[name], name),
		})
	}
	return d, warnings
}

// ByID returns the directory entry with the given customer id.
func (d *Directory) ByID(id string) (model.Customer, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// ByName returns the directory entry with the given display name, if that
// name is unique within the snapshot.
func (d *Directory) ByName(name string) (model.Customer, bool) {
	c, ok := d.byName[strings.TrimSpace(name)]
	return c, ok
}

// Resolve finds the customer for one order row: the id join wins when the id
// is present and known, then the unique-name join, then nothing. Customer
// fields already carried by the row override joined values field by field.
func (d *Directory) Resolve(row model.OrderLine) model.Customer {
	override := model.Customer{
		CustomerID: row.CustomerID,
		Name:       strings.TrimSpace(row.Name),
	}

	var idJoined, nameJoined model.Customer
	if row.CustomerID != "" {
		idJoined, _ = d.ByID(row.CustomerID)
	}
	name := override.Name
	if name == "" {
		name = idJoined.Name
	}
	if name != "" {
		nameJoined, _ = d.ByName(name)
	}
	return mergeCustomer(override, idJoined, nameJoined)
}

// mergeCustomer resolves same-named field conflicts by taking the first
// non-empty value in precedence order, independently per field.
func mergeCustomer(override, idJoined, nameJoined model.Customer) model.Customer {
	return model.Customer{
		CustomerID: firstNonEmpty(override.CustomerID, idJoined.CustomerID, nameJoined.CustomerID),
		Name:       firstNonEmpty(override.Name, idJoined.Name, nameJoined.Name),
		Email:      firstNonEmpty(override.Email, idJoined.Email, nameJoined.Email),
		Phone:      firstNonEmpty(override.Phone, idJoined.Phone, nameJoined.Phone),
		Address:    firstNonEmpty(override.Address, idJoined.Address, nameJoined.Address),
		City:       firstNonEmpty(override.City, idJoined.City, nameJoined.City),
		Route:      firstNonEmpty(override.Route, idJoined.Route, nameJoined.Route),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// PriceMap maps dish names to unit prices.
type PriceMap map[string]decimal.Decimal

// BuildPriceMap collects the first non-null price seen per dish across the
// row set. Later conflicting prices for the same dish are ignored; this
// first-seen policy is deliberate and order-deterministic.
func BuildPriceMap(rows []model.OrderLine) PriceMap {
	prices := make(PriceMap)
	for _, row := range rows {
		if !row.UnitPrice.Valid {
			continue
		}
		if _, exists := prices[row.Dish]; !exists {
			prices[row.Dish] = row.UnitPrice.Decimal
		}
	}
	return prices
}

// Fill adds prices from a secondary source (the persisted price list) for
// dishes the row set itself never priced.
func (m PriceMap) Fill(prices []model.Price) {
	for _, p := range prices {
		if !p.Price.Valid {
			continue
		}
		if _, exists := m[p.Title]; !exists {
			m[p.Title] = p.Price.Decimal
		}
	}
}

// Enrich joins rows against the directory and prices them. Rows without a
// price after backfill get 0 so line_total is always well-defined.
func Enrich(rows []model.OrderLine, dir *Directory, prices PriceMap) []model.EnrichedRow {
	enriched := make([]model.EnrichedRow, 0, len(rows))
	for _, row := range rows {
		customer := dir.Resolve(row)

		unitPrice := decimal.Zero
		switch {
		case row.UnitPrice.Valid:
			unitPrice = row.UnitPrice.Decimal
		default:
			if p, ok := prices[row.Dish]; ok {
				unitPrice = p
			}
		}

		qty := decimal.NewFromInt(row.Quantity)
		enriched = append(enriched, model.EnrichedRow{
			OrderNumber: row.OrderNumber,
			Dish:        row.Dish,
			Name:        customer.Name,
			Quantity:    row.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   unitPrice.Mul(qty),
			Source:      row.Source,
			Note:        row.Note,
			Route:       customer.Route,
			Email:       customer.Email,
			Phone:       customer.Phone,
			Address:     customer.Address,
			City:        customer.City,
		})
	}
	return enriched
}

// GrandTotal sums line totals over the full row set. Addition over decimals
// is associative, so the result does not depend on row order.
func GrandTotal(rows []model.EnrichedRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.LineTotal)
	}
	return total
}
