// Package ingest normalizes raw commerce orders into flat line rows and
// applies the weekly delivery window.
package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/shopify"
)

// NormalizeSource collapses every channel but the literal "web" into
// "non web". This is policy inherited from the order flow, not a default.
func NormalizeSource(s string) string {
	if s == enum.SourceWeb {
		return enum.SourceWeb
	}
	return enum.SourceNonWeb
}

// Normalize flattens raw orders into one row per line item, copying the
// order-level fields onto each row. Malformed records are skipped with a
// warning; a bad record never aborts the batch.
func Normalize(orders []shopify.Order) ([]model.OrderLine, []model.Warning) {
	var rows []model.OrderLine
	var warnings []model.Warning

	for _, o := range orders {
		if o.OrderNumber == 0 {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: "skipped order without order_number",
			})
			continue
		}

		createdAt, err := parseCreatedAt(o.CreatedAt)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("skipped order #%d: bad created_at %q", o.OrderNumber, o.CreatedAt),
			})
			continue
		}

		customerID := ""
		if o.Customer != nil && o.Customer.ID != 0 {
			customerID = strconv.FormatInt(o.Customer.ID, 10)
		}
		source := NormalizeSource(o.SourceName)

		for _, item := range o.LineItems {
			if item.Name == "" {
				warnings = append(warnings, model.Warning{
					Kind:    model.WarnMalformedRecord,
					Message: fmt.Sprintf("skipped unnamed line item on order #%d", o.OrderNumber),
				})
				continue
			}

			quantity := item.Quantity
			if quantity <= 0 {
				quantity = 1
			}

			var price decimal.NullDecimal
			if item.Price != "" {
				d, err := decimal.NewFromString(item.Price)
				if err != nil {
					warnings = append(warnings, model.Warning{
						Kind:    model.WarnMalformedRecord,
						Message: fmt.Sprintf("unreadable price %q on order #%d item %q", item.Price, o.OrderNumber, item.Name),
					})
				} else {
					price = decimal.NullDecimal{Decimal: d, Valid: true}
				}
			}

			rows = append(rows, model.OrderLine{
				OrderNumber: o.OrderNumber,
				CreatedAt:   createdAt,
				CustomerID:  customerID,
				Dish:        item.Name,
				Quantity:    quantity,
				UnitPrice:   price,
				Source:      source,
				Note:        o.Note,
			})
		}
	}
	return rows, warnings
}

func parseCreatedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Some exports carry a bare date.
	return time.Parse("2006-01-02", s)
}

// deliveryDatePattern matches the first DD/MM token anywhere in a dish name.
var deliveryDatePattern = regexp.MustCompile(`(\d{2}/\d{2})`)

// ExtractDeliveryDate scans a dish name for a DD/MM token and combines it
// with today's year, at midnight in today's location so comparisons against
// WeekStart stay within one calendar. Best-effort heuristic: the first match
// scanning left to right wins, and impossible calendar dates (31/02) report
// ok=false.
func ExtractDeliveryDate(dish string, today time.Time) (time.Time, bool) {
	m := deliveryDatePattern.FindStringSubmatch(dish)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1][:2])
	month, _ := strconv.Atoi(m[1][3:])
	t := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, today.Location())
	// time.Date normalizes out-of-range components; a changed day or month
	// means the token was not a real calendar date.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

// WeekStart returns the Monday of t's calendar week, at midnight in t's
// location.
func WeekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return midnight.AddDate(0, 0, -offset)
}

// FilterCurrentWindow keeps rows created on or after January 1 of today's
// year whose extracted delivery date falls on or after the Monday of today's
// week. Rows without a delivery date are dropped, not kept as undated.
// Filtering an already-filtered set yields the same set.
func FilterCurrentWindow(rows []model.OrderLine, today time.Time) []model.OrderLine {
	yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
	weekStart := WeekStart(today)

	var kept []model.OrderLine
	for _, row := range rows {
		if row.CreatedAt.Before(yearStart) {
			continue
		}
		delivery, ok := ExtractDeliveryDate(row.Dish, today)
		if !ok || delivery.Before(weekStart) {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
