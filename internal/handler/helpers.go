package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/ingest"
	"github.com/petits-plats/api/internal/model"
	"github.com/petits-plats/api/internal/ws"
)

// Broadcaster notifies open grids that a table changed. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTable(table string, event ws.Event)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// broadcastChange tells every grid watching table to reload.
func broadcastChange(b Broadcaster, table string) {
	if b == nil {
		return
	}
	b.BroadcastToTable(table, ws.Event{Type: "table_changed", Payload: json.RawMessage(fmt.Sprintf(`{"table":%q}`, table))})
}

// nonNilWarnings keeps the warnings field a JSON array, never null.
func nonNilWarnings(warnings []model.Warning) []model.Warning {
	if warnings == nil {
		return []model.Warning{}
	}
	return warnings
}

// --- wire row shapes ---

// orderRow is one order line as the grid sees it. unit_price is null when
// the price is not known yet (it gets backfilled in the summary view).
type orderRow struct {
	OrderNumber int64   `json:"order_number"`
	CreatedAt   string  `json:"created_at,omitempty"`
	CustomerID  string  `json:"customer_id,omitempty"`
	Dish        string  `json:"dish"`
	Name        string  `json:"name"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   *string `json:"unit_price"`
	Source      string  `json:"source"`
	Note        string  `json:"note"`
}

func toOrderRow(row model.OrderLine) orderRow {
	out := orderRow{
		OrderNumber: row.OrderNumber,
		CustomerID:  row.CustomerID,
		Dish:        row.Dish,
		Name:        row.Name,
		Quantity:    row.Quantity,
		Source:      row.Source,
		Note:        row.Note,
	}
	if !row.CreatedAt.IsZero() {
		out.CreatedAt = row.CreatedAt.Format(time.RFC3339)
	}
	if row.UnitPrice.Valid {
		s := row.UnitPrice.Decimal.String()
		out.UnitPrice = &s
	}
	return out
}

func toOrderRows(rows []model.OrderLine) []orderRow {
	out := make([]orderRow, len(rows))
	for i, row := range rows {
		out[i] = toOrderRow(row)
	}
	return out
}

func (r orderRow) toModel() (model.OrderLine, error) {
	if strings.TrimSpace(r.Dish) == "" {
		return model.OrderLine{}, fmt.Errorf("dish is required")
	}
	if r.Quantity < 0 {
		return model.OrderLine{}, fmt.Errorf("quantity must be >= 0")
	}
	row := model.OrderLine{
		OrderNumber: r.OrderNumber,
		CustomerID:  r.CustomerID,
		Dish:        r.Dish,
		Name:        strings.TrimSpace(r.Name),
		Quantity:    r.Quantity,
		Source:      ingest.NormalizeSource(r.Source),
		Note:        r.Note,
	}
	if row.Quantity == 0 {
		row.Quantity = 1
	}
	if r.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return model.OrderLine{}, fmt.Errorf("bad created_at %q", r.CreatedAt)
		}
		row.CreatedAt = t
	}
	if r.UnitPrice != nil && *r.UnitPrice != "" {
		d, err := decimal.NewFromString(*r.UnitPrice)
		if err != nil || d.IsNegative() {
			return model.OrderLine{}, fmt.Errorf("bad unit_price %q", *r.UnitPrice)
		}
		row.UnitPrice = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return row, nil
}

// rowsToModel converts a whole edited grid; a bad row rejects the save, the
// grid keeps the buffer so the user can fix it.
func rowsToModel(in []orderRow) ([]model.OrderLine, error) {
	out := make([]model.OrderLine, len(in))
	for i, r := range in {
		row, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = row
	}
	return out, nil
}

// clientRow is one directory entry as the grid sees it.
type clientRow struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Route      string `json:"route"`
}

func toClientRow(c model.Customer) clientRow {
	return clientRow(c)
}

func toClientRows(customers []model.Customer) []clientRow {
	out := make([]clientRow, len(customers))
	for i, c := range customers {
		out[i] = toClientRow(c)
	}
	return out
}
