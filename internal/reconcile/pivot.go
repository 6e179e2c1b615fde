package reconcile

import (
	"sort"

	"github.com/petits-plats/api/internal/model"
)

// PivotKey identifies one pivot row: one order for one customer on one
// channel with one note.
type PivotKey struct {
	OrderNumber int64  `json:"order_number"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Note        string `json:"note"`
}

// PivotRow holds summed quantities per dish for one key. Cells is zero-filled
// over the table's full dish list.
type PivotRow struct {
	PivotKey
	Cells map[string]int64 `json:"cells"`
	Total int64            `json:"total_quantity"`
}

// PivotTable is the order × dish view: one column per distinct dish observed
// in the whole row set.
type PivotTable struct {
	Dishes []string   `json:"dishes"`
	Rows   []PivotRow `json:"rows"`
}

// Pivot groups rows by (order_number, name, source, note) and sums quantity
// per dish. Dishes and rows come out sorted so the table is deterministic.
func Pivot(rows []model.OrderLine) *PivotTable {
	dishSet := make(map[string]bool)
	grouped := make(map[PivotKey]map[string]int64)
	for _, row := range rows {
		dishSet[row.Dish] = true
		key := PivotKey{
			OrderNumber: row.OrderNumber,
			Name:        row.Name,
			Source:      row.Source,
			Note:        row.Note,
		}
		if grouped[key] == nil {
			grouped[key] = make(map[string]int64)
		}
		grouped[key][row.Dish] += row.Quantity
	}

	dishes := make([]string, 0, len(dishSet))
	for dish := range dishSet {
		dishes = append(dishes, dish)
	}
	sort.Strings(dishes)

	table := &PivotTable{Dishes: dishes}
	for key, quantities := range grouped {
		row := PivotRow{PivotKey: key, Cells: make(map[string]int64, len(dishes))}
		for _, dish := range dishes {
			qty := quantities[dish]
			row.Cells[dish] = qty
			row.Total += qty
		}
		table.Rows = append(table.Rows, row)
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i].PivotKey, table.Rows[j].PivotKey
		if a.OrderNumber != b.OrderNumber {
			return a.OrderNumber < b.OrderNumber
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Note < b.Note
	})
	return table
}

// Flatten is the inverse transform: one row per (group, dish) pair with a
// positive quantity. Zero cells are discarded, which makes the round trip
// lossy only on explicit zeros. The edited pivot view is written back
// through this.
func (t *PivotTable) Flatten() []model.OrderLine {
	var rows []model.OrderLine
	for _, pr := range t.Rows {
		for _, dish := range t.Dishes {
			qty := pr.Cells[dish]
			if qty <= 0 {
				continue
			}
			rows = append(rows, model.OrderLine{
				OrderNumber: pr.OrderNumber,
				Name:        pr.Name,
				Dish:        dish,
				Quantity:    qty,
				Source:      pr.Source,
				Note:        pr.Note,
			})
		}
	}
	return rows
}
