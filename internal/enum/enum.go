package enum

// ── Source channels (policy constrained: anything else collapses to non-web) ──

const (
	SourceWeb    = "web"
	SourceNonWeb = "non web"
)

// ── Delivery routes (configurable labels on the clients table) ──

var DeliveryRoutes = []string{"1", "2", "3", "4", "5"}

// IsValidRoute reports whether s is one of the known delivery route labels.
// The empty string is allowed (route not assigned yet).
func IsValidRoute(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range DeliveryRoutes {
		if s == r {
			return true
		}
	}
	return false
}

// ── Tables exposed to the grid (used for change notifications) ──

const (
	TableOrders  = "orders"
	TableManual  = "manual"
	TableClients = "clients"
	TablePrices  = "prices"
	TablePivot   = "pivot"
)

// IsValidTable reports whether s names a grid-facing table.
func IsValidTable(s string) bool {
	switch s {
	case TableOrders, TableManual, TableClients, TablePrices, TablePivot:
		return true
	}
	return false
}

// ManualOrderNumberBase is the floor for allocated order numbers: the first
// manually created row gets ManualOrderNumberBase+1 when no rows exist yet.
const ManualOrderNumberBase = 1000
