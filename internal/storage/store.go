// Package storage reads and writes the flat tables that are the source of
// truth between runs: platform orders, manually added orders, the clients
// table and the product price list. Plain CSV, no binary format; prices are
// written as unambiguous dot-decimal strings so they round-trip.
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/petits-plats/api/internal/model"
)

// Table file names, kept compatible with the historical layout.
const (
	OrdersFile  = "commandes.csv"
	ManualFile  = "commandes_additionnelles.csv"
	ClientsFile = "Clients.csv"
	PricesFile  = "produits_prices.csv"
)

var ordersHeader = []string{"order_number", "created_at", "customer_id", "Plat", "Nom", "quantity", "price", "source_name", "note"}
var clientsHeader = []string{"customer_id", "Nom", "email", "telephone", "adresse", "ville", "Itinéraire"}
var pricesHeader = []string{"id", "title", "price"}

// Store is the flat-file table store. A single mutex serializes writers;
// the interaction model is one user action at a time.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// LoadOrders reads one order table. A missing file is an empty table.
// Malformed rows are skipped with a warning; the rest of the table loads.
func (s *Store) LoadOrders(file string) ([]model.OrderLine, []model.Warning, error) {
	records, err := s.readAll(file)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	col := headerIndex(records[0])
	var rows []model.OrderLine
	var warnings []model.Warning
	for i, record := range records[1:] {
		row, err := orderLineFromRecord(record, col)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("%s line %d: %v", file, i+2, err),
			})
			continue
		}
		rows = append(rows, row)
	}
	return rows, warnings, nil
}

// SaveOrders overwrites one order table.
func (s *Store) SaveOrders(file string, rows []model.OrderLine) error {
	records := [][]string{ordersHeader}
	for _, row := range rows {
		createdAt := ""
		if !row.CreatedAt.IsZero() {
			createdAt = row.CreatedAt.Format(time.RFC3339)
		}
		price := ""
		if row.UnitPrice.Valid {
			price = row.UnitPrice.Decimal.String()
		}
		records = append(records, []string{
			strconv.FormatInt(row.OrderNumber, 10),
			createdAt,
			row.CustomerID,
			row.Dish,
			row.Name,
			strconv.FormatInt(row.Quantity, 10),
			price,
			row.Source,
			row.Note,
		})
	}
	return s.writeAll(file, records)
}

// LoadClients reads the clients table. A missing file is an empty table.
func (s *Store) LoadClients() ([]model.Customer, []model.Warning, error) {
	records, err := s.readAll(ClientsFile)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	col := headerIndex(records[0])
	var customers []model.Customer
	var warnings []model.Warning
	for i, record := range records[1:] {
		c := model.Customer{
			CustomerID: field(record, col, "customer_id"),
			Name:       strings.TrimSpace(field(record, col, "Nom")),
			Email:      field(record, col, "email"),
			Phone:      field(record, col, "telephone"),
			Address:    field(record, col, "adresse"),
			City:       field(record, col, "ville"),
			Route:      field(record, col, "Itinéraire"),
		}
		if c.Name == "" && c.CustomerID == "" {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("%s line %d has neither name nor customer_id", ClientsFile, i+2),
			})
			continue
		}
		customers = append(customers, c)
	}
	return customers, warnings, nil
}

// SaveClients overwrites the clients table.
func (s *Store) SaveClients(customers []model.Customer) error {
	records := [][]string{clientsHeader}
	for _, c := range customers {
		records = append(records, []string{c.CustomerID, c.Name, c.Email, c.Phone, c.Address, c.City, c.Route})
	}
	return s.writeAll(ClientsFile, records)
}

// LoadPrices reads the persisted price list. A missing file is an empty list.
func (s *Store) LoadPrices() ([]model.Price, []model.Warning, error) {
	records, err := s.readAll(PricesFile)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	col := headerIndex(records[0])
	var prices []model.Price
	var warnings []model.Warning
	for i, record := range records[1:] {
		id, err := strconv.ParseInt(field(record, col, "id"), 10, 64)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("%s line %d: bad product id", PricesFile, i+2),
			})
			continue
		}
		p := model.Price{ProductID: id, Title: field(record, col, "title")}
		if raw := field(record, col, "price"); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				warnings = append(warnings, model.Warning{
					Kind:    model.WarnMalformedRecord,
					Message: fmt.Sprintf("%s line %d: bad price %q", PricesFile, i+2, raw),
				})
			} else {
				p.Price = decimal.NullDecimal{Decimal: d, Valid: true}
			}
		}
		prices = append(prices, p)
	}
	return prices, warnings, nil
}

// SavePrices overwrites the price list.
func (s *Store) SavePrices(prices []model.Price) error {
	records := [][]string{pricesHeader}
	for _, p := range prices {
		price := ""
		if p.Price.Valid {
			price = p.Price.Decimal.String()
		}
		records = append(records, []string{strconv.FormatInt(p.ProductID, 10), p.Title, price})
	}
	return s.writeAll(PricesFile, records)
}

// --- row codecs ---

func headerIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func orderLineFromRecord(record []string, col map[string]int) (model.OrderLine, error) {
	var row model.OrderLine
	var err error

	if raw := field(record, col, "order_number"); raw != "" {
		row.OrderNumber, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return row, fmt.Errorf("bad order_number %q", raw)
		}
	}
	if raw := field(record, col, "created_at"); raw != "" {
		row.CreatedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return row, fmt.Errorf("bad created_at %q", raw)
		}
	}
	row.CustomerID = field(record, col, "customer_id")
	row.Dish = field(record, col, "Plat")
	if row.Dish == "" {
		return row, fmt.Errorf("missing dish")
	}
	row.Name = strings.TrimSpace(field(record, col, "Nom"))

	row.Quantity = 1
	if raw := field(record, col, "quantity"); raw != "" {
		row.Quantity, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || row.Quantity < 0 {
			return row, fmt.Errorf("bad quantity %q", raw)
		}
	}
	if raw := field(record, col, "price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return row, fmt.Errorf("bad price %q", raw)
		}
		row.UnitPrice = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	row.Source = field(record, col, "source_name")
	row.Note = field(record, col, "note")
	return row, nil
}

// --- file IO ---

func (s *Store) readAll(file string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return records, nil
}

// writeAll replaces a table atomically: write to a temp file in the same
// directory, then rename over the target.
func (s *Store) writeAll(file string, records [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, file+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", file, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", file, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, file)); err != nil {
		return fmt.Errorf("replace %s: %w", file, err)
	}
	return nil
}
