// Package directory loads the customer directory. Two shapes exist upstream:
// a published spreadsheet CSV export (comma-delimited, header row) and a
// folder of per-customer semicolon-delimited single-line files keyed by
// customer id. Both map onto model.Customer.
package directory

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
)

// sheetColumns maps spreadsheet header variants to canonical field names.
// The export uses French headers; already-canonical lowercase names are
// accepted too so a re-imported Clients table parses the same way.
var sheetColumns = map[string]string{
	"customer_id": "customer_id",
	"email":       "email",
	"prénom":      "first_name",
	"prenom":      "first_name",
	"first_name":  "first_name",
	"nom":         "last_name",
	"last_name":   "last_name",
	"telephone":   "phone",
	"téléphone":   "phone",
	"phone":       "phone",
	"adresse":     "address",
	"address":     "address",
	"ville":       "city",
	"city":        "city",
	"itinéraire":  "route",
	"itineraire":  "route",
	"route":       "route",
}

// ParseSheet reads a comma-delimited export with a header row. Rows missing
// both a name and a customer id are skipped with a warning.
func ParseSheet(r io.Reader) ([]model.Customer, []model.Warning, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet header: %w", err)
	}
	fields := make(map[int]string, len(header))
	for i, h := range header {
		if canonical, ok := sheetColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			fields[i] = canonical
		}
	}

	var customers []model.Customer
	var warnings []model.Warning
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("sheet line %d unreadable: %v", line, err),
			})
			continue
		}

		var c model.Customer
		var first, last string
		for i, value := range record {
			value = strings.TrimSpace(value)
			switch fields[i] {
			case "customer_id":
				c.CustomerID = value
			case "email":
				c.Email = value
			case "first_name":
				first = value
			case "last_name":
				last = value
			case "phone":
				c.Phone = value
			case "address":
				c.Address = value
			case "city":
				c.City = value
			case "route":
				c.Route = value
			}
		}
		c.Name = DisplayName(first, last)

		if c.Name == "" && c.CustomerID == "" {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("sheet line %d has neither name nor customer_id", line),
			})
			continue
		}
		if !enum.IsValidRoute(c.Route) {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("sheet line %d: unknown route %q dropped", line, c.Route),
			})
			c.Route = ""
		}
		customers = append(customers, c)
	}
	return customers, warnings, nil
}

// DisplayName concatenates first and last name the way the directory does:
// both sides trimmed, joined with a single space, then trimmed again so a
// missing half leaves no stray space.
func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// customer file layout: email;created_at;updated_at;first;last;phone;address;city
const customerFileFields = 8

// ParseCustomerFile parses the single line of one per-customer file. The
// customer id comes from the file name, not the content.
func ParseCustomerFile(customerID, line string) (model.Customer, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), ";")
	if len(parts) < customerFileFields {
		return model.Customer{}, fmt.Errorf("expected %d fields, got %d", customerFileFields, len(parts))
	}
	return model.Customer{
		CustomerID: customerID,
		Email:      strings.TrimSpace(parts[0]),
		Name:       DisplayName(parts[3], parts[4]),
		Phone:      strings.TrimSpace(parts[5]),
		Address:    strings.TrimSpace(parts[6]),
		City:       strings.TrimSpace(parts[7]),
	}, nil
}

// LoadCustomerFiles reads every file in dir as one directory entry. Unreadable
// or malformed files are skipped with a warning. A missing directory is an
// empty snapshot, not an error.
func LoadCustomerFiles(dir string) ([]model.Customer, []model.Warning) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []model.Warning{{
			Kind:    model.WarnSourceUnavailable,
			Message: fmt.Sprintf("client files dir unreadable: %v", err),
		}}
	}

	var customers []model.Customer
	var warnings []model.Warning
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("client file %s unreadable: %v", entry.Name(), err),
			})
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		firstLine, _, _ := strings.Cut(decodeFlexible(raw), "\n")
		c, err := ParseCustomerFile(id, firstLine)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnMalformedRecord,
				Message: fmt.Sprintf("client file %s: %v", entry.Name(), err),
			})
			continue
		}
		customers = append(customers, c)
	}
	return customers, warnings
}

// decodeFlexible handles the encodings seen in the wild: UTF-8, UTF-8 with
// BOM, and latin1. Invalid UTF-8 is reinterpreted as latin1, which can always
// decode.
func decodeFlexible(b []byte) string {
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// Merge concatenates directory snapshots in priority order and deduplicates
// by display name, keeping the first occurrence. Entries without a name are
// kept as-is; they can still join by id.
func Merge(snapshots ...[]model.Customer) []model.Customer {
	var merged []model.Customer
	seen := make(map[string]bool)
	for _, snapshot := range snapshots {
		for _, c := range snapshot {
			if c.Name != "" {
				if seen[c.Name] {
					continue
				}
				seen[c.Name] = true
			}
			merged = append(merged, c)
		}
	}
	return merged
}
