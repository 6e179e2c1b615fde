package storage

import (
	"fmt"

	"github.com/petits-plats/api/internal/enum"
	"github.com/petits-plats/api/internal/model"
)

// Upsert merges an edited batch into an existing order table. Edited rows
// with an order number update the matching existing row; rows without one
// are appended with freshly allocated numbers. When the batch itself carries
// the same number twice, the last write wins and a conflict warning names
// the number. Existing row order is preserved.
func Upsert(existing, edited []model.OrderLine) ([]model.OrderLine, []model.Warning) {
	merged := make([]model.OrderLine, len(existing))
	copy(merged, existing)

	index := make(map[int64]int, len(merged))
	for i, row := range merged {
		if _, dup := index[row.OrderNumber]; !dup {
			index[row.OrderNumber] = i
		}
	}

	var warnings []model.Warning
	var toAllocate []model.OrderLine
	seenInBatch := make(map[int64]bool)

	for _, row := range edited {
		if row.OrderNumber == 0 {
			toAllocate = append(toAllocate, row)
			continue
		}
		if seenInBatch[row.OrderNumber] {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnPersistenceConflict,
				Message: fmt.Sprintf("order #%d appears more than once in the save; last write wins", row.OrderNumber),
			})
		}
		seenInBatch[row.OrderNumber] = true

		if i, ok := index[row.OrderNumber]; ok {
			merged[i] = row
		} else {
			index[row.OrderNumber] = len(merged)
			merged = append(merged, row)
		}
	}

	next := NextOrderNumber(merged)
	for _, row := range toAllocate {
		row.OrderNumber = next
		next++
		index[row.OrderNumber] = len(merged)
		merged = append(merged, row)
	}
	return merged, warnings
}

// ReplaceOrders writes an edited pivot back onto an order table: every order
// number present in the incoming batch has all of its existing lines replaced
// by the incoming lines for that number, so dishes removed in the pivot
// disappear. Lines without a number are appended with allocated numbers.
// Duplicate (order, dish) pairs within the batch collapse, last write wins,
// with a conflict warning. Existing rows keep their relative order.
func ReplaceOrders(existing, incoming []model.OrderLine) ([]model.OrderLine, []model.Warning) {
	var warnings []model.Warning

	type lineKey struct {
		number int64
		dish   string
	}
	groups := make(map[int64][]model.OrderLine)
	seen := make(map[lineKey]int)
	var order []int64
	var toAllocate []model.OrderLine

	for _, row := range incoming {
		if row.OrderNumber == 0 {
			toAllocate = append(toAllocate, row)
			continue
		}
		key := lineKey{row.OrderNumber, row.Dish}
		if i, dup := seen[key]; dup {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnPersistenceConflict,
				Message: fmt.Sprintf("order #%d dish %q appears more than once in the save; last write wins", row.OrderNumber, row.Dish),
			})
			groups[row.OrderNumber][i] = row
			continue
		}
		if _, ok := groups[row.OrderNumber]; !ok {
			order = append(order, row.OrderNumber)
		}
		seen[key] = len(groups[row.OrderNumber])
		groups[row.OrderNumber] = append(groups[row.OrderNumber], row)
	}

	var merged []model.OrderLine
	emitted := make(map[int64]bool)
	for _, row := range existing {
		group, replaced := groups[row.OrderNumber]
		if !replaced {
			merged = append(merged, row)
			continue
		}
		if !emitted[row.OrderNumber] {
			emitted[row.OrderNumber] = true
			merged = append(merged, group...)
		}
	}
	for _, number := range order {
		if !emitted[number] {
			emitted[number] = true
			merged = append(merged, groups[number]...)
		}
	}

	next := NextOrderNumber(merged)
	for _, row := range toAllocate {
		row.OrderNumber = next
		next++
		merged = append(merged, row)
	}
	return merged, warnings
}

// NextOrderNumber returns one past the highest order number across the given
// row sets, with a floor so the first allocated number is base+1.
func NextOrderNumber(rowSets ...[]model.OrderLine) int64 {
	max := int64(enum.ManualOrderNumberBase)
	for _, rows := range rowSets {
		for _, row := range rows {
			if row.OrderNumber > max {
				max = row.OrderNumber
			}
		}
	}
	return max + 1
}

// SplitBySource partitions rows by channel: rows from the literal web channel
// belong to the platform table, everything else to the manual table.
func SplitBySource(rows []model.OrderLine) (web, nonWeb []model.OrderLine) {
	for _, row := range rows {
		if row.Source == enum.SourceWeb {
			web = append(web, row)
		} else {
			nonWeb = append(nonWeb, row)
		}
	}
	return web, nonWeb
}
