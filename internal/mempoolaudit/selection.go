package mempoolaudit

// Selection is the work list derived from a Listing.
type Selection struct {
	TxIDs     []string // eligible transaction ids in listing order, truncated to the limit
	Malformed []Entry  // entries excluded because their metadata could not be read
}

// Select returns the identifiers of every eligible entry, in listing order,
// together with the malformed entries that were skipped. When limit is
// positive the identifiers are truncated to the first limit elements; malformed
// entries are always reported in full.
func Select(listing Listing, limit int) Selection {
	sel := Selection{TxIDs: []string{}}
	for _, entry := range listing {
		switch {
		case entry.Malformed != "":
			sel.Malformed = append(sel.Malformed, entry)
		case entry.Eligible():
			sel.TxIDs = append(sel.TxIDs, entry.TxID)
		}
	}

	if limit > 0 && len(sel.TxIDs) > limit {
		sel.TxIDs = sel.TxIDs[:limit]
	}

	return sel
}

// SelectEligible returns the identifiers of the entries with no dependencies,
// in listing order, truncated to limit when limit is positive. A limit of zero
// means no limit.
func SelectEligible(listing Listing, limit int) []string {
	return Select(listing, limit).TxIDs
}
