package mempoolaudit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one pending transaction of the node's mempool listing.
type Entry struct {
	TxID      string   // transaction id, unique within a Listing
	Depends   []string // unconfirmed parent transaction ids
	Malformed string   // reason the metadata could not be read, empty when well-formed
}

// Eligible reports whether the entry is well-formed and has no unconfirmed dependencies.
func (e Entry) Eligible() bool {
	return e.Malformed == "" && len(e.Depends) == 0
}

// Listing is the pending transaction listing in the order the node returned it.
type Listing []Entry

// ParseListing decodes the output of "getrawmempool true".
//
// The document must be a JSON object keyed by transaction id; anything else
// returns ErrUnexpectedOutputShape. Key order is preserved. A repeated key
// replaces the earlier value in place. Entries whose metadata cannot be read are
// kept with a Malformed reason instead of failing the whole listing.
func ParseListing(doc json.RawMessage) (Listing, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedOutputShape, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrUnexpectedOutputShape
	}

	var (
		listing = Listing{}
		index   = make(map[string]int)
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedOutputShape, err)
		}
		txid, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedOutputShape, err)
		}

		entry := parseEntry(txid, value)
		if i, seen := index[txid]; seen {
			listing[i] = entry
			continue
		}

		index[txid] = len(listing)
		listing = append(listing, entry)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedOutputShape, err)
	}

	return listing, nil
}

// parseEntry reads the dependency list out of a single listing value.
func parseEntry(txid string, value json.RawMessage) Entry {
	entry := Entry{TxID: txid}

	var meta map[string]json.RawMessage
	if err := json.Unmarshal(value, &meta); err != nil || meta == nil {
		entry.Malformed = "metadata is not an object"
		return entry
	}

	depends, ok := meta["depends"]
	if !ok {
		entry.Malformed = "missing depends field"
		return entry
	}
	if bytes.Equal(bytes.TrimSpace(depends), []byte("null")) {
		entry.Malformed = "depends is null"
		return entry
	}

	if err := json.Unmarshal(depends, &entry.Depends); err != nil {
		entry.Depends = nil
		entry.Malformed = "depends is not an array of transaction ids"
	}

	return entry
}
