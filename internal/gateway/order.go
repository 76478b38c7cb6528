package gateway

import (
	"encoding/json"
	"sort"
)

// SortSnapshot orders docs by o. Numbers compare numerically, strings
// lexically (ISO timestamps sort chronologically), missing fields first.
// Ties fall back to document ID so the order is stable across reloads.
func SortSnapshot(docs Snapshot, o Order) {
	if o.Field == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return
	}
	keys := make(map[string]sortKey, len(docs))
	for _, d := range docs {
		keys[d.ID] = extractKey(d.Data, o.Field)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := keys[docs[i].ID].compare(keys[docs[j].ID])
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if o.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
}

type sortKey struct {
	kind int // 0 missing, 1 number, 2 string
	num  float64
	str  string
}

func extractKey(data json.RawMessage, field string) sortKey {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return sortKey{}
	}
	raw, ok := fields[field]
	if !ok {
		return sortKey{}
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return sortKey{kind: 1, num: n}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return sortKey{kind: 2, str: s}
	}
	return sortKey{}
}

func (k sortKey) compare(o sortKey) int {
	if k.kind != o.kind {
		return k.kind - o.kind
	}
	switch k.kind {
	case 1:
		switch {
		case k.num < o.num:
			return -1
		case k.num > o.num:
			return 1
		}
	case 2:
		switch {
		case k.str < o.str:
			return -1
		case k.str > o.str:
			return 1
		}
	}
	return 0
}
