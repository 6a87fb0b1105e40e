package deviceattrs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"forensicvault/pkg/domain"
)

// Mode selects how keys outside the record's own device type are handled.
type Mode int

const (
	// Permissive keeps any key known to some device type, regardless of the
	// record's own type. This matches how evidence forms have always been
	// stored.
	Permissive Mode = iota
	// Strict keeps only the record's own fields and rejects keys that belong
	// to other device types with InvalidDeviceAttributesError.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

// Resolver normalizes attribute bags for a configured Mode. The zero value is
// a permissive resolver.
type Resolver struct {
	mode Mode
}

// NewResolver constructs a resolver operating in mode.
func NewResolver(mode Mode) Resolver {
	return Resolver{mode: mode}
}

// Mode returns the configured mode.
func (r Resolver) Mode() Mode { return r.mode }

// Normalize applies the permissive rules to raw. It never fails.
func Normalize(deviceType domain.DeviceType, raw map[string]any) map[string]any {
	out, _ := Resolver{}.Normalize(deviceType, raw)
	return out
}

// Normalize returns a new bag holding only legal keys with trimmed, non-empty
// values. Flag fields become true, SIM parallel arrays are zipped into
// sim_cards, and an existing sim_cards list is re-normalized when no arrays
// are submitted. A nil map is returned when nothing survives.
//
// Normalize is idempotent: feeding its output back in yields the same bag.
func (r Resolver) Normalize(deviceType domain.DeviceType, raw map[string]any) (map[string]any, error) {
	if r.mode == Strict && !deviceType.Known() {
		return nil, domain.InvalidDeviceAttributesError{DeviceType: deviceType}
	}
	out := make(map[string]any)
	var rejected []string
	for _, rawKey := range orderedKeys(raw) {
		value := raw[rawKey]
		key := strings.TrimSuffix(rawKey, "[]")
		kind, known := union[key]
		if !known {
			continue
		}
		if r.mode == Strict {
			own, ok := ownField(deviceType, key)
			if !ok {
				if flag(value) {
					rejected = append(rejected, key)
				}
				continue
			}
			kind = own
		}
		switch kind {
		case KindFlag:
			if flag(value) {
				out[key] = true
			}
		default:
			if s, ok := scalar(value); ok {
				out[key] = s
			}
		}
	}

	cards, submitted := zipSIMCards(raw)
	if !submitted {
		cards = existingSIMCards(raw[SIMCardsKey])
	}
	if len(cards) > 0 {
		if r.mode == Strict && !AcceptsSIMCards(deviceType) {
			rejected = append(rejected, SIMCardsKey)
		} else {
			out[SIMCardsKey] = cards
		}
	}

	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, domain.InvalidDeviceAttributesError{DeviceType: deviceType, Keys: dedupe(rejected)}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// orderedKeys sorts the bag's keys by field name with each "name[]" form
// ahead of the plain "name", so a usable plain value overrides the
// bracketed one whatever the map order.
func orderedKeys(raw map[string]any) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		bi, bj := strings.TrimSuffix(keys[i], "[]"), strings.TrimSuffix(keys[j], "[]")
		if bi != bj {
			return bi < bj
		}
		return strings.HasSuffix(keys[i], "[]")
	})
	return keys
}

// zipSIMCards builds sub-records from the parallel sim_* arrays. The second
// return reports whether any array was submitted at all.
func zipSIMCards(raw map[string]any) ([]map[string]string, bool) {
	columns := make([][]string, len(simColumns))
	submitted := false
	longest := 0
	for i, col := range simColumns {
		values, ok := lookupList(raw, col.input)
		if !ok {
			continue
		}
		submitted = true
		columns[i] = values
		if len(values) > longest {
			longest = len(values)
		}
	}
	if !submitted {
		return nil, false
	}
	var cards []map[string]string
	for idx := 0; idx < longest; idx++ {
		card := make(map[string]string)
		for i, col := range simColumns {
			if idx < len(columns[i]) {
				if v := strings.TrimSpace(columns[i][idx]); v != "" {
					card[col.field] = v
				}
			}
		}
		if len(card) > 0 {
			cards = append(cards, card)
		}
	}
	return cards, true
}

func lookupList(raw map[string]any, key string) ([]string, bool) {
	value, ok := raw[key+"[]"]
	if !ok {
		value, ok = raw[key]
	}
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, _ := scalar(item)
			out = append(out, s)
		}
		return out, true
	case nil:
		return nil, false
	default:
		s, _ := scalar(v)
		return []string{s}, true
	}
}

func existingSIMCards(value any) []map[string]string {
	var rows []map[string]string
	switch v := value.(type) {
	case []map[string]string:
		rows = v
	case []map[string]any:
		for _, row := range v {
			rows = append(rows, stringMap(row))
		}
	case []any:
		for _, item := range v {
			switch row := item.(type) {
			case map[string]string:
				rows = append(rows, row)
			case map[string]any:
				rows = append(rows, stringMap(row))
			}
		}
	}
	var cards []map[string]string
	for _, row := range rows {
		card := make(map[string]string)
		for _, col := range simColumns {
			if v := strings.TrimSpace(row[col.field]); v != "" {
				card[col.field] = v
			}
		}
		if len(card) > 0 {
			cards = append(cards, card)
		}
	}
	return cards
}

func stringMap(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := scalar(v); ok {
			out[k] = s
		}
	}
	return out
}

// scalar renders a submitted value as a trimmed string. Lists contribute their
// last element, as a form post with repeated keys does.
func scalar(value any) (string, bool) {
	var s string
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case bool:
		if !v {
			return "", false
		}
		s = "true"
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprintf("%d", v)
	case fmt.Stringer:
		s = v.String()
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return scalar(v[len(v)-1])
	case []any:
		if len(v) == 0 {
			return "", false
		}
		return scalar(v[len(v)-1])
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func flag(value any) bool {
	if b, ok := value.(bool); ok {
		return b
	}
	_, ok := scalar(value)
	return ok
}

func dedupe(sorted []string) []string {
	out := make([]string, 0, len(sorted))
	for i, s := range sorted {
		if i > 0 && sorted[i-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
