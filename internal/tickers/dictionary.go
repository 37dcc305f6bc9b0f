// Package tickers holds the ticker universe and the dictionary used to detect
// ticker mentions in post and comment text.
package tickers

import (
	"regexp"
	"sort"
	"strings"
)

// Constituent is one entry of the reference ticker list.
type Constituent struct {
	Symbol   string `json:"symbol"`
	Security string `json:"security"`
}

// Curation is hand-maintained configuration data applied on top of the
// reference list.
type Curation struct {
	// Exclude drops symbols that collide with common words or abbreviations.
	Exclude []string
	// Additions adds symbols missing from the reference list, keyed to a name.
	Additions map[string]string
	// NameOverrides replaces the security name used for matching.
	NameOverrides map[string]string
	// Aliases adds extra phrases that count as a mention.
	Aliases map[string][]string
	// SymbolOnly matches only the symbol and cashtag, never the name.
	SymbolOnly []string
	// TrailingSpace lists aliases that only count when followed by a space.
	TrailingSpace []string
	// Suffixes are stripped from security names before matching.
	Suffixes []string
}

// DefaultCuration is the curation applied to the S&P 500 list.
var DefaultCuration = Curation{
	Exclude: []string{
		"ARE", "ALL", "CAT", "COST", "DD", "FAST", "IT", "PEAK", "WELL", "HAS",
		"MA", "MET", "RE", "INFO", "KEY", "KEYS", "LOW", "TAP", "POOL", "NOW",
		"SO", "SEE", "MAR", "GOOG",
	},
	Additions: map[string]string{
		"ARKK": "ARK Innovation",
	},
	NameOverrides: map[string]string{
		"SPGI": "S&P",
	},
	Aliases: map[string][]string{
		"SPGI":  {"S&P500"},
		"NDAQ":  {"NASDAQ100"},
		"DOW":   {"DJIA", "DJI"},
		"GOOGL": {"alphabet", "google"},
		"BRK.B": {"berkshire"},
	},
	SymbolOnly:    []string{"TGT"},
	TrailingSpace: []string{"google"},
	Suffixes: []string{
		` & Co\.$`,
		` Co\. Inc\.`,
		` Co\.$`,
		` Company$`,
		` Ltd$`,
		` Ltd\.$`,
		`, Inc\.$`,
		` Inc\.$`,
		` Inc$`,
		` Corp\.$`,
		` Corp$`,
		` Co$`,
		` Corporation$`,
		`\.com$`,
	},
}

// NormalizeSymbol maps a reference-list symbol to the form used by market
// data providers (BRK.B → BRK-B).
func NormalizeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.TrimSpace(symbol), ".", "-")
}

type entry struct {
	symbol  string
	pattern *regexp.Regexp
}

// Dictionary maps ticker symbols to compiled match patterns. It is built once
// and never mutated.
type Dictionary struct {
	entries []entry
}

// NewDictionary builds the dictionary from the reference list and curation.
// One-letter symbols are skipped.
func NewDictionary(constituents []Constituent, c Curation) (*Dictionary, error) {
	names := make(map[string]string, len(constituents))
	for _, con := range constituents {
		sym := strings.TrimSpace(con.Symbol)
		if len(sym) <= 1 {
			continue
		}
		names[sym] = strings.TrimSpace(con.Security)
	}
	for sym, name := range c.Additions {
		names[sym] = name
	}
	for _, sym := range c.Exclude {
		delete(names, sym)
	}
	for sym, name := range c.NameOverrides {
		if _, ok := names[sym]; ok {
			names[sym] = name
		}
	}

	suffixes := make([]*regexp.Regexp, 0, len(c.Suffixes))
	for _, s := range c.Suffixes {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, err
		}
		suffixes = append(suffixes, re)
	}
	symbolOnly := toSet(c.SymbolOnly)
	trailing := toSet(c.TrailingSpace)

	d := &Dictionary{entries: make([]entry, 0, len(names))}
	for sym, name := range names {
		alts := []string{`\b` + regexp.QuoteMeta(sym) + `\b`}
		if _, ok := symbolOnly[sym]; !ok && name != "" {
			for _, re := range suffixes {
				name = re.ReplaceAllString(name, "")
			}
			alts = append(alts, `\b`+regexp.QuoteMeta(name)+`\b`)
		}
		for _, alias := range c.Aliases[sym] {
			if _, ok := trailing[alias]; ok {
				alts = append(alts, `\b`+regexp.QuoteMeta(alias)+` `)
				continue
			}
			alts = append(alts, `\b`+regexp.QuoteMeta(alias)+`\b`)
		}
		alts = append(alts, `\$`+regexp.QuoteMeta(sym)+`\b`)

		re, err := regexp.Compile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
		if err != nil {
			return nil, err
		}
		d.entries = append(d.entries, entry{symbol: NormalizeSymbol(sym), pattern: re})
	}
	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].symbol < d.entries[j].symbol })
	return d, nil
}

func toSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}

// Len returns the number of symbols in the dictionary.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Symbols returns the normalized symbols in lexical order.
func (d *Dictionary) Symbols() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.symbol
	}
	return out
}

// Match returns the sorted set of symbols mentioned in text. A symbol
// mentioned several times is returned once.
func (d *Dictionary) Match(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, e := range d.entries {
		if e.pattern.MatchString(text) {
			out = append(out, e.symbol)
		}
	}
	return out
}

// Universe returns the normalized symbols of the reference list, in list
// order, without duplicates.
func Universe(constituents []Constituent) []string {
	seen := make(map[string]struct{}, len(constituents))
	out := make([]string, 0, len(constituents))
	for _, c := range constituents {
		sym := NormalizeSymbol(c.Symbol)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// Bound keeps the symbols that belong to universe, in their original order.
// An empty universe leaves symbols unbounded.
func Bound(symbols, universe []string) []string {
	if len(universe) == 0 {
		return symbols
	}
	in := toSet(universe)
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := in[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
