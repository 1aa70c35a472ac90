// Package symbol turns raw ticker strings from any provider into a canonical
// comparison key.
//
// Providers disagree on naming: one feed says "BINANCE:BTCUSDT", the curated
// list says "BTCUSD", a third says "btc-usd". All of them normalize to keys
// whose alias sets intersect, which is what every other package uses to decide
// that two records describe the same instrument.
package symbol

import (
	"strings"
)

// Key is an uppercase alphanumeric instrument key.
type Key string

const (
	usd  = "USD"
	usdt = "USDT"
)

// Normalize converts a raw ticker into a Key. Everything up to and including
// the last ':' is dropped (exchange prefix), then every rune outside [A-Z0-9]
// is removed.
func Normalize(raw string) Key {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return Key(b.String())
}

func (k Key) String() string { return string(k) }

// Aliases returns every key considered equivalent to k, k first.
// USDT and USD quoted forms are interchangeable; any other key is its own
// sole alias. The empty key has no aliases.
func (k Key) Aliases() []Key {
	s := string(k)
	switch {
	case s == "":
		return nil
	case strings.HasSuffix(s, usdt):
		return []Key{k, Key(strings.TrimSuffix(s, usdt) + usd)}
	case strings.HasSuffix(s, usd):
		return []Key{k, Key(strings.TrimSuffix(s, usd) + usdt)}
	default:
		return []Key{k}
	}
}

// Match reports whether any alias of a equals any alias of b.
func Match(a, b Key) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	for _, x := range a.Aliases() {
		for _, y := range b.Aliases() {
			if x == y {
				return true
			}
		}
	}
	return false
}

// MatchRaw normalizes both tickers and compares them with Match.
func MatchRaw(a, b string) bool {
	return Match(Normalize(a), Normalize(b))
}

// Set is a set of keys that answers membership by alias.
type Set map[Key]struct{}

func NewSet(keys ...Key) Set {
	s := make(Set, len(keys)*2)
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k and all of its aliases.
func (s Set) Add(k Key) {
	for _, a := range k.Aliases() {
		s[a] = struct{}{}
	}
}

// Has reports whether k or any alias of k was added.
func (s Set) Has(k Key) bool {
	for _, a := range k.Aliases() {
		if _, ok := s[a]; ok {
			return true
		}
	}
	return false
}
