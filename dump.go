package sova

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeaders = DumpFlags(1 << iota)
	DumpCounts
	DumpRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

var dumpSep = strings.Repeat("=", 80)

// Dump renders the contents of every database as text, for debugging and
// test failure output.
func (env *Environment) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, db := range env.Databases() {
		db.dump(&buf, f)
	}
	return buf.String()
}

func (db *Database) dump(w *strings.Builder, f DumpFlags) {
	if f.Contains(DumpHeaders) {
		fmt.Fprintln(w, dumpSep)
		if f.Contains(DumpCounts) {
			if n, err := db.Len(); err == nil {
				fmt.Fprintf(w, "%s (%d rows)\n", db.name, n)
			} else {
				fmt.Fprintf(w, "%s (len failed: %v)\n", db.name, err)
			}
		} else {
			fmt.Fprintf(w, "%s\n", db.name)
		}
	}
	if !f.Contains(DumpRows) {
		return
	}
	c := db.Items()
	defer c.Close()
	var i int
	for c.Next() {
		fmt.Fprintf(w, "%s.%d: %v = %v\n", db.name, i, c.Key(), c.Value())
		i++
	}
	if err := c.Err(); err != nil {
		fmt.Fprintf(w, "%s: scan failed: %v\n", db.name, err)
	}
}
