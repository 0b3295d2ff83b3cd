// Package catalog decodes the registry of work items a module embeds in its
// custom sections.
//
// The "aoc_puzzles" section is a run of six-character YYYYDD records. For
// every listed item an "aoc_examples_<year>_<day>" section holds zero or
// more examples, each a flag byte (0x10 part A, 0x01 part B), UTF-8 text and
// a NUL terminator.
//
//	c, err := catalog.FromWasm(data)
//	for cat, items := range c.ListWorkItems() {
//	    ...
//	}
package catalog
