// Package itemtype resolves which configured item type should claim a
// delivered file.
//
// Each item type definition carries an extension list, a work path template
// name, a resolution order, and optional manifest field filters. The
// Registry compiles the filters once at load time so malformed filter
// strings and unknown operator names fail configuration validation instead
// of silently never matching.
//
// Scoring preserves the legacy arithmetic: a candidate whose filters all
// match moves up by its match count, a candidate with any failed filter is
// pushed behind every unfiltered candidate by adding the highest resolution
// order seen in the base list.
package itemtype
