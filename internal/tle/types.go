// Package tle reads NORAD two-line element sets. glmag uses them to place the
// lightning mapper from its orbit instead of the nominal position in the export header.
package tle

import "time"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}
