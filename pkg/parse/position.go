package parse

import (
	"unicode/utf8"

	"github.com/robinpath/robinpath/pkg/diag"
)

// CodePosition locates a node in source text. Rows and columns are 0-indexed
// and count runes; the end position is inclusive, pointing at the last rune of
// the node. These fields round-trip through JSON bit-exactly, which the
// AST-to-code engine depends on.
type CodePosition struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

// PositionOf converts a byte range within src to a CodePosition. A zero-width
// range yields an end column one less than the start column.
func PositionOf(src string, r diag.Ranging) CodePosition {
	startRow, startCol := rowCol(src, r.From)
	var endRow, endCol int
	if r.To > r.From {
		endRow, endCol = rowCol(src, lastRuneStart(src, r.To))
	} else {
		endRow, endCol = startRow, startCol-1
	}
	return CodePosition{startRow, startCol, endRow, endCol}
}

// Ranging converts the position back to a byte range within src. It reports
// false if the position does not fall within src.
func (p CodePosition) Ranging(src string) (diag.Ranging, bool) {
	from, ok := byteIndex(src, p.StartRow, p.StartCol)
	if !ok {
		return diag.Ranging{}, false
	}
	if p.EndRow < p.StartRow || (p.EndRow == p.StartRow && p.EndCol < p.StartCol) {
		// Zero-width position.
		return diag.Ranging{From: from, To: from}, true
	}
	end, ok := byteIndex(src, p.EndRow, p.EndCol)
	if !ok {
		return diag.Ranging{}, false
	}
	// Advance past the last rune to make the range end-exclusive.
	_, sz := utf8.DecodeRuneInString(src[end:])
	end += sz
	return diag.Ranging{From: from, To: end}, true
}

// Valid reports whether the position is plausible for any source: rows and
// columns non-negative and the end not before the start by more than the
// zero-width convention.
func (p CodePosition) Valid() bool {
	if p.StartRow < 0 || p.StartCol < 0 || p.EndRow < p.StartRow {
		return false
	}
	return true
}

func rowCol(src string, idx int) (int, int) {
	row, col := 0, 0
	for _, r := range src[:idx] {
		if r == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return row, col
}

func byteIndex(src string, row, col int) (int, bool) {
	curRow, curCol := 0, 0
	for i, r := range src {
		if curRow == row && curCol == col {
			return i, true
		}
		if r == '\n' {
			curRow++
			curCol = 0
		} else {
			curCol++
		}
	}
	if curRow == row && curCol == col {
		return len(src), true
	}
	return 0, false
}

func lastRuneStart(src string, end int) int {
	last := 0
	for i := range src[:end] {
		last = i
	}
	return last
}
