// Package grid implements the canonical in-memory screen model: a
// rectangular cell array per pane plus a fixed-capacity scrollback ring of
// historical rows, and the byte serializer used for detach snapshots.
package grid

// Attribute bits carried by a cell.
const (
	AttrBold      = 0x01
	AttrUnderline = 0x02
	AttrItalic    = 0x04
	AttrReverse   = 0x08
)

// Flag bits carried by a cell.
const (
	FlagDefaultFG = 0x01
	FlagDefaultBG = 0x02
	// FlagContinuation marks a row that is the soft-wrapped continuation
	// of the previous logical line. Only meaningful on line flags.
	FlagContinuation = 0x01
)

// Cell is one styled display unit. It is plain data: copying the struct
// copies the cell.
type Cell struct {
	// Ch holds the cell's UTF-8 grapheme, NUL padded. An all-zero Ch
	// renders as a blank.
	Ch [5]byte
	// Width is the display width in columns, 1 or 2. Zero means blank.
	Width uint8
	// Fg and Bg are 256-color palette indexes, valid only when the
	// corresponding default flag is clear.
	Fg uint8
	Bg uint8
	// Attr is a mask of Attr* bits.
	Attr uint8
	// Flags is a mask of FlagDefault* bits.
	Flags uint8
}

// CellSize is the fixed serialized size of a Cell in bytes.
const CellSize = 10

// SetRune stores r as the cell's grapheme.
func (c *Cell) SetRune(r rune) {
	c.Ch = [5]byte{}
	copy(c.Ch[:], string(r))
}

// Rune returns the cell's grapheme as a string, or "" for a blank cell.
func (c *Cell) Rune() string {
	n := 0
	for n < 4 && c.Ch[n] != 0 {
		n++
	}
	return string(c.Ch[:n])
}

// IsBlank reports whether the cell renders as an unstyled blank: no
// grapheme (or a plain space), no attributes, and either default colors or
// the zero value.
func (c *Cell) IsBlank() bool {
	if c.Attr != 0 {
		return false
	}
	defaultColors := c.Flags&(FlagDefaultFG|FlagDefaultBG) == FlagDefaultFG|FlagDefaultBG
	zero := c.Flags == 0 && c.Fg == 0 && c.Bg == 0
	if !defaultColors && !zero {
		return false
	}
	return c.Ch[0] == 0 || (c.Ch[0] == ' ' && c.Ch[1] == 0)
}

func (c *Cell) encode(buf []byte) {
	copy(buf[0:5], c.Ch[:])
	buf[5] = c.Width
	buf[6] = c.Fg
	buf[7] = c.Bg
	buf[8] = c.Attr
	buf[9] = c.Flags
}

func (c *Cell) decode(buf []byte) {
	copy(c.Ch[:], buf[0:5])
	c.Width = buf[5]
	c.Fg = buf[6]
	c.Bg = buf[7]
	c.Attr = buf[8]
	c.Flags = buf[9]
}
