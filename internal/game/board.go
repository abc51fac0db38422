package game

import "encoding/json"

const (
	Rows = 6
	Cols = 7
)

// Cell is one slot of the board. Empty cells serialize as JSON null so the
// wire shape matches what the legacy client already renders.
type Cell string

const (
	Empty  Cell = ""
	Red    Cell = "red"    // host color
	Yellow Cell = "yellow" // guest color
)

func (c Cell) MarshalJSON() ([]byte, error) {
	if c == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Cell(s)
	return nil
}

// Board is the 6x7 grid. Row 0 is the top row.
type Board [Rows][Cols]Cell

func NewBoard() Board {
	return Board{}
}

func ValidColumn(col int) bool {
	return col >= 0 && col < Cols
}

func ValidCell(row, col int) bool {
	return row >= 0 && row < Rows && ValidColumn(col)
}

// Drop places color in the lowest empty cell of col (gravity). Returns the
// row used, or ok=false if the column is full or out of range.
func (b *Board) Drop(col int, color Cell) (row int, ok bool) {
	if !ValidColumn(col) {
		return -1, false
	}
	for r := Rows - 1; r >= 0; r-- {
		if b[r][col] == Empty {
			b[r][col] = color
			return r, true
		}
	}
	return -1, false
}

func (b Board) ColumnFull(col int) bool {
	return b[0][col] != Empty
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for c := range Cols {
		if !b.ColumnFull(c) {
			return false
		}
	}
	return true
}

// Bomb clears the cell at (row, col) and lets every piece above it in the
// column fall one slot. The rest of the board is untouched.
func (b *Board) Bomb(row, col int) {
	for r := row; r > 0; r-- {
		b[r][col] = b[r-1][col]
	}
	b[0][col] = Empty
}

// Laser clears every cell of col. No gravity is applied to other columns.
func (b *Board) Laser(col int) {
	for r := range Rows {
		b[r][col] = Empty
	}
}

var winDirections = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal down-right
	{1, -1}, // diagonal down-left
}

// CheckWin reports whether color has four consecutive cells in a row, column
// or either diagonal. Starting the scan at every occupied cell of the color
// is equivalent to a full-board four-in-a-row scan.
func (b Board) CheckWin(color Cell) bool {
	for r := range Rows {
		for c := range Cols {
			if b[r][c] != color {
				continue
			}
			for _, dir := range winDirections {
				if b.lineFrom(r, c, dir[0], dir[1], color) {
					return true
				}
			}
		}
	}
	return false
}

// lineFrom checks for three consecutive same-color neighbors after (row, col).
func (b Board) lineFrom(row, col, dr, dc int, color Cell) bool {
	for i := 1; i < 4; i++ {
		r := row + dr*i
		c := col + dc*i
		if !ValidCell(r, c) || b[r][c] != color {
			return false
		}
	}
	return true
}

// Opponent returns the other player color.
func Opponent(color Cell) Cell {
	if color == Red {
		return Yellow
	}
	return Red
}
