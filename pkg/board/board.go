package board

import "fmt"

const (
	// Rows is the number of rows on a board. Row 0 is the top row.
	Rows = 6
	// Cols is the number of columns on a board.
	Cols = 7
)

// Cell is the contents of a single board position.
type Cell int

const (
	CellEmpty Cell = iota
	CellColorA
	CellColorB
)

func (c Cell) String() string {
	switch c {
	case CellColorA:
		return "A"
	case CellColorB:
		return "B"
	default:
		return "."
	}
}

// Opponent returns the other color. It panics if called on an empty cell.
func (c Cell) Opponent() Cell {
	switch c {
	case CellColorA:
		return CellColorB
	case CellColorB:
		return CellColorA
	default:
		panic(fmt.Sprintf("no opponent for cell %d", c))
	}
}

// Board is a 6x7 grid. Gravity fills columns from the bottom (row 5) up.
type Board [Rows][Cols]Cell

// ErrColumnFull is returned by Drop when the target column has no empty cell.
type ErrColumnFull struct {
	Column int
}

func (e *ErrColumnFull) Error() string {
	return fmt.Sprintf("column %d is full", e.Column)
}

// ErrInvalidColumn is returned by Drop for columns outside [0, Cols).
type ErrInvalidColumn struct {
	Column int
}

func (e *ErrInvalidColumn) Error() string {
	return fmt.Sprintf("invalid column %d", e.Column)
}

// Drop places a disc of the given color into the column and returns the row
// it landed in.
func (b *Board) Drop(column int, color Cell) (int, error) {
	if column < 0 || column >= Cols {
		return -1, &ErrInvalidColumn{Column: column}
	}
	if b[0][column] != CellEmpty {
		return -1, &ErrColumnFull{Column: column}
	}
	row := Rows - 1
	for row >= 0 && b[row][column] != CellEmpty {
		row--
	}
	b[row][column] = color
	return row, nil
}

// CanDrop reports whether a disc can be placed in the column.
func (b *Board) CanDrop(column int) bool {
	return column >= 0 && column < Cols && b[0][column] == CellEmpty
}

// axes are the four line directions checked for a win: horizontal, vertical,
// and the two diagonals.
var axes = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// IsWinningMove reports whether the disc just placed at (row, col) completes
// a line of four or more. Only lines through the placed cell are checked.
func (b *Board) IsWinningMove(row, col int, color Cell) bool {
	for _, axis := range axes {
		if b.CountLine(row, col, axis[0], axis[1], color) >= 4 {
			return true
		}
	}
	return false
}

// CountLine counts the cell at (row, col) plus the contiguous same-color
// cells extending in both directions along the (rowDelta, colDelta) axis.
// The cell at (row, col) is assumed to hold the given color.
func (b *Board) CountLine(row, col, rowDelta, colDelta int, color Cell) int {
	count := 1

	r, c := row+rowDelta, col+colDelta
	for r >= 0 && r < Rows && c >= 0 && c < Cols && b[r][c] == color {
		count++
		r += rowDelta
		c += colDelta
	}

	r, c = row-rowDelta, col-colDelta
	for r >= 0 && r < Rows && c >= 0 && c < Cols && b[r][c] == color {
		count++
		r -= rowDelta
		c -= colDelta
	}

	return count
}

// IsFull reports whether the board has no empty cells. Gravity guarantees a
// full top row implies a full board.
func (b *Board) IsFull() bool {
	for col := 0; col < Cols; col++ {
		if b[0][col] == CellEmpty {
			return false
		}
	}
	return true
}
