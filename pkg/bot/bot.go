package bot

import (
	"github.com/cbodonnell/dropfour/pkg/board"
)

// centerOrder lists columns closest to the center first. Center columns touch
// more potential lines.
var centerOrder = [board.Cols]int{3, 2, 4, 1, 5, 0, 6}

// ChooseColumn picks the column for the bot to play, by descending priority:
// block an immediate opponent win, complete an own win, best heuristic score,
// center preference when the heuristic is degenerate, then any legal column.
// It returns -1 only if the board is completely full.
//
// The board is never left mutated: every simulation runs on a copy.
func ChooseColumn(b *board.Board, botColor board.Cell) int {
	opponent := botColor.Opponent()

	if col := findWinningColumn(b, opponent); col != -1 {
		return col
	}

	if col := findWinningColumn(b, botColor); col != -1 {
		return col
	}

	if col := findHeuristicColumn(b, botColor); col != -1 {
		return col
	}

	for _, col := range centerOrder {
		if b.CanDrop(col) {
			return col
		}
	}

	for col := 0; col < board.Cols; col++ {
		if b.CanDrop(col) {
			return col
		}
	}

	return -1
}

// findWinningColumn returns the first column where dropping the given color
// completes a line of four, or -1 if there is none.
func findWinningColumn(b *board.Board, color board.Cell) int {
	for col := 0; col < board.Cols; col++ {
		if !b.CanDrop(col) {
			continue
		}
		trial := *b
		row, err := trial.Drop(col, color)
		if err != nil {
			continue
		}
		if trial.IsWinningMove(row, col, color) {
			return col
		}
	}
	return -1
}

// findHeuristicColumn scores every legal column by the threats it creates for
// the bot minus the threats the opponent would create in the same column, and
// returns the best-scoring column. Ties go to the lower column index. It
// returns -1 when every legal column scores the same, so the caller can fall
// back to center preference.
func findHeuristicColumn(b *board.Board, botColor board.Cell) int {
	opponent := botColor.Opponent()

	bestCol := -1
	bestScore := 0
	uniform := true
	scored := false

	for col := 0; col < board.Cols; col++ {
		if !b.CanDrop(col) {
			continue
		}

		score := scoreColumn(b, col, botColor) - scoreColumn(b, col, opponent)

		if !scored {
			bestCol = col
			bestScore = score
			scored = true
			continue
		}
		if score != bestScore {
			uniform = false
		}
		if score > bestScore {
			bestCol = col
			bestScore = score
		}
	}

	if uniform {
		return -1
	}
	return bestCol
}

// scoreColumn simulates dropping the given color into the column and counts
// the resulting lines through the placed cell: 2 points per line of three or
// more, 1 point per line of two.
func scoreColumn(b *board.Board, col int, color board.Cell) int {
	trial := *b
	row, err := trial.Drop(col, color)
	if err != nil {
		return 0
	}

	score := 0
	for _, axis := range [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}} {
		switch length := trial.CountLine(row, col, axis[0], axis[1], color); {
		case length >= 3:
			score += 2
		case length >= 2:
			score++
		}
	}
	return score
}
