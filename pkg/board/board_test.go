package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_Drop(t *testing.T) {
	t.Run("lands in the lowest empty row", func(t *testing.T) {
		b := &Board{}

		row, err := b.Drop(3, CellColorA)
		require.NoError(t, err)
		assert.Equal(t, Rows-1, row)
		assert.Equal(t, CellColorA, b[Rows-1][3])

		row, err = b.Drop(3, CellColorB)
		require.NoError(t, err)
		assert.Equal(t, Rows-2, row)
		assert.Equal(t, CellColorB, b[Rows-2][3])
	})

	t.Run("column never holds more than six discs", func(t *testing.T) {
		b := &Board{}
		for i := 0; i < Rows; i++ {
			_, err := b.Drop(0, CellColorA)
			require.NoError(t, err)
		}

		_, err := b.Drop(0, CellColorA)
		var columnFull *ErrColumnFull
		require.ErrorAs(t, err, &columnFull)
		assert.Equal(t, 0, columnFull.Column)
	})

	t.Run("rejects out of range columns", func(t *testing.T) {
		b := &Board{}
		var invalidColumn *ErrInvalidColumn

		_, err := b.Drop(-1, CellColorA)
		assert.ErrorAs(t, err, &invalidColumn)

		_, err = b.Drop(Cols, CellColorA)
		assert.ErrorAs(t, err, &invalidColumn)
	})
}

func TestBoard_IsWinningMove(t *testing.T) {
	tests := []struct {
		name  string
		drops []struct {
			column int
			color  Cell
		}
		want bool
	}{
		{
			name: "vertical four in column 0",
			drops: []struct {
				column int
				color  Cell
			}{
				{0, CellColorA}, {1, CellColorB},
				{0, CellColorA}, {1, CellColorB},
				{0, CellColorA}, {1, CellColorB},
				{0, CellColorA},
			},
			want: true,
		},
		{
			name: "horizontal four on the bottom row",
			drops: []struct {
				column int
				color  Cell
			}{
				{0, CellColorA}, {6, CellColorB},
				{1, CellColorA}, {6, CellColorB},
				{2, CellColorA}, {6, CellColorB},
				{3, CellColorA},
			},
			want: true,
		},
		{
			name: "three in a row is not a win",
			drops: []struct {
				column int
				color  Cell
			}{
				{0, CellColorA}, {6, CellColorB},
				{1, CellColorA}, {6, CellColorB},
				{2, CellColorA},
			},
			want: false,
		},
		{
			name: "diagonal up-right",
			drops: []struct {
				column int
				color  Cell
			}{
				{0, CellColorA}, {1, CellColorB},
				{1, CellColorA}, {2, CellColorB},
				{2, CellColorA}, {3, CellColorB},
				{2, CellColorA}, {3, CellColorB},
				{3, CellColorA}, {6, CellColorB},
				{3, CellColorA},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Board{}
			var lastRow, lastCol int
			var lastColor Cell
			for _, drop := range tt.drops {
				row, err := b.Drop(drop.column, drop.color)
				require.NoError(t, err)
				lastRow, lastCol, lastColor = row, drop.column, drop.color
			}
			assert.Equal(t, tt.want, b.IsWinningMove(lastRow, lastCol, lastColor))
		})
	}
}

func TestBoard_IsWinningMove_CompletesInTheMiddle(t *testing.T) {
	// _ A A _ A _ _  ->  dropping A at column 3 completes the four
	b := &Board{}
	for _, col := range []int{1, 2, 4} {
		_, err := b.Drop(col, CellColorA)
		require.NoError(t, err)
	}

	row, err := b.Drop(3, CellColorA)
	require.NoError(t, err)
	assert.True(t, b.IsWinningMove(row, 3, CellColorA))
}

func TestBoard_IsFull(t *testing.T) {
	b := &Board{}
	assert.False(t, b.IsFull())

	// Fill every column, alternating colors by column pairs so nothing wins.
	for col := 0; col < Cols; col++ {
		color := CellColorA
		if (col/2)%2 == 1 {
			color = CellColorB
		}
		for i := 0; i < Rows; i++ {
			_, err := b.Drop(col, color)
			require.NoError(t, err)
		}
	}
	assert.True(t, b.IsFull())
}

func TestBoard_CanDrop(t *testing.T) {
	b := &Board{}
	assert.True(t, b.CanDrop(0))
	assert.False(t, b.CanDrop(-1))
	assert.False(t, b.CanDrop(Cols))

	for i := 0; i < Rows; i++ {
		_, err := b.Drop(0, CellColorA)
		require.NoError(t, err)
	}
	assert.False(t, b.CanDrop(0))
}

func TestCell_Opponent(t *testing.T) {
	assert.Equal(t, CellColorB, CellColorA.Opponent())
	assert.Equal(t, CellColorA, CellColorB.Opponent())
	assert.Panics(t, func() { CellEmpty.Opponent() })
}
