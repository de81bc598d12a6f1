package printing

import (
	"errors"
	"testing"

	"github.com/quotation/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMargins(t *testing.T) {
	m, err := NewMargins(10, 5, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, Margins{Top: 10, Right: 5, Bottom: 10, Left: 5}, m)

	_, err = NewMargins(-1, 0, 0, 0)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewMargins(0, 101, 0, 0)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSettings(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		s := DefaultSettings()
		require.NoError(t, s.Validate())
		w, h := s.PageDimensions()
		assert.Equal(t, 210, w)
		assert.Equal(t, 297, h)
	})

	t.Run("landscape swaps dimensions", func(t *testing.T) {
		s := Settings{PaperSize: PaperSizeLetter, Orientation: OrientationLandscape}
		w, h := s.PageDimensions()
		assert.Equal(t, 279, w)
		assert.Equal(t, 216, h)
	})

	t.Run("invalid values", func(t *testing.T) {
		assert.Error(t, Settings{PaperSize: "B7", Orientation: OrientationPortrait}.Validate())
		assert.Error(t, Settings{PaperSize: PaperSizeA4, Orientation: "DIAGONAL"}.Validate())
	})
}

func TestParse(t *testing.T) {
	p, ok := ParsePaperSize(" letter")
	assert.True(t, ok)
	assert.Equal(t, PaperSizeLetter, p)

	_, ok = ParsePaperSize("A3")
	assert.False(t, ok)

	o, ok := ParseOrientation("landscape")
	assert.True(t, ok)
	assert.Equal(t, OrientationLandscape, o)
}
