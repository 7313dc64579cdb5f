package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLayout(t *testing.T) {
	assert.NoError(t, ValidateLayout())
}

func TestBootDataWindow(t *testing.T) {
	shared := make([]byte, RegionSize)
	window, err := BootDataWindow(shared)
	require.NoError(t, err)
	assert.Len(t, window, SizeBootData)

	// Writes through the window land at the carve-out offset.
	window[0] = 0xAB
	assert.Equal(t, byte(0xAB), shared[OffsetBootData])

	_, err = BootDataWindow(make([]byte, 16))
	assert.Error(t, err)
}

func TestTranslateWindow(t *testing.T) {
	w := NSClientWindow{OwnerMagic: 0x4E535045, Min: -0x100, Max: -1}

	id, err := w.Translate(0x4E535045, -5)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), id)

	id, err = w.Translate(0x4E535045, -0x100)
	require.NoError(t, err)
	assert.Equal(t, int32(-0x100), id)

	_, err = w.Translate(0xBAD, -5)
	assert.ErrorIs(t, err, ErrBadOwnerMagic)

	_, err = w.Translate(0x4E535045, 0)
	assert.ErrorIs(t, err, ErrClientIDZero)

	_, err = w.Translate(0x4E535045, 7)
	assert.ErrorIs(t, err, ErrClientIDSecure)

	_, err = w.Translate(0x4E535045, -0x101)
	assert.ErrorIs(t, err, ErrClientIDRange)
}
