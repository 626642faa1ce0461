package draw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	shapes := []Shape{
		Rectangle{X: 1, Y: 2, W: 3, H: 4},
		Polyline{Points: []Point{{X: 0, Y: 0}, {X: 1.5, Y: -2.5}, {X: 100, Y: 200}}},
		Polyline{Points: nil},
		Ellipse{CX: 5, CY: 6, RX: 7, RY: 8},
	}

	for _, shape := range shapes {
		encoded, err := Encode(shape)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)

		assert.Equal(t, shape, decoded)
	}
}

func TestEncodeUnsupportedShape(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{tagRectangle, 0, 0})
	assert.Error(t, err)
}
