package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsFromRect(t *testing.T) {
	b := BoundsFromRect(100, 200, 400, 260)

	assert.Equal(t, Bounds{X: 100, Y: 200, Width: 300, Height: 60}, b)
	assert.Equal(t, 400, b.Right())
	assert.Equal(t, 260, b.Bottom())
	assert.Equal(t, "[100,200][400,260]", b.String())
}

func TestBoundsCenter(t *testing.T) {
	tests := []struct {
		bounds Bounds
		x, y   int
	}{
		{BoundsFromRect(100, 200, 400, 260), 250, 230},
		{BoundsFromRect(0, 0, 1080, 2400), 540, 1200},
		{BoundsFromRect(1, 1, 4, 4), 2, 2},
	}

	for _, tt := range tests {
		x, y := tt.bounds.Center()
		assert.Equal(t, tt.x, x, "center x of %s", tt.bounds)
		assert.Equal(t, tt.y, y, "center y of %s", tt.bounds)
	}
}

func TestBoundsContains(t *testing.T) {
	b := BoundsFromRect(10, 10, 20, 20)

	assert.True(t, b.Contains(10, 10))
	assert.True(t, b.Contains(19, 19))
	assert.False(t, b.Contains(20, 20))
	assert.False(t, b.Contains(9, 15))
}

func TestBoundsIsZero(t *testing.T) {
	assert.True(t, Bounds{}.IsZero())
	assert.False(t, BoundsFromRect(0, 0, 1, 1).IsZero())
}
