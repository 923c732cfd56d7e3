package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatINR(t *testing.T) {
	assert.Equal(t, "₹1,250.00", FormatINR(1250))
	assert.Equal(t, "₹0.50", FormatINR(0.5))
}

func TestToPaise(t *testing.T) {
	assert.Equal(t, int64(5000), ToPaise(50))
	assert.Equal(t, int64(1999), ToPaise(19.99))
}
