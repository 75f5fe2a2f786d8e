package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAmenities(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"2BHK with parking and a gym near Hoboken", []string{"parking", "gym"}},
		{"Pet-friendly flat, in-unit washer/dryer, balcony", []string{"pet friendly", "laundry", "balcony"}},
		{"swimming pool and A/C", []string{"pool", "air conditioning"}},
		{"Spacious studio", []string{}},
		{"parkingspot", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAmenities(tt.text))
		})
	}
}

func TestNormalizeAmenity(t *testing.T) {
	assert.Equal(t, "laundry", NormalizeAmenity("Washing Machine"))
	assert.Equal(t, "fridge", NormalizeAmenity(" refrigerator "))
	assert.Equal(t, "rooftop", NormalizeAmenity("Rooftop"))
}

func TestMatchAmenity(t *testing.T) {
	offered := []string{"Covered parking", "Dishwasher", "Heat"}

	assert.True(t, MatchAmenity("garage", offered))
	assert.True(t, MatchAmenity("dishwasher", offered))
	assert.True(t, MatchAmenity("heating", offered))
	assert.False(t, MatchAmenity("pool", offered))
	assert.False(t, MatchAmenity("", offered))
}
