package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleInterpreterExtract(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		location  string
		maxPrice  float64
		bedrooms  int
		bathrooms int
		amenities []string
		freeText  string
	}{
		{
			name:     "Jersey City scenario",
			query:    "2BHK furnished near Jersey City under $2000",
			location: "Jersey City",
			maxPrice: 2000,
			bedrooms: 2,
			freeText: "2BHK furnished",
		},
		{
			name:     "k suffix and in cue",
			query:    "Find 2BHK apartments in Bangalore under 20k",
			location: "Bangalore",
			maxPrice: 20000,
			bedrooms: 2,
			freeText: "Find 2BHK apartments",
		},
		{
			name:     "for cue skips bedroom count",
			query:    "Looking for 1BHK near MG Road under 15000",
			location: "MG Road",
			maxPrice: 15000,
			bedrooms: 1,
			freeText: "Looking for 1BHK",
		},
		{
			name:      "bed and bath counts with amenities",
			query:     "3 bed 2 bath house with parking and a pool for $2,500/month",
			maxPrice:  2500,
			bedrooms:  3,
			bathrooms: 2,
			amenities: []string{"parking", "pool"},
			freeText:  "3 bed 2 bath house with parking and a pool",
		},
		{
			name:      "studio and lowercase location",
			query:     "pet friendly studio near downtown",
			location:  "downtown",
			amenities: []string{"pet friendly"},
			freeText:  "pet friendly studio",
		},
		{
			name:     "bare dollar amount",
			query:    "sunny loft $1800",
			maxPrice: 1800,
			freeText: "sunny loft",
		},
		{
			name:     "descriptive phrase is not a location",
			query:    "apartment in a quiet neighbourhood",
			freeText: "apartment in a quiet neighbourhood",
		},
		{
			name:     "separator after location is dropped",
			query:    "I need a place in Jersey City, budget 2000",
			location: "Jersey City",
			maxPrice: 2000,
			freeText: "I need a place",
		},
		{
			name:     "dangling cue before price is dropped",
			query:    "Looking for 1 bed in Downtown Jersey City around $1800",
			location: "Downtown Jersey City",
			maxPrice: 1800,
			bedrooms: 1,
			freeText: "Looking for 1 bed",
		},
		{
			name:     "capitalised phrase preferred",
			query:    "flat in the city near Grove Street",
			location: "Grove Street",
			freeText: "flat in the city",
		},
	}

	r := NewRuleInterpreter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := r.Extract(context.Background(), tt.query)
			require.NoError(t, err)

			if tt.location == "" {
				assert.Nil(t, q.Location)
			} else if assert.NotNil(t, q.Location) {
				assert.Equal(t, tt.location, *q.Location)
			}
			if tt.maxPrice == 0 {
				assert.Nil(t, q.MaxPrice)
			} else if assert.NotNil(t, q.MaxPrice) {
				assert.Equal(t, tt.maxPrice, *q.MaxPrice)
			}
			if tt.bedrooms != 0 {
				require.NotNil(t, q.Bedrooms)
				assert.Equal(t, tt.bedrooms, *q.Bedrooms)
			}
			if tt.bathrooms != 0 {
				require.NotNil(t, q.Bathrooms)
				assert.Equal(t, tt.bathrooms, *q.Bathrooms)
			}
			if tt.amenities != nil {
				assert.Equal(t, tt.amenities, q.Amenities)
			}
			assert.Equal(t, tt.freeText, q.FreeText)
		})
	}
}

func TestRuleInterpreterStudio(t *testing.T) {
	q, err := NewRuleInterpreter().Extract(context.Background(), "studio near campus")
	require.NoError(t, err)
	require.NotNil(t, q.Bedrooms)
	assert.Equal(t, 0, *q.Bedrooms)
}

func TestRemoveSpans(t *testing.T) {
	assert.Equal(t, "a d", removeSpans("a bb c d", [][2]int{{5, 6}, {2, 4}}))
	assert.Equal(t, "x", removeSpans("x yy", [][2]int{{2, 4}, {3, 4}}))
	assert.Equal(t, "keep all", removeSpans(" keep   all ", nil))
	assert.Equal(t, "flat with parking", removeSpans("flat around X, with parking", [][2]int{{12, 13}}))
}
