package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ListingSource records how a listing entered the store
type ListingSource string

const (
	SourceUserCreated ListingSource = "user_created"
	SourceImported    ListingSource = "imported"
)

// Eligibility errors returned by Listing.Validate
var (
	ErrMissingAddress     = errors.New("listing has no address")
	ErrMissingDescription = errors.New("listing has no description")
	ErrNegativePrice      = errors.New("listing price is negative")
)

// Listing represents a rental listing as read from the store.
// The search path never mutates it.
type Listing struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title,omitempty"`
	Address     string        `json:"address"`
	Price       float64       `json:"price"`
	Bedroom     int           `json:"bedroom"`
	Bathroom    int           `json:"bathroom"`
	Description string        `json:"description"`
	Amenities   AmenitySet    `json:"amenities,omitempty"`
	RentalTerms RentalTerms   `json:"rental_terms,omitempty"`
	Source      ListingSource `json:"source"`
	Embedding   []float32     `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Validate reports whether the listing carries the fields ranking depends on
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Address) == "" {
		return ErrMissingAddress
	}
	if strings.TrimSpace(l.Description) == "" {
		return ErrMissingDescription
	}
	if l.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// SearchText builds the document used for both embedding and keyword scoring:
// title, description, bed/bath counts, every amenity term and the rental terms.
func (l *Listing) SearchText() string {
	parts := make([]string, 0, 5)
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	parts = append(parts, l.Description)
	parts = append(parts, fmt.Sprintf("%d bedroom %d bathroom", l.Bedroom, l.Bathroom))
	if terms := l.Amenities.Flatten(); len(terms) > 0 {
		parts = append(parts, strings.Join(terms, " "))
	}
	if terms := l.RentalTerms.Values(); len(terms) > 0 {
		parts = append(parts, strings.Join(terms, " "))
	}
	return strings.Join(parts, " ")
}

// ListingSummary is the compact listing view returned to callers
type ListingSummary struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title,omitempty"`
	Address     string      `json:"address"`
	Price       float64     `json:"price"`
	Bedroom     int         `json:"bedroom"`
	Bathroom    int         `json:"bathroom"`
	Description string      `json:"description"`
	Amenities   AmenitySet  `json:"amenities,omitempty"`
	RentalTerms RentalTerms `json:"rental_terms,omitempty"`
}

// Summary returns the caller-facing view of the listing
func (l *Listing) Summary() ListingSummary {
	return ListingSummary{
		ID:          l.ID,
		Title:       l.Title,
		Address:     l.Address,
		Price:       l.Price,
		Bedroom:     l.Bedroom,
		Bathroom:    l.Bathroom,
		Description: l.Description,
		Amenities:   l.Amenities,
		RentalTerms: l.RentalTerms,
	}
}

// AmenitySet groups amenity terms by category, e.g.
// {"appliances": ["dishwasher"], "utilities_included": ["water", "heat"]}
type AmenitySet map[string][]string

// Flatten returns every amenity term, categories in key order
func (a AmenitySet) Flatten() []string {
	if len(a) == 0 {
		return nil
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var terms []string
	for _, k := range keys {
		for _, term := range a[k] {
			if term = strings.TrimSpace(term); term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// OtherAmenities is the category given to amenities stored as a bare list
const OtherAmenities = "other_amenities"

// UnmarshalJSON accepts the category object, a bare list of terms
// (filed under OtherAmenities) and single strings in place of lists.
func (a *AmenitySet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = nil
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var terms []string
		if err := json.Unmarshal(trimmed, &terms); err != nil {
			return fmt.Errorf("amenities list: %w", err)
		}
		*a = AmenitySet{OtherAmenities: terms}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("amenities: %w", err)
	}
	set := make(AmenitySet, len(raw))
	for category, value := range raw {
		var terms []string
		if err := json.Unmarshal(value, &terms); err != nil {
			var single string
			if err := json.Unmarshal(value, &single); err != nil {
				return fmt.Errorf("amenities %q: expected string list", category)
			}
			terms = []string{single}
		}
		set[category] = terms
	}
	*a = set
	return nil
}

// Value implements driver.Valuer interface
func (a AmenitySet) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner interface
func (a *AmenitySet) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported amenities type %T", value)
	}
}

// RentalTerms holds free-form lease details, e.g.
// {"rent": "$2,500/month", "lease_terms": "12 months"}
type RentalTerms map[string]string

// Values returns the non-empty terms in key order
func (r RentalTerms) Values() []string {
	if len(r) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// UnmarshalJSON accepts any scalar value, so numeric rents decode as text
func (r *RentalTerms) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("rental terms: %w", err)
	}
	if raw == nil {
		*r = nil
		return nil
	}

	terms := make(RentalTerms, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			terms[k] = v
		case float64, bool:
			terms[k] = fmt.Sprint(v)
		default:
			return fmt.Errorf("rental terms %q: expected a scalar value", k)
		}
	}
	*r = terms
	return nil
}
