package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentsearch/internal/model"
	"rentsearch/internal/utils"
)

// TextInterpreter extracts structured constraints from a user utterance
type TextInterpreter interface {
	Name() string
	Extract(ctx context.Context, raw string) (*model.ParsedQuery, error)
}

// Interpretation is the outcome of interpreting one query
type Interpretation struct {
	Query    model.ParsedQuery
	Degraded bool
	Reason   string
}

// QueryInterpreter turns raw text into a ParsedQuery. Extractor failures
// never fail the request: the query falls back to free text only.
type QueryInterpreter struct {
	extractor TextInterpreter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewQueryInterpreter creates a query interpreter around the given extractor
func NewQueryInterpreter(extractor TextInterpreter, timeout time.Duration, logger *slog.Logger) *QueryInterpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryInterpreter{
		extractor: extractor,
		timeout:   timeout,
		logger:    logger.With("component", "interpreter"),
	}
}

// Name identifies the active extractor
func (qi *QueryInterpreter) Name() string {
	if qi.extractor == nil {
		return "none"
	}
	return qi.extractor.Name()
}

// Interpret parses raw. Empty or whitespace-only input is a ValidationError.
func (qi *QueryInterpreter) Interpret(ctx context.Context, raw string) (Interpretation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Interpretation{}, &ValidationError{Field: "query", Err: ErrEmptyQuery}
	}

	if qi.extractor == nil {
		return Interpretation{Query: model.FreeTextOnly(raw)}, nil
	}

	extractCtx := ctx
	if qi.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, qi.timeout)
		defer cancel()
	}

	parsed, err := qi.extractor.Extract(extractCtx, raw)
	if err == nil && parsed == nil {
		err = errors.New("extractor returned no result")
	}
	if err != nil {
		ierr := &InterpretationError{Interpreter: qi.extractor.Name(), Err: err}
		qi.logger.Warn("query interpretation failed, using free text only",
			"degraded", true,
			"err", ierr,
		)
		return Interpretation{
			Query:    model.FreeTextOnly(raw),
			Degraded: true,
			Reason:   model.DegradedInterpretation,
		}, nil
	}

	q := sanitize(*parsed, raw)
	qi.logger.Debug("query interpreted", "interpreter", qi.extractor.Name(), "parsed", q.String())
	return Interpretation{Query: q}, nil
}

// sanitize drops values no store filter can honour and normalises the rest
func sanitize(q model.ParsedQuery, raw string) model.ParsedQuery {
	if q.Location != nil {
		loc := strings.TrimSpace(*q.Location)
		if loc == "" {
			q.Location = nil
		} else {
			q.Location = &loc
		}
	}
	if q.MaxPrice != nil && *q.MaxPrice < 0 {
		q.MaxPrice = nil
	}
	if q.Bedrooms != nil && *q.Bedrooms < 0 {
		q.Bedrooms = nil
	}
	if q.Bathrooms != nil && *q.Bathrooms < 0 {
		q.Bathrooms = nil
	}

	if len(q.Amenities) > 0 {
		seen := make(map[string]bool, len(q.Amenities))
		amenities := make([]string, 0, len(q.Amenities))
		for _, a := range q.Amenities {
			a = utils.NormalizeAmenity(a)
			if a != "" && !seen[a] {
				seen[a] = true
				amenities = append(amenities, a)
			}
		}
		q.Amenities = amenities
	}

	q.FreeText = strings.Join(strings.Fields(q.FreeText), " ")
	if q.FreeText == "" && !q.HasFilters() {
		q.FreeText = raw
	}
	return q
}
