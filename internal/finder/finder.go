// Package finder is the Property Finder worker: it turns a search message
// into updated filters, queries the listings, and proposes the commands
// that store both.
package finder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/agent"
	"github.com/ISL270/multi-agent-ai-realtor/internal/extractor"
	"github.com/ISL270/multi-agent-ai-realtor/internal/listing"
	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
	"github.com/ISL270/multi-agent-ai-realtor/internal/state"
	"github.com/ISL270/multi-agent-ai-realtor/internal/ui"
)

// Querier is the property data-query collaborator. It must be
// deterministic for identical filters; an empty result is not an error.
type Querier interface {
	QueryProperties(ctx context.Context, f listing.Filters) ([]listing.Property, error)
}

const (
	replyNotUnderstood = "I couldn't quite work out what you're looking for. Could you describe it another way, for example \"a 2-bedroom apartment in New Cairo under 5 million\"?"
	replyQueryFailed   = "Sorry, I couldn't search the listings right now. Please try again in a moment."
)

// Schema is the extraction schema for search filters.
func Schema() extractor.Schema {
	return extractor.Schema{
		Name:        "property_search_filters",
		Description: "Criteria for searching property listings. Prices are in the listing currency, areas in square metres.",
		Fields: []extractor.Field{
			{Name: listing.FieldCity, Kind: extractor.KindString, MaxLen: 80, Description: "City or district name, e.g. New Cairo"},
			{Name: listing.FieldPropertyType, Kind: extractor.KindString, MaxLen: 40, Description: "Type of property, e.g. apartment, villa, townhouse"},
			{Name: listing.FieldMinPrice, Kind: extractor.KindNumber, Min: extractor.Float(0), Description: "Minimum price"},
			{Name: listing.FieldMaxPrice, Kind: extractor.KindNumber, Min: extractor.Float(0), Description: "Maximum price; \"under 3 million\" is 3000000"},
			{Name: listing.FieldBedrooms, Kind: extractor.KindInteger, Min: extractor.Float(0), Max: extractor.Float(20), Description: "Number of bedrooms"},
			{Name: listing.FieldBathrooms, Kind: extractor.KindInteger, Min: extractor.Float(0), Max: extractor.Float(20), Description: "Number of bathrooms"},
			{Name: listing.FieldMinArea, Kind: extractor.KindNumber, Min: extractor.Float(0), Description: "Minimum area in square metres"},
			{Name: listing.FieldMaxArea, Kind: extractor.KindNumber, Min: extractor.Float(0), Description: "Maximum area in square metres"},
			{Name: listing.FieldAmenities, Kind: extractor.KindStringList, Description: "Amenity names, e.g. pool, gym, garden"},
			{Name: listing.FieldSortBy, Kind: extractor.KindEnum, Enum: []string{listing.SortByPrice, listing.SortByArea}, Description: "Field to sort by"},
			{Name: listing.FieldSortOrder, Kind: extractor.KindEnum, Enum: []string{listing.SortAsc, listing.SortDesc}, Description: "Sort order; \"cheapest first\" is asc"},
		},
	}
}

func mergeFilters(existing, candidate listing.Filters, cleared []string) listing.Filters {
	return listing.Merge(existing, listing.Patch{Set: candidate, Clear: cleared})
}

// Finder is the Property Finder worker.
type Finder struct {
	extract *extractor.Extractor[listing.Filters]
	query   Querier
	logger  *slog.Logger
}

func New(provider llm.Provider, query Querier, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker", agent.PropertyFinder)
	return &Finder{
		extract: extractor.New(provider, Schema(), mergeFilters, logger),
		query:   query,
		logger:  logger,
	}
}

func (f *Finder) ID() agent.WorkerID {
	return agent.PropertyFinder
}

// Run executes Parsing -> Querying -> Emitting. Failures come back as a
// terminal outcome with no commands; the returned error is reserved for
// programming errors.
func (f *Finder) Run(ctx context.Context, in agent.Input) (agent.Outcome, error) {
	// Parsing
	existing := in.State.ActiveFilters
	parsed, err := f.extract.Extract(ctx, extractor.Request[listing.Filters]{
		Text:     in.Message,
		Existing: &existing,
	})
	if err != nil {
		f.logger.Warn("filter extraction failed", "turn_id", in.Turn.TurnID, "error", err)
		return agent.Outcome{
			Terminal: true,
			Reply:    replyNotUnderstood,
			Err:      &agent.CollaboratorError{System: "llm", Operation: "extract filters", Err: err},
		}, nil
	}
	filters := parsed.Value

	// Querying
	results, err := f.query.QueryProperties(ctx, filters)
	if err != nil {
		f.logger.Error("property query failed", "turn_id", in.Turn.TurnID, "error", err)
		return agent.Outcome{
			Terminal: true,
			Reply:    replyQueryFailed,
			Err:      &agent.CollaboratorError{System: "property database", Operation: "query", Err: err},
		}, nil
	}
	results = slices.DeleteFunc(results, func(p listing.Property) bool {
		if !p.Usable() {
			f.logger.Warn("skipping property without id or image url", "property_id", p.ID)
			return true
		}
		return false
	})

	// Emitting
	commands := []state.Command{
		state.SetFilters{Patch: listing.Diff(existing, filters)},
		state.AppendResults{Items: results},
	}
	if len(results) > 0 {
		commands = append(commands, state.SetUIArtifact{Artifact: ui.PropertyCarousel(results)})
	}

	f.logger.Info("search complete",
		"turn_id", in.Turn.TurnID,
		"status", parsed.Status,
		"results", len(results),
	)

	return agent.Outcome{
		Commands: commands,
		Notes:    notes(parsed, filters),
	}, nil
}

// notes explains what the search ignored or could not pin down.
func notes(parsed *extractor.Outcome[listing.Filters], filters listing.Filters) []string {
	var out []string
	for _, v := range parsed.Violations {
		out = append(out, fmt.Sprintf("I ignored the %s you gave (%s).", humanField(v.Field), v.Reason))
	}
	if len(parsed.LowConfidence) > 0 {
		names := make([]string, len(parsed.LowConfidence))
		for i, n := range parsed.LowConfidence {
			names[i] = humanField(n)
		}
		out = append(out, fmt.Sprintf("If you give me a concrete %s I can narrow this down.", strings.Join(names, " and ")))
	}
	for _, w := range filters.Warnings() {
		out = append(out, "Note: "+w+", so this may return nothing.")
	}
	return out
}

func humanField(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
