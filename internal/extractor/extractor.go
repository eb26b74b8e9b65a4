package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/llm"
)

// Reserved reply keys. They are read by the extractor and never reach the
// target object.
const (
	keyLowConfidence = "_low_confidence"
	keyClear         = "_clear"
)

// MergeFunc folds a candidate into the existing partial object. Fields named
// in cleared must be unset in the result; everything else in existing must
// survive unless candidate overwrites it.
type MergeFunc[T any] func(existing, candidate T, cleared []string) T

// Extractor turns free text into a schema-valid T using the model. T must
// marshal to a JSON object whose keys are the schema's field names.
type Extractor[T any] struct {
	llm    llm.Provider
	schema Schema
	merge  MergeFunc[T]
	logger *slog.Logger
}

func New[T any](provider llm.Provider, schema Schema, merge MergeFunc[T], logger *slog.Logger) *Extractor[T] {
	return &Extractor[T]{llm: provider, schema: schema, merge: merge, logger: logger}
}

func (e *Extractor[T]) Schema() Schema {
	return e.schema
}

// pass is the validated content of one model reply.
type pass struct {
	clean         map[string]any
	violations    []Violation
	lowConfidence []string
	cleared       []string
}

// Extract runs one extraction. At most two model calls are made: the
// initial one and a single corrective retry that only covers the fields
// that failed validation, or the whole object if the first reply did not
// parse.
func (e *Extractor[T]) Extract(ctx context.Context, req Request[T]) (*Outcome[T], error) {
	var existing T
	if req.Existing != nil {
		existing = *req.Existing
	}
	existingMap, err := toMap(existing)
	if err != nil {
		return nil, fmt.Errorf("encode existing: %w", err)
	}
	existingClean, violations := e.schema.validateFields(existingMap)
	if len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExisting, violations[0])
	}
	existingJSON, err := json.MarshalIndent(existingClean, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode existing: %w", err)
	}

	system := fmt.Sprintf(systemPrompt, e.schema.Name, e.schema.Description, e.schema.describe())
	background := ""
	if req.Context != "" {
		background = req.Context + "\n\n"
	}

	e.logger.Debug("extracting",
		"schema", e.schema.Name,
		"text_len", len(req.Text),
		"existing_fields", len(existingClean),
	)

	out := &Outcome[T]{}
	raw, err := e.complete(ctx, system, fmt.Sprintf(extractionUserPrompt, background, existingJSON, req.Text))
	out.Calls++
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	var p pass
	obj, parseErr := llm.DecodeObject(raw)
	if parseErr != nil {
		e.logger.Warn("unparseable extraction reply, retrying",
			"schema", e.schema.Name,
			"error", parseErr,
			"raw", raw,
		)
		raw, err = e.complete(ctx, system, fmt.Sprintf(malformedUserPrompt, parseErr, background, existingJSON, req.Text))
		out.Calls++
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		obj, parseErr = llm.DecodeObject(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: unparseable reply after retry: %w", ErrExtraction, parseErr)
		}
		p = e.inspect(obj)
		p.violations = append(p.violations, e.schema.missingRequired(p.clean, existingClean)...)
	} else {
		p = e.inspect(obj)
		p.violations = append(p.violations, e.schema.missingRequired(p.clean, existingClean)...)
		if len(p.violations) > 0 {
			p = e.correct(ctx, req.Text, p, existingClean)
			out.Calls++
		}
	}

	candidate, err := fromMap[T](p.clean)
	if err != nil {
		return nil, fmt.Errorf("%w: decode candidate: %w", ErrExtraction, err)
	}

	out.Candidate = candidate
	out.Fields = slices.Sorted(maps.Keys(p.clean))
	out.Cleared = p.cleared
	out.Value = e.merge(existing, candidate, p.cleared)
	out.Violations = p.violations
	out.LowConfidence = p.lowConfidence
	out.Status = StatusComplete
	if len(out.Violations) > 0 {
		out.Status = StatusPartial
	}

	e.logger.Info("extraction complete",
		"schema", e.schema.Name,
		"status", out.Status,
		"fields", out.Fields,
		"cleared", out.Cleared,
		"low_confidence", out.LowConfidence,
		"violations", len(out.Violations),
		"calls", out.Calls,
	)
	return out, nil
}

// correct spends the single retry on the failing fields. A failed or
// unparseable retry leaves the first pass as it was, minus the invalid
// values.
func (e *Extractor[T]) correct(ctx context.Context, text string, first pass, existing map[string]any) pass {
	retry := make(map[string]bool)
	var problems, defs []string
	for _, v := range first.violations {
		problems = append(problems, "- "+v.String())
		if retry[v.Field] {
			continue
		}
		retry[v.Field] = true
		if f, ok := e.schema.Lookup(v.Field); ok {
			defs = append(defs, f.describe())
		}
	}

	system := fmt.Sprintf(correctionSystemPrompt, e.schema.Name, strings.Join(defs, "\n"))
	prompt := fmt.Sprintf(correctionUserPrompt, strings.Join(problems, "\n"), text)
	raw, err := e.complete(ctx, system, prompt)
	if err != nil {
		e.logger.Warn("corrective extraction failed", "schema", e.schema.Name, "error", err)
		return first
	}
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		e.logger.Warn("unparseable corrective reply", "schema", e.schema.Name, "error", err, "raw", raw)
		return first
	}

	restricted := make(map[string]any, len(retry))
	for k, v := range obj {
		if retry[k] || k == keyLowConfidence {
			restricted[k] = v
		}
	}
	second := e.inspect(restricted)
	second.lowConfidence = slices.DeleteFunc(second.lowConfidence, func(n string) bool { return !retry[n] })

	merged := pass{
		clean:         maps.Clone(first.clean),
		cleared:       first.cleared,
		lowConfidence: mergeNames(first.lowConfidence, second.lowConfidence),
		violations:    second.violations,
	}
	maps.Copy(merged.clean, second.clean)

	for _, v := range first.violations {
		if v.Code == CodeRequired {
			continue
		}
		if _, fixed := second.clean[v.Field]; fixed || slices.Contains(second.lowConfidence, v.Field) {
			continue
		}
		if slices.ContainsFunc(second.violations, func(s Violation) bool { return s.Field == v.Field }) {
			continue
		}
		merged.violations = append(merged.violations, v)
	}
	merged.violations = append(merged.violations, e.schema.missingRequired(merged.clean, existing)...)
	return merged
}

// inspect validates a decoded reply and pulls out the reserved keys.
func (e *Extractor[T]) inspect(obj map[string]any) pass {
	var p pass
	p.lowConfidence = e.fieldNames(obj[keyLowConfidence])
	p.cleared = e.fieldNames(obj[keyClear])
	p.clean, p.violations = e.schema.validateFields(obj)

	for _, name := range p.lowConfidence {
		delete(p.clean, name)
		p.violations = slices.DeleteFunc(p.violations, func(v Violation) bool { return v.Field == name })
	}
	// A field that is both set and cleared was restated; keep the value.
	p.cleared = slices.DeleteFunc(p.cleared, func(n string) bool {
		_, ok := p.clean[n]
		return ok
	})

	for k := range obj {
		if k == keyLowConfidence || k == keyClear {
			continue
		}
		if _, ok := e.schema.Lookup(k); !ok {
			e.logger.Debug("dropping unknown field", "schema", e.schema.Name, "field", k)
		}
	}
	return p
}

// fieldNames reads a reserved list key, keeping only schema field names.
func (e *Extractor[T]) fieldNames(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		name, ok := it.(string)
		if !ok {
			continue
		}
		if _, known := e.schema.Lookup(name); known && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func (e *Extractor[T]) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		System:   system,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		JSONMode: true,
	})
	if err != nil {
		return "", fmt.Errorf("llm extraction: %w", err)
	}
	return resp.Content, nil
}

func mergeNames(a, b []string) []string {
	out := slices.Clone(a)
	for _, n := range b {
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap[T any](m map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
