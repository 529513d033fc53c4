package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/quailyquaily/uniai"
)

var (
	ErrEmptyInput       = errors.New("empty json input")
	ErrNoJSONCandidates = errors.New("no json candidates")
)

// FindJSONPayload locates a valid JSON payload inside model output.
// Local model replies frequently wrap the object in prose or markdown
// fences; candidates are tried in order: the raw text, fenced blocks,
// then uniai's collected/repaired variants.
func FindJSONPayload(text string) ([]byte, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrEmptyInput
	}

	var lastErr error
	for _, cand := range collectCandidates(raw) {
		for _, variant := range candidateVariants(cand) {
			if strings.TrimSpace(variant) == "" {
				continue
			}
			if isValidJSON(variant, &lastErr) {
				return []byte(variant), nil
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoJSONCandidates
}

// DecodeWithFallback finds a JSON payload and unmarshals it into dst.
func DecodeWithFallback(text string, dst any) error {
	data, err := FindJSONPayload(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// DecodeStrict finds a JSON payload and decodes it into dst rejecting
// unknown fields, for replies that must conform to a fixed schema.
func DecodeStrict(text string, dst any) error {
	data, err := FindJSONPayload(text)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func collectCandidates(raw string) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]bool, 8)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(raw)
	for _, f := range fencedBlocks(raw) {
		add(f)
	}
	if cands, err := uniai.CollectJSONCandidates(raw); err == nil {
		for _, c := range cands {
			add(c)
		}
	}
	for _, c := range uniai.FindJSONSnippets(raw) {
		add(c)
	}
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		add(raw[i : j+1])
	}

	return out
}

// fencedBlocks extracts the inner text of ```-fenced blocks, with or
// without a language tag.
func fencedBlocks(raw string) []string {
	var out []string
	rest := raw
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			return out
		}
		rest = rest[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && nl < 16 && !strings.ContainsAny(rest[:nl], "{}") {
			rest = rest[nl+1:]
		}
		end := strings.Index(rest, "```")
		if end < 0 {
			out = append(out, rest)
			return out
		}
		out = append(out, rest[:end])
		rest = rest[end+3:]
	}
}

func candidateVariants(candidate string) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]bool, 4)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(candidate)
	stripped := strings.TrimSpace(uniai.StripNonJSONLines(candidate))
	add(stripped)
	add(strings.TrimSpace(uniai.AttemptJSONRepair(candidate)))
	if stripped != "" && stripped != candidate {
		add(strings.TrimSpace(uniai.AttemptJSONRepair(stripped)))
	}

	return out
}

func isValidJSON(s string, lastErr *error) bool {
	var tmp any
	if err := json.Unmarshal([]byte(s), &tmp); err != nil {
		if lastErr != nil {
			*lastErr = err
		}
		return false
	}
	return true
}
