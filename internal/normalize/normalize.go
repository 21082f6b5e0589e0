// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize parses raw, annotated nomenclature strings into a
// canonical scientific name plus alias names, qualifier, locality, and
// trade code. The output feeds the lookup strategies both as match keys
// and as validation keys.
package normalize

import (
	"regexp"
	"strings"
)

// Result is the normalized form of one nomenclature string. A blank input
// yields the zero value; normalization never fails.
type Result struct {
	Canonical       string
	Alternates      []string
	Qualifier       string // "cf" or "aff" when the name carries an identification qualifier
	QualifierTarget string // the epithet the qualifier applies to
	Locality        string
	TradeCode       string
}

// tradeCodePattern matches ornamental-fish trade codes: "L27", "L 27", "L-46".
var tradeCodePattern = regexp.MustCompile(`\bL\s*-?\s*(\d{1,3})\b`)

// synPrefix and inclPrefix match synonym ("Syn.:") and inclusion
// ("inkl.:"/"incl.") annotations. The colon is required for synonyms so
// genera like Synodontis are not mistaken for the marker.
var (
	synPrefix  = regexp.MustCompile(`^(?i)syn\.?\s*:\s*`)
	inclPrefix = regexp.MustCompile(`^(?i)in[ck]l\.?\s*:?\s*`)
)

// geoMarkers are tokens that classify a residual annotation as a locality.
var geoMarkers = map[string]bool{
	"rio": true, "river": true, "lago": true, "lake": true, "see": true,
}

// Name normalizes one raw nomenclature string. Top-level bracketed segments
// are peeled off first (nesting-aware); the remainder is the primary name.
// Abbreviated tokens in alternates expand against the nearest prior fully
// spelled name, carried across segments in source order.
func Name(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}
	}

	core, segments, quoted := splitSegments(raw)

	var res Result
	if quoted != "" {
		res.Locality = quoted
	}

	var ctx nameContext
	res.Canonical = parseName(core, &ctx, &res, true)

	for _, seg := range segments {
		classifySegment(seg, &ctx, &res)
	}

	return res
}

// splitSegments extracts top-level parenthesized/bracketed segments and the
// first quoted substring. Nested brackets stay inside their segment text.
// Unbalanced closers are dropped; an unterminated segment is kept.
func splitSegments(raw string) (core string, segments []string, quoted string) {
	var coreB, segB, quoteB strings.Builder
	depth := 0
	inQuote := false

	for _, r := range raw {
		switch {
		case inQuote:
			if r == '"' || r == '\'' {
				inQuote = false
				if quoted == "" {
					quoted = strings.TrimSpace(quoteB.String())
				}
				quoteB.Reset()
			} else {
				quoteB.WriteRune(r)
			}
		case (r == '"' || r == '\'') && depth == 0:
			inQuote = true
		case r == '(' || r == '[':
			if depth > 0 {
				segB.WriteRune(r)
			}
			depth++
		case r == ')' || r == ']':
			if depth > 1 {
				segB.WriteRune(r)
			} else if depth == 1 {
				segments = append(segments, strings.TrimSpace(segB.String()))
				segB.Reset()
			}
			if depth > 0 {
				depth--
			}
		default:
			if depth > 0 {
				segB.WriteRune(r)
			} else {
				coreB.WriteRune(r)
			}
		}
	}

	if segB.Len() > 0 {
		segments = append(segments, strings.TrimSpace(segB.String()))
	}
	return strings.TrimSpace(coreB.String()), segments, quoted
}

// classifySegment routes one top-level segment: synonym, inclusion,
// trade-code/locality annotation, or bare alternate name.
func classifySegment(seg string, ctx *nameContext, res *Result) {
	if seg == "" {
		return
	}

	if loc := synPrefix.FindString(seg); loc != "" {
		res.addAlternate(parseName(seg[len(loc):], ctx, res, false))
		return
	}
	if loc := inclPrefix.FindString(seg); loc != "" {
		res.addAlternate(parseName(seg[len(loc):], ctx, res, false))
		return
	}

	if m := tradeCodePattern.FindStringSubmatchIndex(seg); m != nil {
		res.TradeCode = "L" + seg[m[2]:m[3]]
		rest := strings.TrimSpace(strings.TrimSpace(seg[:m[0]]) + " " + strings.TrimSpace(seg[m[1]:]))
		if rest == "" {
			return
		}
		if hasGeoMarker(rest) {
			if res.Locality == "" {
				res.Locality = rest
			}
			return
		}
		res.addAlternate(parseName(rest, ctx, res, false))
		return
	}

	if hasGeoMarker(seg) {
		if res.Locality == "" {
			res.Locality = seg
		}
		return
	}

	res.addAlternate(parseName(seg, ctx, res, false))
}

func (r *Result) addAlternate(name string) {
	if name != "" {
		r.Alternates = append(r.Alternates, name)
	}
}

func hasGeoMarker(s string) bool {
	for _, f := range strings.Fields(s) {
		if geoMarkers[strings.ToLower(strings.Trim(f, ",."))] {
			return true
		}
	}
	return false
}

// nameContext carries the token list of the most recent fully spelled name
// so abbreviated tokens ("A.", "f.") can expand positionally.
type nameContext struct {
	tokens []string
}

func (c *nameContext) at(i int) (string, bool) {
	if i >= len(c.tokens) || c.tokens[i] == "sp." {
		return "", false
	}
	return c.tokens[i], true
}

func (c *nameContext) update(tokens []string) {
	// A name whose genus is still abbreviated cannot anchor later expansions.
	if len(tokens) == 0 || strings.HasSuffix(tokens[0], ".") {
		return
	}
	c.tokens = tokens
}

// parseName tokenizes one name left-to-right: genus first, then species and
// subspecies epithets. "cf."/"aff." markers set the qualifier, "sp." stays
// as a placeholder species, and single-letter abbreviations expand from the
// context. A core name with no species epithet gains a trailing "sp."
// rather than being dropped.
func parseName(text string, ctx *nameContext, res *Result, core bool) string {
	var out []string
	qualifierPending := false

	for _, field := range strings.Fields(text) {
		tok := strings.Trim(field, ",;()[]")
		if tok == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSuffix(tok, ".")) {
		case "cf", "aff":
			if res.Qualifier == "" {
				res.Qualifier = strings.ToLower(strings.TrimSuffix(tok, "."))
				qualifierPending = true
			}
			continue
		case "sp", "spec":
			out = append(out, "sp.")
			continue
		}

		if isAbbreviation(tok) {
			if exp, ok := ctx.at(len(out)); ok {
				tok = exp
			}
		}
		out = append(out, tok)

		if qualifierPending {
			res.QualifierTarget = tok
			qualifierPending = false
		}
	}

	if len(out) == 0 {
		return ""
	}
	if core && len(out) == 1 {
		out = append(out, "sp.")
	}
	ctx.update(out)
	return strings.Join(out, " ")
}

// isAbbreviation reports whether tok is a single-letter abbreviation like "A.".
func isAbbreviation(tok string) bool {
	return len(tok) == 2 && tok[1] == '.' &&
		(tok[0] >= 'A' && tok[0] <= 'Z' || tok[0] >= 'a' && tok[0] <= 'z')
}
