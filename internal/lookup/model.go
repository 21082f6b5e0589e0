// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/internal/llm"
	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// modelPromptTmpl instructs the reasoning service to return exactly one
// JSON field: a well-formed entity identifier or null. Individuals, breeds,
// and disambiguation pages are explicitly excluded.
var modelPromptTmpl = template.Must(template.New("identify").Parse(`You are a taxonomic identification system with access to the Wikidata knowledge graph.

Determine the Wikidata entity for the following animal taxon:

Scientific names: {{.Scientific}}
{{- if .Vernacular}}
Vernacular names: {{.Vernacular}}
{{- end}}

Rules:
- Only return an entity representing a species, subspecies, or variety.
- Never return entities for individual animals, domesticated breeds, or disambiguation pages.
- If no suitable entity exists or you are unsure, return null.

Respond with a JSON object containing exactly one field "qid", holding either the identifier string (e.g. "Q140") or null. Do not include any text outside the JSON object.`))

// Model submits the candidate names to a reasoning service and validates
// the returned token against the strict identifier syntax. Malformed
// output counts as no-match immediately; only transient service errors
// are retried.
type Model struct {
	AI          llm.Client
	Score       int
	MaxAttempts int
	Log         io.Writer
}

// Name returns the strategy identifier.
func (m *Model) Name() string { return "model" }

// modelReply is the strict structured-output contract.
type modelReply struct {
	QID *string `json:"qid"`
}

// Lookup renders the identification prompt, calls the service with bounded
// retries, and validates the reply.
func (m *Model) Lookup(ctx context.Context, cand types.CandidateName) (types.MatchResult, error) {
	var buf bytes.Buffer
	err := modelPromptTmpl.Execute(&buf, struct {
		Scientific string
		Vernacular string
	}{
		Scientific: strings.Join(cand.ScientificNames(), "; "),
		Vernacular: strings.Join(cand.Vernacular, "; "),
	})
	if err != nil {
		return types.MatchResult{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var raw string
	err = httputil.Retry(ctx, m.MaxAttempts,
		func(err error) bool { return errors.Is(err, httputil.ErrTransient) },
		func(ctx context.Context) error {
			var callErr error
			raw, callErr = m.AI.Complete(ctx, buf.String())
			return callErr
		})
	if err != nil {
		return types.MatchResult{}, err
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &reply); err != nil {
		fmt.Fprintf(m.Log, "warning: model returned malformed payload for %q: %q\n", cand.Canonical, raw)
		return types.MatchResult{}, nil
	}
	if reply.QID == nil {
		return types.MatchResult{}, nil
	}
	if !wikidata.ValidID(*reply.QID) {
		fmt.Fprintf(m.Log, "warning: model returned malformed identifier for %q: %q\n", cand.Canonical, raw)
		return types.MatchResult{}, nil
	}

	return types.MatchResult{
		ExternalID: *reply.QID,
		Method:     types.MethodModel,
		Score:      m.Score,
	}, nil
}
