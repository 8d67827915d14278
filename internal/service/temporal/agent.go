package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

const defaultPredicateLimit = 20

// Agent translates natural-language time references ("yesterday", "in May")
// into structured transcript predicates. It is strictly best-effort: any
// provider failure or schema violation degrades to "no temporal reference"
// and never fails the parent turn.
type Agent struct {
	ai      core.Completer
	loc     *time.Location
	timeout time.Duration
}

func NewAgent(ai core.Completer, loc *time.Location, timeout time.Duration) *Agent {
	if loc == nil {
		loc = time.UTC
	}
	return &Agent{ai: ai, loc: loc, timeout: timeout}
}

// Resolve returns a validated predicate, or nil when the utterance carries no
// usable temporal reference.
func (a *Agent) Resolve(ctx context.Context, utterance string, now time.Time) *core.Predicate {
	logger := log.FromCtx(ctx)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.ai.Complete(ctx, a.systemPrompt(now), []core.Message{
		{Role: core.RoleUser, Content: utterance},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("temporal agent call failed, skipping temporal context")
		return nil
	}

	predicate, err := parseResponse(raw)
	if err != nil {
		logger.Warn().Err(err).Str("response", raw).Msg("temporal agent output rejected")
		return nil
	}
	if predicate == nil {
		return nil
	}

	if err := predicate.Validate(); err != nil {
		logger.Warn().Err(err).Msg("temporal agent produced invalid predicate")
		return nil
	}
	return predicate
}

type agentResponse struct {
	HasTemporalReference bool   `json:"has_temporal_reference"`
	Start                string `json:"start"`
	End                  string `json:"end"`
	Keyword              string `json:"keyword"`
}

func parseResponse(raw string) (*core.Predicate, error) {
	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: no JSON object found in response", core.ErrSchemaValidation)
	}

	var resp agentResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", core.ErrSchemaValidation, err)
	}

	if !resp.HasTemporalReference {
		return nil, nil
	}

	start, err := time.Parse(time.RFC3339, resp.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start timestamp %q", core.ErrSchemaValidation, resp.Start)
	}
	end, err := time.Parse(time.RFC3339, resp.End)
	if err != nil {
		return nil, fmt.Errorf("%w: bad end timestamp %q", core.ErrSchemaValidation, resp.End)
	}

	return &core.Predicate{
		Start:   start,
		End:     end,
		Keyword: strings.TrimSpace(resp.Keyword),
		Limit:   defaultPredicateLimit,
	}, nil
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(content[start:], "}")
	if end == -1 {
		return ""
	}
	return content[start : start+end+1]
}

func (a *Agent) systemPrompt(now time.Time) string {
	local := now.In(a.loc)
	today := local.Format("2006-01-02")
	yesterday := local.AddDate(0, 0, -1).Format("2006-01-02")

	return fmt.Sprintf(`You detect time references in a user message and convert them into a time range.

CURRENT TIME: %s (%s)
TIMEZONE: %s

Respond with ONLY a JSON object, no explanation, no markdown:
{"has_temporal_reference": <bool>, "start": "<RFC3339>", "end": "<RFC3339>", "keyword": "<optional topic word>"}

RULES:
1. If the message contains no reference to a past time, respond {"has_temporal_reference": false}.
2. "start" and "end" must be RFC3339 timestamps in the timezone above, start <= end.
3. Calendar references ("yesterday", "on May 10th") cover the full calendar day(s) in the timezone above.
4. Add "keyword" only when the message names a concrete topic to filter by.

EXAMPLES:

Message: "What did we discuss yesterday?"
{"has_temporal_reference": true, "start": "%sT00:00:00%s", "end": "%sT23:59:59%s", "keyword": ""}

Message: "What did I say about deploys this morning?"
{"has_temporal_reference": true, "start": "%sT00:00:00%s", "end": "%s", "keyword": "deploys"}

Message: "Tell me a joke"
{"has_temporal_reference": false}`,
		local.Format(time.RFC3339), local.Weekday(), a.loc.String(),
		yesterday, local.Format("Z07:00"), yesterday, local.Format("Z07:00"),
		today, local.Format("Z07:00"), local.Format(time.RFC3339))
}
