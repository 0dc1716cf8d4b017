package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RiskReason is one contributing factor. Score is nil for plain-text reasons.
type RiskReason struct {
	Description string `json:"description"`
	Score       *int   `json:"score,omitempty"`
}

type RiskAssessment struct {
	Score   *int         `json:"score"`
	Level   RiskLevel    `json:"level"`
	Reasons []RiskReason `json:"reasons"`
	Source  string       `json:"source"` // "event" or "order"
}

// AssessRisk projects the latest risk_evaluated event, falling back to the
// order's own risk fields when no such event exists.
func AssessRisk(order *Order, events []OrderEvent) RiskAssessment {
	var latest *OrderEvent
	for i := range events {
		if CanonicalEventType(events[i].EventType) != EventRiskEvaluated {
			continue
		}
		if latest == nil || events[i].CreatedAt.After(latest.CreatedAt) {
			latest = &events[i]
		}
	}

	if latest != nil {
		ra := RiskAssessment{Source: "event"}
		if s, ok := intField(latest.Payload["score"]); ok {
			ra.Score = &s
		}
		if lvl, ok := latest.Payload["level"].(string); ok && lvl != "" {
			ra.Level = RiskLevel(strings.ToUpper(lvl))
		} else if ra.Score != nil {
			ra.Level = LevelForScore(*ra.Score)
		}
		ra.Reasons = parseReasons(latest.Payload["reasons"])
		return ra
	}

	ra := RiskAssessment{Source: "order", Reasons: []RiskReason{}}
	if order == nil {
		return ra
	}
	ra.Score = order.RiskScore
	ra.Level = order.RiskLevel
	if ra.Level == "" && ra.Score != nil {
		ra.Level = LevelForScore(*ra.Score)
	}
	return ra
}

func parseReasons(v any) []RiskReason {
	out := []RiskReason{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, it := range items {
		switch r := it.(type) {
		case string:
			out = append(out, RiskReason{Description: r})
		case map[string]any:
			reason := RiskReason{}
			if d, ok := r["description"].(string); ok {
				reason.Description = d
			}
			if s, ok := intField(r["score"]); ok {
				reason.Score = &s
			}
			out = append(out, reason)
		}
	}
	return out
}

// intField accepts the numeric shapes a JSON payload can carry.
func intField(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(math.Round(n)), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Label renders "LEVEL (score)" for display.
func (r RiskAssessment) Label() string {
	switch {
	case r.Score != nil && r.Level != "":
		return fmt.Sprintf("%s (%d)", r.Level, *r.Score)
	case r.Score != nil:
		return strconv.Itoa(*r.Score)
	}
	return string(r.Level)
}
