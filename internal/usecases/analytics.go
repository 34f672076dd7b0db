package usecases

import (
	"sort"

	"project_supportbot/internal/entities"
)

// DefaultTopK is how many intents the analytics view shows unless asked otherwise
const DefaultTopK = 5

// Static performance figures. None of them is derived from the message log;
// they are placeholders an operator can override through settings.
const (
	DefaultAvgResponseTimeSeconds = 1.2
	DefaultResolutionRate         = 87.0
	DefaultSatisfactionScore      = 4.6
	SatisfactionScale             = 5.0
	DefaultFirstContactResolution = 73.0
	DefaultEscalationRate         = 13.0
)

type PerformanceFigures struct {
	AvgResponseTimeSeconds float64 `json:"avg_response_time_seconds"`
	ResolutionRate         float64 `json:"resolution_rate"`
	SatisfactionScore      float64 `json:"satisfaction_score"`
	SatisfactionScale      float64 `json:"satisfaction_scale"`
	FirstContactResolution float64 `json:"first_contact_resolution"`
	EscalationRate         float64 `json:"escalation_rate"`
	Derived                bool    `json:"derived"` // always false: configured, not measured
}

func DefaultPerformanceFigures() PerformanceFigures {
	return PerformanceFigures{
		AvgResponseTimeSeconds: DefaultAvgResponseTimeSeconds,
		ResolutionRate:         DefaultResolutionRate,
		SatisfactionScore:      DefaultSatisfactionScore,
		SatisfactionScale:      SatisfactionScale,
		FirstContactResolution: DefaultFirstContactResolution,
		EscalationRate:         DefaultEscalationRate,
	}
}

type IntentStat struct {
	Intent     string  `json:"intent"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type AnalyticsReport struct {
	TotalMessages      int                `json:"total_messages"`
	UserMessageCount   int                `json:"user_message_count"`
	AgentMessageCount  int                `json:"agent_message_count"`
	IntentDistribution []IntentStat       `json:"intent_distribution"`
	TopK               int                `json:"top_k"`
	TopIntents         []IntentStat       `json:"top_intents"`
	Performance        PerformanceFigures `json:"performance"`

	counts map[string]int
}

// IntentPercentage is count(label) / agent messages * 100, or 0 without agent messages
func (r AnalyticsReport) IntentPercentage(label string) float64 {
	return percentage(r.counts[label], r.AgentMessageCount)
}

// ComputeAnalytics derives counts and the intent distribution from a snapshot.
// The distribution is sorted by count, ties keep first-seen order.
func ComputeAnalytics(snapshot []entities.Message, topK int, perf PerformanceFigures) AnalyticsReport {
	if topK <= 0 {
		topK = DefaultTopK
	}

	report := AnalyticsReport{
		TotalMessages: len(snapshot),
		TopK:          topK,
		Performance:   perf,
		counts:        make(map[string]int),
	}
	report.Performance.Derived = false

	var order []string
	for _, m := range snapshot {
		switch m.Role {
		case entities.RoleUser:
			report.UserMessageCount++
		case entities.RoleAgent:
			report.AgentMessageCount++
			if m.Intent == "" {
				continue
			}
			if _, seen := report.counts[m.Intent]; !seen {
				order = append(order, m.Intent)
			}
			report.counts[m.Intent]++
		}
	}

	dist := make([]IntentStat, 0, len(order))
	for _, intent := range order {
		count := report.counts[intent]
		dist = append(dist, IntentStat{
			Intent:     intent,
			Count:      count,
			Percentage: percentage(count, report.AgentMessageCount),
		})
	}
	sort.SliceStable(dist, func(i, j int) bool {
		return dist[i].Count > dist[j].Count
	})
	report.IntentDistribution = dist

	if len(dist) > topK {
		report.TopIntents = dist[:topK:topK]
	} else {
		report.TopIntents = dist
	}
	return report
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
