package usecases

import (
	"fmt"
	"strings"

	"project_supportbot/internal/entities"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// IntentRule maps a set of trigger substrings to an intent and its canned reply.
// Priority is the rule's position in the list; the first match wins.
type IntentRule struct {
	Priority int      `toml:"-" json:"priority"`
	Triggers []string `toml:"triggers" json:"triggers"`
	Intent   string   `toml:"intent" json:"intent"`
	Reply    string   `toml:"reply" json:"reply"`
}

// DefaultRules returns the canonical support rule set, highest priority first
func DefaultRules() []IntentRule {
	return []IntentRule{
		{
			Priority: 1,
			Triggers: []string{"track", "order", "shipping"},
			Intent:   entities.IntentOrderTracking,
			Reply:    "📦 I can help you track your order! Please provide your order number and I'll look it up for you.",
		},
		{
			Priority: 2,
			Triggers: []string{"return", "refund", "exchange"},
			Intent:   entities.IntentReturns,
			Reply:    "↩️ Our return policy allows returns within 30 days of purchase. Items must be unused and in original packaging. Would you like to start a return?",
		},
		{
			Priority: 3,
			Triggers: []string{"product", "item", "buy"},
			Intent:   entities.IntentProductInfo,
			Reply:    "🛍️ I'd be happy to help with product information! What specific product are you interested in learning about?",
		},
		{
			Priority: 4,
			Triggers: []string{"support", "help", "agent"},
			Intent:   entities.IntentContactSupport,
			Reply:    "🎧 You can reach our human support team at support@company.com or call 1-800-SUPPORT. They're available 24/7!",
		},
		{
			Priority: 5,
			Triggers: []string{"bill", "payment", "charge"},
			Intent:   entities.IntentBilling,
			Reply:    "💳 I can help with billing questions! Are you looking to update payment info, review charges, or something else?",
		},
		{
			Priority: 6,
			Intent:   entities.IntentFallback,
			Reply:    "🤔 I understand you need help, but I'm not sure about that specific request. Let me connect you with a human agent who can better assist you!",
		},
	}
}

// IntentClassifier evaluates an ordered rule list against user text.
// It holds no mutable state after construction and is safe for concurrent use.
type IntentClassifier struct {
	rules []IntentRule
}

// NewIntentClassifier validates the rules and normalises their triggers
func NewIntentClassifier(rules []IntentRule) (*IntentClassifier, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", entities.ErrInvalidRules)
	}

	normalised := make([]IntentRule, len(rules))
	for i, r := range rules {
		last := i == len(rules)-1
		if strings.TrimSpace(r.Intent) == "" {
			return nil, fmt.Errorf("%w: rule %d has no intent", entities.ErrInvalidRules, i+1)
		}
		if strings.TrimSpace(r.Reply) == "" {
			return nil, fmt.Errorf("%w: rule %q has no reply", entities.ErrInvalidRules, r.Intent)
		}
		if r.Intent == entities.IntentGreeting {
			return nil, fmt.Errorf("%w: %q is reserved for the seed message", entities.ErrInvalidRules, r.Intent)
		}

		if r.Intent == entities.IntentFallback {
			if !last {
				return nil, fmt.Errorf("%w: fallback must be the last rule", entities.ErrInvalidRules)
			}
			if len(r.Triggers) > 0 {
				return nil, fmt.Errorf("%w: fallback cannot have triggers", entities.ErrInvalidRules)
			}
		} else if last {
			return nil, fmt.Errorf("%w: last rule must be %q", entities.ErrInvalidRules, entities.IntentFallback)
		}

		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			t = normalize(t)
			if t == "" {
				return nil, fmt.Errorf("%w: rule %q has a blank trigger", entities.ErrInvalidRules, r.Intent)
			}
			triggers = append(triggers, t)
		}
		if r.Intent != entities.IntentFallback && len(triggers) == 0 {
			return nil, fmt.Errorf("%w: rule %q has no triggers", entities.ErrInvalidRules, r.Intent)
		}

		normalised[i] = IntentRule{
			Priority: i + 1,
			Triggers: triggers,
			Intent:   r.Intent,
			Reply:    r.Reply,
		}
	}

	return &IntentClassifier{rules: normalised}, nil
}

// NewDefaultIntentClassifier returns a classifier over DefaultRules
func NewDefaultIntentClassifier() *IntentClassifier {
	c, err := NewIntentClassifier(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the intent and reply of the first rule whose trigger occurs in text.
// Declaration order wins over specificity; unmatched text resolves to the fallback rule.
func (c *IntentClassifier) Classify(text string) (intent, reply string) {
	text = normalize(text)
	for _, r := range c.rules {
		if len(r.Triggers) == 0 {
			// only the fallback rule, which is always last
			return r.Intent, r.Reply
		}
		for _, t := range r.Triggers {
			if strings.Contains(text, t) {
				return r.Intent, r.Reply
			}
		}
	}
	fallback := c.rules[len(c.rules)-1]
	return fallback.Intent, fallback.Reply
}

// Rules returns a copy of the configured rules in priority order
func (c *IntentClassifier) Rules() []IntentRule {
	out := make([]IntentRule, len(c.rules))
	for i, r := range c.rules {
		r.Triggers = append([]string(nil), r.Triggers...)
		out[i] = r
	}
	return out
}

// Vocabulary returns every label an agent message can carry
func (c *IntentClassifier) Vocabulary() []string {
	labels := []string{entities.IntentGreeting}
	for _, r := range c.rules {
		labels = append(labels, r.Intent)
	}
	return labels
}

type rulesFile struct {
	Rules []IntentRule `toml:"rule"`
}

// LoadRulesFile reads [[rule]] tables from a TOML file, in declaration order
func LoadRulesFile(path string) ([]IntentRule, error) {
	var f rulesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("%w: %s defines no [[rule]] entries", entities.ErrInvalidRules, path)
	}
	return f.Rules, nil
}

// normalize folds width variants, trims and lower-cases
func normalize(s string) string {
	s = norm.NFKC.String(s)
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}
