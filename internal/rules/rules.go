// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rules holds the category rule set and the classifier that maps a
// message onto zero or more categories.
package rules

import (
	"strings"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// Conditions lists the substrings that make a rule fire. Matching is
// case-insensitive and each list is checked only against its own field.
type Conditions struct {
	FromIncludes    []string `yaml:"from_includes,omitempty" json:"from_includes,omitempty"`
	ToIncludes      []string `yaml:"to_includes,omitempty" json:"to_includes,omitempty"`
	SubjectIncludes []string `yaml:"subject_includes,omitempty" json:"subject_includes,omitempty"`
}

// Empty reports whether no pattern is configured.
func (c Conditions) Empty() bool {
	return len(c.FromIncludes) == 0 && len(c.ToIncludes) == 0 && len(c.SubjectIncludes) == 0
}

// Rule binds a category to its conditions. Priority is an informational
// label carried to operators; it does not affect matching.
type Rule struct {
	Category   string     `yaml:"category" json:"category"`
	Priority   string     `yaml:"priority,omitempty" json:"priority,omitempty"`
	Conditions Conditions `yaml:"conditions" json:"conditions"`
}

// Classification is the result of evaluating a message against a rule set.
type Classification struct {
	Matched    bool
	Categories []string
}

// Classify evaluates every rule against msg. A rule fires when any
// configured field contains any of its patterns. Categories are returned in
// rule order with duplicates removed.
func Classify(msg models.Message, rules []Rule) Classification {
	from := strings.ToLower(msg.From)
	to := strings.ToLower(msg.To)
	subject := strings.ToLower(msg.Subject)

	var categories []string
	seen := make(map[string]struct{})
	for _, r := range rules {
		if !r.fires(from, to, subject) {
			continue
		}
		if _, dup := seen[r.Category]; dup {
			continue
		}
		seen[r.Category] = struct{}{}
		categories = append(categories, r.Category)
	}

	return Classification{
		Matched:    len(categories) > 0,
		Categories: categories,
	}
}

// fires expects already lower-cased fields.
func (r Rule) fires(from, to, subject string) bool {
	return containsAny(from, r.Conditions.FromIncludes) ||
		containsAny(to, r.Conditions.ToIncludes) ||
		containsAny(subject, r.Conditions.SubjectIncludes)
}

func containsAny(field string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(field, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories of rs in rule order.
func Categories(rs []Rule) []string {
	var out []string
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	return out
}
