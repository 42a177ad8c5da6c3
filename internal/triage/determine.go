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

// Package triage assigns an escalation level and a suggested action to
// pending stored records, and applies those decisions back to the store.
package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/rules"
)

// Suggested actions.
const (
	ActionReconsideration = "Generate response document + CE-File submission"
	ActionCourtFiling     = "Draft reply with attachments for court filing"
	ActionAcknowledge     = "Draft acknowledgement email"

	reasonStandard = "Standard correspondence - acknowledge and file"
)

// Decision is the triage outcome for one stored record. It is not persisted
// until applied.
type Decision struct {
	Key             string             `json:"key"`
	From            string             `json:"from"`
	Subject         string             `json:"subject"`
	Date            time.Time          `json:"date"`
	Category        string             `json:"category"`
	Level           models.TriageLevel `json:"level"`
	Reason          string             `json:"reason"`
	SuggestedAction string             `json:"suggestedAction,omitempty"`
}

// Policy is the rule table Determine evaluates.
type Policy struct {
	// NoActionSignals are matched case-insensitively against the subject
	// and the sender.
	NoActionSignals []string

	// ComplexCategories escalate any record routed to them.
	ComplexCategories []string
}

// DefaultPolicy returns the built-in triage rule table.
func DefaultPolicy() Policy {
	return Policy{
		NoActionSignals: []string{
			"delivery notification",
			"delivery status notification",
			"read receipt",
			"out of office",
			"automatic reply",
			"undeliverable",
			"mailer-daemon",
			"noreply",
			"no-reply",
		},
		ComplexCategories: []string{
			rules.CategoryReconsiderationCPR525,
			rules.CategoryReconsiderationCPR526,
			rules.CategoryReconsiderationCPR530,
			rules.CategoryReconsiderationPD52B,
			rules.CategorySupremeCourt,
			rules.CategoryCourtOfAppealCivil,
		},
	}
}

// Determine classifies rec with the default policy.
func Determine(key string, rec models.StoredRecord) Decision {
	return DefaultPolicy().Determine(key, rec)
}

// Determine classifies rec. It is a pure function of key, rec and p.
// No-action signals take precedence over complex categories.
func (p Policy) Determine(key string, rec models.StoredRecord) Decision {
	d := Decision{
		Key:     key,
		From:    rec.From,
		Subject: rec.Subject,
		Date:    rec.Date,
	}
	if len(rec.Namespaces) > 0 {
		d.Category = rec.Namespaces[0]
	}

	subject := strings.ToLower(rec.Subject)
	from := strings.ToLower(rec.From)
	for _, signal := range p.NoActionSignals {
		if strings.Contains(subject, signal) || strings.Contains(from, signal) {
			d.Level = models.LevelNoAction
			d.Reason = fmt.Sprintf("Auto-dismiss: matches signal %q", signal)
			return d
		}
	}

	for _, ns := range rec.Namespaces {
		if !p.isComplex(ns) {
			continue
		}
		d.Level = models.LevelComplex
		d.Reason = fmt.Sprintf("Category %s requires full pipeline processing", ns)
		if strings.Contains(ns, "RECONSIDERATION") {
			d.SuggestedAction = ActionReconsideration
		} else {
			d.SuggestedAction = ActionCourtFiling
		}
		return d
	}

	d.Level = models.LevelSimple
	d.Reason = reasonStandard
	d.SuggestedAction = ActionAcknowledge
	return d
}

func (p Policy) isComplex(ns string) bool {
	for _, c := range p.ComplexCategories {
		if c == ns {
			return true
		}
	}
	return false
}

// LevelCounts tallies decisions by level.
type LevelCounts struct {
	Total    int `json:"total"`
	NoAction int `json:"noAction"`
	Simple   int `json:"simple"`
	Complex  int `json:"complex"`
}

// CountByLevel tallies decisions.
func CountByLevel(ds []Decision) LevelCounts {
	c := LevelCounts{Total: len(ds)}
	for _, d := range ds {
		switch d.Level.Normalize() {
		case models.LevelNoAction:
			c.NoAction++
		case models.LevelSimple:
			c.Simple++
		case models.LevelComplex:
			c.Complex++
		}
	}
	return c
}
