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

// Package models defines the data structures shared across the pipeline.
package models

import "time"

// UnknownDate is the Date of a message whose source date was missing or
// unreadable. It is fixed so the message keeps the same key on every run.
var UnknownDate = time.Unix(0, 0).UTC()

// Message is a single inbound email as supplied by the mail source.
// MessageID is the only reliable external identity; it is stable across
// retrievals of the same physical message.
type Message struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`
	MessageID string    `json:"message_id"`
	Body      string    `json:"body"`

	// DateUnknown marks a Date of UnknownDate. Such messages never move the
	// watermark.
	DateUnknown bool `json:"date_unknown,omitempty"`
}

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusPending means stored by the router, not yet triaged.
	StatusPending Status = "pending"

	// StatusTriaged means a triage level and suggested action were applied.
	StatusTriaged Status = "triaged"

	// StatusClosed means no further action is required.
	StatusClosed Status = "closed"
)

// TriageLevel is the escalation classification of a record.
type TriageLevel string

const (
	LevelNoAction TriageLevel = "NO_ACTION"
	LevelSimple   TriageLevel = "SIMPLE"
	LevelComplex  TriageLevel = "COMPLEX"
)

// legacyNoted is the older spelling of LevelNoAction found in records
// written before the level names were unified.
const legacyNoted TriageLevel = "NOTED"

// Normalize maps legacy level names onto the canonical set.
func (l TriageLevel) Normalize() TriageLevel {
	if l == legacyNoted {
		return LevelNoAction
	}
	return l
}

// StoredRecord is the persisted form of a message inside one store.
//
// Content fields are written once by the router. Only the status block
// (Status, Triage*, ClosedAt) is ever updated afterwards, and only by the
// triage engine.
type StoredRecord struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	MessageID  string    `json:"message_id"`
	Body       string    `json:"body"`
	Namespaces []string  `json:"namespaces"`
	StoredAt   time.Time `json:"stored_at"`
	Status     Status    `json:"status"`

	DateUnknown bool `json:"date_unknown,omitempty"`

	TriageLevel           TriageLevel `json:"triage_level,omitempty"`
	TriageReason          string      `json:"triage_reason,omitempty"`
	TriageSuggestedAction string      `json:"triage_suggested_action,omitempty"`
	TriagedAt             *time.Time  `json:"triaged_at,omitempty"`
	ClosedAt              *time.Time  `json:"closed_at,omitempty"`
}

// NewStoredRecord builds a pending record for msg routed to namespaces.
func NewStoredRecord(msg Message, namespaces []string, storedAt time.Time) StoredRecord {
	if namespaces == nil {
		namespaces = []string{}
	}
	return StoredRecord{
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		Date:       msg.Date,
		MessageID:  msg.MessageID,
		Body:       msg.Body,
		Namespaces: namespaces,
		StoredAt:   storedAt,
		Status:     StatusPending,

		DateUnknown: msg.DateUnknown,
	}
}
