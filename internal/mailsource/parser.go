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

package mailsource

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// bridgeEmail represents one entry of a /fetch-emails response.
type bridgeEmail struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

type fetchResponse struct {
	Emails []bridgeEmail `json:"emails"`
}

// parseFolder converts a /fetch-emails response into messages.
func parseFolder(body io.Reader) ([]models.Message, error) {
	var resp fetchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode fetch response: %w", err)
	}

	msgs := make([]models.Message, 0, len(resp.Emails))
	for _, e := range resp.Emails {
		date, ok := parseDate(e.Date, e.MessageID)
		msgs = append(msgs, models.Message{
			From:        e.From,
			To:          e.To,
			Subject:     e.Subject,
			Date:        date,
			MessageID:   e.MessageID,
			Body:        e.Body,
			DateUnknown: !ok,
		})
	}
	return msgs, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
}

// parseDate accepts ISO-8601 and RFC 5322 dates. A missing or unreadable
// date yields models.UnknownDate and false so the message is still
// processed under a stable key.
func parseDate(raw, messageID string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.UnknownDate, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return t.UTC(), true
	}

	slog.Warn("unparseable message date",
		"message_id", messageID,
		"date", raw,
	)
	return models.UnknownDate, false
}
