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

// Package format derives storage keys for messages and encodes stored
// records.
//
// Key format:
//
//	{year}.{month}.{day}_{sender}_{HH}-{MM}-{SS}_{idhash}
//	2026.02.09_casework_ico_org_uk_10-30-45_5a2e9f86d0811c3b
//
// The time components are taken in UTC. The idhash suffix is the full
// xxhash64 of the message ID in hex, so two distinct messages from the same
// sender within the same second get distinct keys unless their IDs collide
// in 64 bits. It is omitted when the message ID is empty.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

var senderReplacer = strings.NewReplacer("@", "_", ".", "_")

// SanitizeSender lower-cases from and replaces '@' and '.' with '_'.
func SanitizeSender(from string) string {
	return strings.ToLower(senderReplacer.Replace(from))
}

// BaseKey returns the date/sender part of the key without the ID suffix.
func BaseKey(from string, date time.Time) string {
	d := date.UTC()
	return fmt.Sprintf("%04d.%02d.%02d_%s_%02d-%02d-%02d",
		d.Year(), int(d.Month()), d.Day(),
		SanitizeSender(from),
		d.Hour(), d.Minute(), d.Second(),
	)
}

// IDHashLen is the length of the IDHash suffix.
const IDHashLen = 16

// IDHash returns the 16 hex character suffix derived from messageID.
func IDHash(messageID string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(messageID))
}

// Key derives the storage key for a message. It is a pure function of its
// inputs: the same (from, date, messageID) always yields the same key.
func Key(from string, date time.Time, messageID string) string {
	base := BaseKey(from, date)
	if messageID == "" {
		return base
	}
	return base + "_" + IDHash(messageID)
}

// DayPrefix returns the key prefix shared by every record dated on the same
// UTC day, usable as a List prefix.
func DayPrefix(day time.Time) string {
	d := day.UTC()
	return fmt.Sprintf("%04d.%02d.%02d_", d.Year(), int(d.Month()), d.Day())
}
