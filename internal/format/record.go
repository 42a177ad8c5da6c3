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

package format

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/org-mobicycle-ou/workflow-email-mobicycle-ou/internal/models"
)

// ErrMalformedRecord is returned by Decode for values that are not a
// stored record.
var ErrMalformedRecord = errors.New("malformed stored record")

// Encode serialises a stored record for the KV store.
func Encode(rec models.StoredRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal stored record: %w", err)
	}
	return data, nil
}

// Decode parses a value written by Encode. Legacy triage level names are
// normalised.
func Decode(data []byte) (models.StoredRecord, error) {
	var rec models.StoredRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.StoredRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.Status == "" {
		return models.StoredRecord{}, fmt.Errorf("%w: missing status", ErrMalformedRecord)
	}
	rec.TriageLevel = rec.TriageLevel.Normalize()
	return rec, nil
}
