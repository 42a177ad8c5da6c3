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

package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed rules.schema.json
var schemaJSON []byte

const schemaURL = "https://mobicycle.ou/schemas/mailpipe/rules.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func ruleSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse rule schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add rule schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ruleFile mirrors the YAML structure of a rule file.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile reads and validates a YAML rule file. ${VAR} references are not
// expanded; rule files hold patterns, not secrets.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rs, nil
}

// Parse validates YAML rule data against the rule schema and decodes it.
func Parse(data []byte) ([]Rule, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	// The validator works on JSON values, so round-trip through JSON.
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("convert rules to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("convert rules to JSON: %w", err)
	}

	sch, err := ruleSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return f.Rules, nil
}

// Marshal renders rs in the rule file format.
func Marshal(rs []Rule) ([]byte, error) {
	data, err := yaml.Marshal(ruleFile{Rules: rs})
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return data, nil
}
