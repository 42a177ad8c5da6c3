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

// mailpipectl is the operator CLI for the case mail pipeline.
//
// It runs single passes and the individual stages by hand, inspects and
// applies triage decisions, and manages the retrieval watermark.
//
// Usage:
//
//	mailpipectl --config config.yaml run
//	mailpipectl triage scan --store EMAIL_COURTS_SUPREME_COURT
//	mailpipectl watermark set 2026-02-01T00:00:00Z
package main

func main() {
	Execute()
}
