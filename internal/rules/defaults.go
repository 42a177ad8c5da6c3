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

// Priority labels used by the built-in rule set.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Category names of the built-in rule set referenced elsewhere.
const (
	CategorySupremeCourt          = "EMAIL_COURTS_SUPREME_COURT"
	CategoryCourtOfAppealCivil    = "EMAIL_COURTS_COURT_OF_APPEALS_CIVIL_DIVISION"
	CategoryReconsiderationCPR525 = "EMAIL_RECONSIDERATION_CPR52_24_5"
	CategoryReconsiderationCPR526 = "EMAIL_RECONSIDERATION_CPR52_24_6"
	CategoryReconsiderationCPR530 = "EMAIL_RECONSIDERATION_CPR52_30"
	CategoryReconsiderationPD52B  = "EMAIL_RECONSIDERATION_PD52B"
)

func rule(category, priority string, c Conditions) Rule {
	return Rule{Category: category, Priority: priority, Conditions: c}
}

func list(s ...string) []string { return s }

// Default returns the built-in rule set. The slice is freshly allocated on
// each call.
func Default() []Rule {
	return []Rule{
		// Complaints
		rule("EMAIL_COMPLAINTS_PHSO", PriorityMedium, Conditions{
			FromIncludes:    list("ombudsman.org.uk", "phso.org.uk", "lgo.org.uk"),
			ToIncludes:      list("ombudsman.org.uk", "phso.org.uk", "lgo.org.uk"),
			SubjectIncludes: list("phso", "ombudsman"),
		}),
		rule("EMAIL_COMPLAINTS_HMCTS", PriorityMedium, Conditions{
			FromIncludes:    list("hmcts.gov.uk", "tribunal.gov.uk"),
			ToIncludes:      list("hmcts.gov.uk", "tribunal.gov.uk"),
			SubjectIncludes: list("hmcts", "tribunal"),
		}),
		rule("EMAIL_COMPLAINTS_PARLIAMENT", PriorityMedium, Conditions{
			FromIncludes:    list("parliament.uk"),
			ToIncludes:      list("parliament.uk"),
			SubjectIncludes: list("parliament", "parliamentary", "member of parliament"),
		}),
		rule("EMAIL_COMPLAINTS_BAR_STANDARDS_BOARD", PriorityMedium, Conditions{
			FromIncludes:    list("barstandardsboard.org.uk", "barcouncil.org.uk", "lawsociety.org.uk", "sra.org.uk"),
			ToIncludes:      list("barstandardsboard.org.uk", "barcouncil.org.uk", "lawsociety.org.uk", "sra.org.uk"),
			SubjectIncludes: list("bar standards", "barrister", "chambers"),
		}),
		rule("EMAIL_COMPLAINTS_ICO", PriorityMedium, Conditions{
			FromIncludes:    list("ico.org.uk"),
			ToIncludes:      list("ico.org.uk"),
			SubjectIncludes: list("ico", "information commissioner", "data protection", "freedom of information", "foi", "gdpr"),
		}),

		// Courts
		rule("EMAIL_COURTS_ADMINISTRATIVE_COURT", PriorityHigh, Conditions{
			FromIncludes:    list("administrativecourt", "admin.court", "courts.gov.uk", "courtservice.gov.uk"),
			ToIncludes:      list("administrativecourt", "admin.court", "courts.gov.uk", "courtservice.gov.uk"),
			SubjectIncludes: list("administrative court", "judicial review"),
		}),
		rule("EMAIL_COURTS_CENTRAL_LONDON_COUNTY_COURT", PriorityHigh, Conditions{
			FromIncludes:    list("centrallondon", "central.london"),
			ToIncludes:      list("centrallondon", "central.london"),
			SubjectIncludes: list("central london county court", "clcc"),
		}),
		rule("EMAIL_COURTS_CHANCERY_DIVISION", PriorityHigh, Conditions{
			FromIncludes:    list("chancery"),
			ToIncludes:      list("chancery"),
			SubjectIncludes: list("chancery division", "chancery court"),
		}),
		rule(CategorySupremeCourt, PriorityHigh, Conditions{
			FromIncludes:    list("supremecourt.uk"),
			ToIncludes:      list("supremecourt.uk", "judiciary.uk"),
			SubjectIncludes: list("supreme court", "uksc"),
		}),
		rule(CategoryCourtOfAppealCivil, PriorityHigh, Conditions{
			SubjectIncludes: list("court of appeal", "civil division", "appeal court"),
		}),
		rule("EMAIL_COURTS_KINGS_BENCH_APPEALS_DIVISION", PriorityHigh, Conditions{
			SubjectIncludes: list("king's bench", "kings bench", "kbd"),
		}),
		rule("EMAIL_COURTS_CLERKENWELL_COUNTY_COURT", PriorityHigh, Conditions{
			FromIncludes:    list("clerkenwell"),
			ToIncludes:      list("clerkenwell"),
			SubjectIncludes: list("clerkenwell"),
		}),

		// Government
		rule("EMAIL_GOVERNMENT_UK_LEGAL_DEPARTMENT", PriorityMedium, Conditions{
			FromIncludes:    list("gov.uk", "government-legal"),
			ToIncludes:      list("gov.uk", "government-legal", "cabinet-office.gov.uk", "homeoffice.gov.uk", "fco.gov.uk", "justice.gov.uk"),
			SubjectIncludes: list("government legal", "treasury solicitor"),
		}),
		rule("EMAIL_GOVERNMENT_US_STATE_DEPARTMENT", PriorityMedium, Conditions{
			FromIncludes:    list("state.gov"),
			ToIncludes:      list("state.gov"),
			SubjectIncludes: list("state department", "embassy", "consulate"),
		}),
		rule("EMAIL_GOVERNMENT_ESTONIA", PriorityMedium, Conditions{
			FromIncludes:    list("gov.ee", "riigikantselei.ee"),
			ToIncludes:      list("gov.ee", "riigikantselei.ee"),
			SubjectIncludes: list("estonia", "estonian"),
		}),

		// Claimants
		rule("EMAIL_CLAIMANT_HK_LAW", PriorityMedium, Conditions{
			FromIncludes:    list("hk-law", "hongkong"),
			ToIncludes:      list("hk-law", "hongkong"),
			SubjectIncludes: list("hk law", "hong kong"),
		}),
		rule("EMAIL_CLAIMANT_LESSEL", PriorityMedium, Conditions{
			FromIncludes:    list("lessel"),
			ToIncludes:      list("lessel"),
			SubjectIncludes: list("lessel"),
		}),
		rule("EMAIL_CLAIMANT_LIU", PriorityMedium, Conditions{
			FromIncludes:    list("liu"),
			ToIncludes:      list("liu"),
			SubjectIncludes: list("liu"),
		}),
		rule("EMAIL_CLAIMANT_RENTIFY", PriorityMedium, Conditions{
			FromIncludes:    list("rentify"),
			ToIncludes:      list("rentify"),
			SubjectIncludes: list("rentify"),
		}),

		// Defendants
		rule("EMAIL_DEFENDANTS_DEFENDANT", PriorityLow, Conditions{
			SubjectIncludes: list("defendant", "respondent"),
		}),
		rule("EMAIL_DEFENDANTS_BOTH_DEFENDANTS", PriorityLow, Conditions{
			SubjectIncludes: list("both defendants", "co-defendant"),
		}),
		rule("EMAIL_DEFENDANTS_BARRISTERS", PriorityLow, Conditions{
			FromIncludes:    list("chambers", "barrister", "counsel"),
			SubjectIncludes: list("barrister", "counsel", "chambers"),
		}),
		rule("EMAIL_DEFENDANTS_LITIGANT_IN_PERSON_ONLY", PriorityLow, Conditions{
			SubjectIncludes: list("litigant in person", "lip", "self-represented"),
		}),
		rule("EMAIL_DEFENDANTS_MOBICYCLE_OU_ONLY", PriorityLow, Conditions{
			FromIncludes:    list("mobicycle"),
			ToIncludes:      list("mobicycle"),
			SubjectIncludes: list("mobicycle"),
		}),

		// Reconsideration
		rule("EMAIL_RECONSIDERATION_SINGLE_JUDGE", PriorityHigh, Conditions{
			SubjectIncludes: list("single judge", "paper determination"),
		}),
		rule("EMAIL_RECONSIDERATION_COURT_OFFICER_REVIEW", PriorityHigh, Conditions{
			SubjectIncludes: list("court officer", "officer review"),
		}),
		rule("EMAIL_RECONSIDERATION_PTA_REFUSAL", PriorityHigh, Conditions{
			SubjectIncludes: list("pta refusal", "permission to appeal refused", "permission refused"),
		}),
		rule(CategoryReconsiderationCPR525, PriorityHigh, Conditions{
			SubjectIncludes: list("cpr 52.24(5)", "cpr52.24(5)", "52.24(5)"),
		}),
		rule(CategoryReconsiderationCPR526, PriorityHigh, Conditions{
			SubjectIncludes: list("cpr 52.24(6)", "cpr52.24(6)", "52.24(6)"),
		}),
		rule(CategoryReconsiderationCPR530, PriorityHigh, Conditions{
			SubjectIncludes: list("cpr 52.30", "cpr52.30", "taylor v lawrence"),
		}),
		rule(CategoryReconsiderationPD52B, PriorityHigh, Conditions{
			SubjectIncludes: list("pd52b", "pd 52b", "practice direction 52b"),
		}),

		// Expenses
		rule("EMAIL_EXPENSES_LEGAL_FEES_CLAIMANT", PriorityLow, Conditions{
			SubjectIncludes: list("legal fees", "costs claimant", "claimant fees"),
		}),
		rule("EMAIL_EXPENSES_LEGAL_FEES_COMPANY", PriorityLow, Conditions{
			SubjectIncludes: list("company fees", "company costs", "corporate legal"),
		}),
		rule("EMAIL_EXPENSES_LEGAL_FEES_DIRECTOR", PriorityLow, Conditions{
			SubjectIncludes: list("director fees", "director costs", "personal liability"),
		}),
		rule("EMAIL_EXPENSES_REPAIRS", PriorityLow, Conditions{
			SubjectIncludes: list("repairs", "maintenance", "repair costs"),
		}),
	}
}
