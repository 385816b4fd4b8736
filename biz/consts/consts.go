/*
 * Copyright 2025 DeepDive Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package consts

// ==================================== Agent Name ====================================
const (
	Coordinator            = "coordinator"
	Planner                = "planner"
	Reporter               = "reporter"
	Researcher             = "researcher"
	Coder                  = "coder"
	ResearchTeam           = "research_team"
	BackgroundInvestigator = "background_investigator"
	Human                  = "human_feedback"
)

// ==================================== Human Option ====================================
const (
	EditPlan   = "edit_plan"
	AcceptPlan = "accepted"

	// feedback markers carried in the interrupt resume value
	EditPlanMarker   = "[EDIT_PLAN]"
	AcceptPlanMarker = "[ACCEPTED]"
)

// ==================================== Coordinator Tools ====================================
const (
	HandoffToPlanner          = "handoff_to_planner"
	HandoffAfterClarification = "handoff_after_clarification"
	DirectResponse            = "direct_response"
)

// ==================================== Built-in Tool Names ====================================
const (
	WebSearchTool   = "web_search"
	LocalSearchTool = "local_search_tool"
)

// AutoLocale is what some models emit when they cannot detect the user's
// language. It must never override a real locale stored in state.
const AutoLocale = "auto"

const DefaultLocale = "en-US"
