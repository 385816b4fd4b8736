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

package model

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
)

// Resource is a named, user-provided document the researcher may consult
// through the local search tool instead of the open web.
type Resource struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// State is the shared workflow state threaded through every agent subgraph.
// Exactly one workflow run owns one State; nodes mutate it under the graph
// runtime's ProcessState lock and route by writing Goto.
type State struct {
	// 用户输入的信息
	Messages []*schema.Message `json:"messages,omitempty"`

	// 子图共享变量
	Goto                           string   `json:"goto,omitempty"`
	CurrentPlan                    *Plan    `json:"current_plan,omitempty"`
	PlanText                       string   `json:"plan_text,omitempty"`
	Observations                   []string `json:"observations,omitempty"`
	PlanIterations                 int      `json:"plan_iterations"`
	BackgroundInvestigationResults string   `json:"background_investigation_results,omitempty"`
	InterruptFeedback              string   `json:"interrupt_feedback,omitempty"`
	// PendingToolApproval holds the prompt of the tool interrupt the run is
	// currently suspended on; ToolApprovals maps such prompts to the
	// feedback already collected, so replayed steps reuse earlier
	// approvals instead of re-asking.
	PendingToolApproval string            `json:"pending_tool_approval,omitempty"`
	ToolApprovals       map[string]string `json:"tool_approvals,omitempty"`
	FinalReport         string            `json:"final_report,omitempty"`

	// meta 字段,跨越 agent 子图边界时必须保留
	Locale                 string     `json:"locale,omitempty"`
	ResearchTopic          string     `json:"research_topic,omitempty"`
	ClarifiedResearchTopic string     `json:"clarified_research_topic,omitempty"`
	ClarificationHistory   []string   `json:"clarification_history,omitempty"`
	EnableClarification    bool       `json:"enable_clarification"`
	MaxClarificationRounds int        `json:"max_clarification_rounds,omitempty"`
	ClarificationRounds    int        `json:"clarification_rounds"`
	Resources              []Resource `json:"resources,omitempty"`

	// 全局配置变量
	MaxPlanIterations             int  `json:"max_plan_iterations,omitempty"`
	MaxStepNum                    int  `json:"max_step_num,omitempty"`
	AutoAcceptedPlan              bool `json:"auto_accepted_plan"`
	EnableBackgroundInvestigation bool `json:"enable_background_investigation"`
}

// Meta field keys, in the order PreserveStateMetaFields emits them.
const (
	MetaLocale                 = "locale"
	MetaResearchTopic          = "research_topic"
	MetaClarifiedResearchTopic = "clarified_research_topic"
	MetaClarificationHistory   = "clarification_history"
	MetaEnableClarification    = "enable_clarification"
	MetaMaxClarificationRounds = "max_clarification_rounds"
	MetaClarificationRounds    = "clarification_rounds"
	MetaResources              = "resources"
)

// PreserveStateMetaFields snapshots the fixed set of cross-cutting state
// fields that agent subgraphs silently drop: an agent invocation returns
// only a messages-shaped partial update, so every call site that crosses
// that boundary must union this snapshot back into its own update or
// custom state (especially locale) reverts to defaults on the next hop.
//
// The returned map always has exactly these 8 keys. Zero-but-valid values
// (0 rounds, false flags, empty topics) are preserved as-is; only values
// that are genuinely unset fall back to defaults.
func PreserveStateMetaFields(state *State) map[string]any {
	locale := "en-US"
	history := []string{}
	resources := []Resource{}
	maxRounds := 3

	if state != nil {
		if state.Locale != "" {
			locale = state.Locale
		}
		if state.ClarificationHistory != nil {
			history = state.ClarificationHistory
		}
		if state.Resources != nil {
			resources = state.Resources
		}
		if state.MaxClarificationRounds > 0 {
			maxRounds = state.MaxClarificationRounds
		}
		return map[string]any{
			MetaLocale:                 locale,
			MetaResearchTopic:          state.ResearchTopic,
			MetaClarifiedResearchTopic: state.ClarifiedResearchTopic,
			MetaClarificationHistory:   history,
			MetaEnableClarification:    state.EnableClarification,
			MetaMaxClarificationRounds: maxRounds,
			MetaClarificationRounds:    state.ClarificationRounds,
			MetaResources:              resources,
		}
	}

	return map[string]any{
		MetaLocale:                 locale,
		MetaResearchTopic:          "",
		MetaClarifiedResearchTopic: "",
		MetaClarificationHistory:   history,
		MetaEnableClarification:    false,
		MetaMaxClarificationRounds: maxRounds,
		MetaClarificationRounds:    0,
		MetaResources:              resources,
	}
}

// ApplyStateMetaFields writes a preserved snapshot back onto the state.
// Applying the same snapshot twice is a no-op beyond the first application.
func ApplyStateMetaFields(state *State, meta map[string]any) {
	if state == nil || meta == nil {
		return
	}
	if v, ok := meta[MetaLocale].(string); ok {
		state.Locale = v
	}
	if v, ok := meta[MetaResearchTopic].(string); ok {
		state.ResearchTopic = v
	}
	if v, ok := meta[MetaClarifiedResearchTopic].(string); ok {
		state.ClarifiedResearchTopic = v
	}
	if v, ok := meta[MetaClarificationHistory].([]string); ok {
		state.ClarificationHistory = v
	}
	if v, ok := meta[MetaEnableClarification].(bool); ok {
		state.EnableClarification = v
	}
	if v, ok := meta[MetaMaxClarificationRounds].(int); ok {
		state.MaxClarificationRounds = v
	}
	if v, ok := meta[MetaClarificationRounds].(int); ok {
		state.ClarificationRounds = v
	}
	if v, ok := meta[MetaResources].([]Resource); ok {
		state.Resources = v
	}
}

// MarshalJSON/UnmarshalJSON keep the checkpoint wire form the plain struct
// encoding; the alias avoids recursing into these methods.
type stateAlias State

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal((*stateAlias)(s))
}

func (s *State) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*stateAlias)(s))
}
