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
	"context"

	"github.com/RanFeng/ilog"
)

const (
	defaultResearchStepTitle       = "Research the topic"
	defaultResearchStepDescription = "Search the web for background information about the research topic."
)

// ValidateAndFixPlan defensively repairs a raw plan produced by the planning
// model before it is validated into a typed Plan. The input is the untyped
// JSON shape and may be arbitrarily malformed; this function never fails,
// it fixes what it can and leaves the rest alone. Running it twice on the
// same plan yields the same result.
//
// Repairs applied:
//   - every step mapping with a missing, nil or empty step_type gets one
//     inferred from need_search (true -> "research", else "analysis");
//     pre-existing "processing" values are left untouched
//   - with enforceWebSearch, at least one step ends up with
//     step_type "research" and need_search true, synthesizing a default
//     step when the plan has none at all
func ValidateAndFixPlan(ctx context.Context, plan map[string]any, enforceWebSearch bool) map[string]any {
	if plan == nil {
		return plan
	}

	steps := stepMappings(plan)
	for i, step := range steps {
		if step == nil {
			continue
		}
		if t, ok := step["step_type"].(string); ok && t != "" {
			continue
		}
		inferred := string(Analysis)
		if needSearch(step) {
			inferred = string(Research)
		}
		step["step_type"] = inferred
		ilog.EventWarn(ctx, "plan_step_type_repaired",
			"index", i, "step_type", inferred, "title", step["title"])
	}

	if enforceWebSearch {
		enforceAtLeastOneSearch(ctx, plan, steps)
	}
	return plan
}

// stepMappings extracts the step entries of the plan that are themselves
// mappings, skipping anything else. A missing or non-sequence "steps" value
// yields nil.
func stepMappings(plan map[string]any) []map[string]any {
	raw, ok := plan["steps"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func needSearch(step map[string]any) bool {
	v, ok := step["need_search"].(bool)
	return ok && v
}

// enforceAtLeastOneSearch guarantees a real web search happens regardless of
// what the model produced: prefer enabling search on the first research
// step, then converting the first step, then synthesizing a step.
func enforceAtLeastOneSearch(ctx context.Context, plan map[string]any, steps []map[string]any) {
	for _, step := range steps {
		if step["step_type"] == string(Research) && needSearch(step) {
			return
		}
	}

	for i, step := range steps {
		if step["step_type"] == string(Research) {
			step["need_search"] = true
			ilog.EventWarn(ctx, "plan_web_search_enforced", "index", i, "title", step["title"])
			return
		}
	}

	if len(steps) > 0 {
		steps[0]["step_type"] = string(Research)
		steps[0]["need_search"] = true
		ilog.EventWarn(ctx, "plan_first_step_converted", "title", steps[0]["title"])
		return
	}

	raw, ok := plan["steps"].([]any)
	if !ok && plan["steps"] != nil {
		// malformed steps value, leave it for typed validation to reject
		ilog.EventWarn(ctx, "plan_steps_not_a_sequence")
		return
	}
	plan["steps"] = append(raw, map[string]any{
		"title":       defaultResearchStepTitle,
		"description": defaultResearchStepDescription,
		"step_type":   string(Research),
		"need_search": true,
	})
	ilog.EventWarn(ctx, "plan_default_step_synthesized")
}
