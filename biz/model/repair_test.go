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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planWithSteps(steps ...map[string]any) map[string]any {
	raw := make([]any, 0, len(steps))
	for _, s := range steps {
		raw = append(raw, s)
	}
	return map[string]any{
		"locale":             "en-US",
		"has_enough_context": false,
		"title":              "Test Plan",
		"thought":            "Test Thought",
		"steps":              raw,
	}
}

func TestValidateAndFixPlanInfersStepType(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": true, "title": "Research Step", "description": "Gather info"},
		map[string]any{"need_search": false, "title": "Processing Step", "description": "Analyze"},
		map[string]any{"title": "No Flag Step", "description": "Analyze more"},
	)

	fixed := ValidateAndFixPlan(ctx, plan, false)
	steps := fixed["steps"].([]any)
	assert.Equal(t, "research", steps[0].(map[string]any)["step_type"])
	assert.Equal(t, "analysis", steps[1].(map[string]any)["step_type"])
	assert.Equal(t, "analysis", steps[2].(map[string]any)["step_type"])
}

func TestValidateAndFixPlanKeepsExistingTypes(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": true, "title": "A", "step_type": "processing"},
		map[string]any{"need_search": false, "title": "B", "step_type": "research"},
	)

	fixed := ValidateAndFixPlan(ctx, plan, false)
	steps := fixed["steps"].([]any)
	// pre-existing values survive even when inference would say otherwise
	assert.Equal(t, "processing", steps[0].(map[string]any)["step_type"])
	assert.Equal(t, "research", steps[1].(map[string]any)["step_type"])
}

func TestValidateAndFixPlanEmptyStepType(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": true, "title": "A", "step_type": ""},
		map[string]any{"need_search": false, "title": "B", "step_type": nil},
	)

	fixed := ValidateAndFixPlan(ctx, plan, false)
	steps := fixed["steps"].([]any)
	assert.Equal(t, "research", steps[0].(map[string]any)["step_type"])
	assert.Equal(t, "analysis", steps[1].(map[string]any)["step_type"])
}

func TestValidateAndFixPlanMalformedInput(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, ValidateAndFixPlan(ctx, nil, true))

	// steps absent stays absent
	plan := map[string]any{"title": "No Steps Key"}
	fixed := ValidateAndFixPlan(ctx, plan, false)
	_, hasSteps := fixed["steps"]
	assert.False(t, hasSteps)

	// steps not a sequence is left alone
	plan = map[string]any{"steps": "not a list"}
	fixed = ValidateAndFixPlan(ctx, plan, false)
	assert.Equal(t, "not a list", fixed["steps"])

	// non-mapping step entries are skipped, mappings still repaired
	plan = map[string]any{"steps": []any{
		"garbage",
		42,
		map[string]any{"need_search": true, "title": "Real Step"},
	}}
	fixed = ValidateAndFixPlan(ctx, plan, false)
	steps := fixed["steps"].([]any)
	assert.Equal(t, "garbage", steps[0])
	assert.Equal(t, "research", steps[2].(map[string]any)["step_type"])
}

func TestEnforceWebSearchExistingResearchStep(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": false, "title": "A", "step_type": "analysis"},
		map[string]any{"need_search": true, "title": "B", "step_type": "research"},
	)

	fixed := ValidateAndFixPlan(ctx, plan, true)
	steps := fixed["steps"].([]any)
	// nothing to do, plan already searches the web
	assert.Equal(t, "analysis", steps[0].(map[string]any)["step_type"])
	assert.Equal(t, false, steps[0].(map[string]any)["need_search"])
}

func TestEnforceWebSearchEnablesFirstResearchStep(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": false, "title": "A", "step_type": "analysis"},
		map[string]any{"need_search": false, "title": "B", "step_type": "research"},
	)

	fixed := ValidateAndFixPlan(ctx, plan, true)
	steps := fixed["steps"].([]any)
	assert.Equal(t, false, steps[0].(map[string]any)["need_search"])
	assert.Equal(t, true, steps[1].(map[string]any)["need_search"])
}

func TestEnforceWebSearchConvertsFirstStep(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps(
		map[string]any{"need_search": false, "title": "A", "step_type": "analysis"},
		map[string]any{"need_search": false, "title": "B", "step_type": "analysis"},
	)

	fixed := ValidateAndFixPlan(ctx, plan, true)
	steps := fixed["steps"].([]any)
	first := steps[0].(map[string]any)
	assert.Equal(t, "research", first["step_type"])
	assert.Equal(t, true, first["need_search"])
	assert.Equal(t, "analysis", steps[1].(map[string]any)["step_type"])
}

func TestEnforceWebSearchSynthesizesStep(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps()

	fixed := ValidateAndFixPlan(ctx, plan, true)
	steps := fixed["steps"].([]any)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]any)
	assert.Equal(t, "research", step["step_type"])
	assert.Equal(t, true, step["need_search"])
	assert.NotEmpty(t, step["title"])
	assert.NotEmpty(t, step["description"])
}

func TestEnforceWebSearchAppendsAfterNonStepEntries(t *testing.T) {
	ctx := context.Background()
	plan := map[string]any{"steps": []any{"garbage", 42}}

	fixed := ValidateAndFixPlan(ctx, plan, true)
	steps := fixed["steps"].([]any)
	// the entries the repair promised to skip must survive in place
	require.Len(t, steps, 3)
	assert.Equal(t, "garbage", steps[0])
	assert.Equal(t, 42, steps[1])
	synthesized := steps[2].(map[string]any)
	assert.Equal(t, "research", synthesized["step_type"])
	assert.Equal(t, true, synthesized["need_search"])
}

func TestEnforceWebSearchLeavesNonSequenceSteps(t *testing.T) {
	ctx := context.Background()
	plan := map[string]any{"steps": "not a list"}

	fixed := ValidateAndFixPlan(ctx, plan, true)
	assert.Equal(t, "not a list", fixed["steps"])
}

func TestValidateAndFixPlanIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, enforce := range []bool{false, true} {
		plan := planWithSteps(
			map[string]any{"need_search": true, "title": "A"},
			map[string]any{"need_search": false, "title": "B"},
		)

		once := ValidateAndFixPlan(ctx, plan, enforce)
		onceJSON, err := json.Marshal(once)
		require.NoError(t, err)

		twice := ValidateAndFixPlan(ctx, once, enforce)
		twiceJSON, err := json.Marshal(twice)
		require.NoError(t, err)

		assert.JSONEq(t, string(onceJSON), string(twiceJSON))
	}
}

func TestValidateAndFixPlanIdempotentEmptyPlan(t *testing.T) {
	ctx := context.Background()
	plan := planWithSteps()

	once := ValidateAndFixPlan(ctx, plan, true)
	onceJSON, err := json.Marshal(once)
	require.NoError(t, err)

	twice := ValidateAndFixPlan(ctx, once, true)
	twiceJSON, err := json.Marshal(twice)
	require.NoError(t, err)

	// the synthesized step must not be duplicated on a second pass
	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
	assert.Len(t, twice["steps"].([]any), 1)
}
