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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstUnexecutedStep(t *testing.T) {
	done := "done"
	plan := &Plan{Steps: []Step{
		{Title: "A", ExecutionRes: &done},
		{Title: "B"},
		{Title: "C"},
	}}

	step, idx := plan.FirstUnexecutedStep()
	require.NotNil(t, step)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "B", step.Title)

	// the returned pointer aliases the plan, mutating it marks the step
	res := "B result"
	step.ExecutionRes = &res
	step, idx = plan.FirstUnexecutedStep()
	require.NotNil(t, step)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "C", step.Title)
}

func TestFirstUnexecutedStepExhausted(t *testing.T) {
	done := "done"
	plan := &Plan{Steps: []Step{{Title: "A", ExecutionRes: &done}}}
	step, idx := plan.FirstUnexecutedStep()
	assert.Nil(t, step)
	assert.Equal(t, -1, idx)

	var nilPlan *Plan
	step, idx = nilPlan.FirstUnexecutedStep()
	assert.Nil(t, step)
	assert.Equal(t, -1, idx)
}

func TestAgentForStep(t *testing.T) {
	assert.Equal(t, "researcher", AgentForStep(Research))
	assert.Equal(t, "coder", AgentForStep(Processing))
	assert.Equal(t, "coder", AgentForStep(Analysis))
	assert.Equal(t, "coder", AgentForStep(StepType("unknown")))
}
