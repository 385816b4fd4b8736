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

package eino

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/model"
)

func TestParseRecursionLimit(t *testing.T) {
	limit, reason := parseRecursionLimit("42")
	assert.Equal(t, 42, limit)
	assert.Empty(t, reason)

	limit, reason = parseRecursionLimit("notanint")
	assert.Equal(t, 25, limit)
	assert.Equal(t, "invalid", reason)

	limit, reason = parseRecursionLimit("-5")
	assert.Equal(t, 25, limit)
	assert.Equal(t, "not positive", reason)

	limit, reason = parseRecursionLimit("0")
	assert.Equal(t, 25, limit)
	assert.Equal(t, "not positive", reason)
}

func TestAgentRecursionLimitEnv(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, 25, agentRecursionLimit(ctx))

	t.Setenv(recursionLimitEnv, "42")
	assert.Equal(t, 42, agentRecursionLimit(ctx))

	t.Setenv(recursionLimitEnv, "notanint")
	assert.Equal(t, 25, agentRecursionLimit(ctx))

	t.Setenv(recursionLimitEnv, "-5")
	assert.Equal(t, 25, agentRecursionLimit(ctx))
}

func execPlan() *model.Plan {
	done := "done"
	return &model.Plan{
		Title:   "Plan Title",
		Thought: "Plan Thought",
		Steps: []model.Step{
			{Title: "Done Step", Description: "already ran", StepType: model.Research, ExecutionRes: &done},
			{Title: "Next Step", Description: "run me", StepType: model.Research, NeedSearch: true},
			{Title: "Later Step", Description: "not yet", StepType: model.Analysis},
		},
	}
}

func TestBuildStepInput(t *testing.T) {
	state := &model.State{Locale: "en-US", CurrentPlan: execPlan()}
	step, _ := state.CurrentPlan.FirstUnexecutedStep()

	msgs := buildStepInput(state, step, consts.Coder)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Plan Title")
	assert.Contains(t, msgs[0].Content, "Plan Thought")
	assert.Contains(t, msgs[0].Content, "Next Step")
	assert.Contains(t, msgs[0].Content, "run me")
	assert.Contains(t, msgs[0].Content, "en-US")
}

func TestBuildStepInputResearcherAugmentations(t *testing.T) {
	state := &model.State{Locale: "en-US", CurrentPlan: execPlan()}
	step, _ := state.CurrentPlan.FirstUnexecutedStep()

	// without resources: only the citation reminder is added
	msgs := buildStepInput(state, step, consts.Researcher)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "References")
	assert.NotContains(t, msgs[0].Content, consts.LocalSearchTool)

	// with resources: the task message also instructs local retrieval
	state.Resources = []model.Resource{{URI: "rag://doc1", Title: "Doc 1", Description: "internal doc"}}
	msgs = buildStepInput(state, step, consts.Researcher)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, consts.LocalSearchTool)
	assert.Contains(t, msgs[0].Content, "rag://doc1")
	assert.Contains(t, msgs[0].Content, "Doc 1")
}

func TestFinishAgentStepPreservesAllMessages(t *testing.T) {
	ctx := context.Background()
	state := &model.State{Locale: "zh-CN", CurrentPlan: execPlan()}

	// a multi-tool-call trace: input, 2 tool rounds, final summary
	trace := []*schema.Message{
		schema.UserMessage("task"),
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{Function: schema.FunctionCall{Name: consts.WebSearchTool}}}},
		{Role: schema.Tool, Content: "search results"},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{Function: schema.FunctionCall{Name: consts.WebSearchTool}}}},
		{Role: schema.Tool, Content: "more results"},
		schema.AssistantMessage("final summary", nil),
	}

	finishAgentStep(ctx, state, consts.Researcher, trace)

	assert.Len(t, state.Messages, len(trace))
	require.Len(t, state.Observations, 1)
	assert.Equal(t, "final summary", state.Observations[0])
	require.True(t, state.CurrentPlan.Steps[1].Executed())
	assert.Equal(t, "final summary", *state.CurrentPlan.Steps[1].ExecutionRes)
	assert.Equal(t, consts.ResearchTeam, state.Goto)
	// meta fields survive the boundary
	assert.Equal(t, "zh-CN", state.Locale)
}

func TestFinishAgentStepNoWebSearchWarnings(t *testing.T) {
	ctx := context.Background()
	state := &model.State{CurrentPlan: execPlan()}

	trace := []*schema.Message{
		schema.UserMessage("task"),
		schema.AssistantMessage("answered from memory", nil),
	}
	finishAgentStep(ctx, state, consts.Researcher, trace)

	require.Len(t, state.Observations, 1)
	ob := state.Observations[0]
	assert.True(t, strings.HasPrefix(ob, "answered from memory"))
	assert.Contains(t, ob, "Verify the findings")
	assert.Contains(t, ob, "VALIDATION WARNING")
	// the step result itself stays clean
	assert.Equal(t, "answered from memory", *state.CurrentPlan.Steps[1].ExecutionRes)
}

func TestFinishAgentStepCoderNoWarnings(t *testing.T) {
	ctx := context.Background()
	state := &model.State{CurrentPlan: execPlan()}

	trace := []*schema.Message{
		schema.UserMessage("task"),
		schema.AssistantMessage("computed", nil),
	}
	finishAgentStep(ctx, state, consts.Coder, trace)

	require.Len(t, state.Observations, 1)
	assert.Equal(t, "computed", state.Observations[0])
}

func TestFinishAgentStepExhaustedPlan(t *testing.T) {
	ctx := context.Background()
	done := "done"
	state := &model.State{CurrentPlan: &model.Plan{Steps: []model.Step{{Title: "A", ExecutionRes: &done}}}}

	finishAgentStep(ctx, state, consts.Researcher, []*schema.Message{schema.AssistantMessage("x", nil)})

	// graceful no-op back to the dispatcher
	assert.Equal(t, consts.ResearchTeam, state.Goto)
	assert.Empty(t, state.Observations)
	assert.Empty(t, state.Messages)
}

func TestTraceCallsTool(t *testing.T) {
	trace := []*schema.Message{
		nil,
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{Function: schema.FunctionCall{Name: "crawler"}}}},
	}
	assert.True(t, traceCallsTool(trace, "crawler"))
	assert.False(t, traceCallsTool(trace, consts.WebSearchTool))
}

func TestSeedToolApprovals(t *testing.T) {
	state := &model.State{
		PendingToolApproval: "Tool 'write_db' requires approval before execution.",
		InterruptFeedback:   "approved",
	}

	snapshot := seedToolApprovals(state)
	assert.Equal(t, "approved", snapshot["Tool 'write_db' requires approval before execution."])
	assert.Empty(t, state.PendingToolApproval)
	assert.Empty(t, state.InterruptFeedback)
	assert.Equal(t, "approved", state.ToolApprovals["Tool 'write_db' requires approval before execution."])

	// the snapshot is detached from state
	snapshot["other"] = "x"
	assert.NotContains(t, state.ToolApprovals, "other")
}

func TestMessageTraceKeepsLongestSnapshot(t *testing.T) {
	tr := &messageTrace{}
	m1 := schema.UserMessage("one")
	m2 := schema.AssistantMessage("two", nil)
	m3 := schema.UserMessage("three")

	tr.record([]*schema.Message{m1})
	tr.record([]*schema.Message{m1, m2, m3})
	tr.record([]*schema.Message{m1, m2})

	require.Len(t, tr.msgs, 3)
	assert.Equal(t, "three", tr.msgs[2].Content)
}

func TestClipMessages(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("x", maxMessageContentLen+100) + "tail"
	msgs := []*schema.Message{
		nil,
		schema.UserMessage("short"),
		schema.UserMessage(long),
	}

	out := clipMessages(ctx, msgs)
	assert.Equal(t, "short", out[1].Content)
	assert.Len(t, out[2].Content, maxMessageContentLen)
	assert.True(t, strings.HasSuffix(out[2].Content, "tail"))
}
