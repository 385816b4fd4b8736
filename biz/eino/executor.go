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
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
	"github.com/tidal-labs/deepdive/conf"
)

const (
	recursionLimitEnv     = "AGENT_RECURSION_LIMIT"
	defaultRecursionLimit = 25

	maxMessageContentLen = 50000

	citationReminder = "IMPORTANT: DO NOT include inline citations in the text. Instead, track all sources and include a References section at the end using link reference format. Include an empty line between each citation for better readability. Use this format for each reference:\n- [Source Title](URL)\n\n- [Another Source](URL)"

	accuracyWarning   = "\n\nIMPORTANT: Verify the findings above carefully before relying on them; the step completed without consulting live web sources."
	noSearchWarning   = "\n\nVALIDATION WARNING: the recommended web_search tool was not used during this step, so the evidence is lower-confidence."
	resourcesReminder = "You MUST use the local_search_tool to retrieve the information from the resource files."
)

// AgentHandle is the narrow contract this layer has with an agent: feed it
// messages, get back the full message trace of its run. The agent's
// internal tool-calling loop is opaque here.
type AgentHandle interface {
	Invoke(ctx context.Context, input []*schema.Message) ([]*schema.Message, error)
}

// parseRecursionLimit interprets the raw env value, returning the limit
// plus a non-empty reason when the value was discarded.
func parseRecursionLimit(raw string) (limit int, reason string) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultRecursionLimit, "invalid"
	}
	if v <= 0 {
		return defaultRecursionLimit, "not positive"
	}
	return v, ""
}

// agentRecursionLimit reads AGENT_RECURSION_LIMIT, falling back to 25 and
// logging why whenever the override cannot be honored.
func agentRecursionLimit(ctx context.Context) int {
	raw, ok := os.LookupEnv(recursionLimitEnv)
	if !ok || raw == "" {
		return defaultRecursionLimit
	}
	limit, reason := parseRecursionLimit(raw)
	switch reason {
	case "invalid":
		ilog.EventWarn(ctx, "recursion_limit_invalid",
			"value", raw, "fallback", defaultRecursionLimit)
	case "not positive":
		ilog.EventWarn(ctx, "recursion_limit_not_positive",
			"value", raw, "fallback", defaultRecursionLimit)
	default:
		ilog.EventInfo(ctx, "recursion_limit_override", "value", limit)
	}
	return limit
}

// messageTrace keeps the longest message snapshot the react loop has shown
// the model so far. Each model round receives the whole history, so the
// final snapshot carries every intermediate tool-call and tool-result
// message of the run.
type messageTrace struct {
	msgs []*schema.Message
}

func (t *messageTrace) record(input []*schema.Message) {
	if len(input) > len(t.msgs) {
		t.msgs = append([]*schema.Message(nil), input...)
	}
}

// clipMessages tail-clips oversized message contents so a runaway tool
// result cannot blow the model's context window.
func clipMessages(ctx context.Context, input []*schema.Message) []*schema.Message {
	sum := 0
	for i := range input {
		if input[i] == nil {
			ilog.EventWarn(ctx, "clip_messages_nil", "index", i)
			continue
		}
		l := len(input[i].Content)
		if l > maxMessageContentLen {
			ilog.EventWarn(ctx, "clip_messages_clip", "raw_len", l)
			input[i].Content = input[i].Content[l-maxMessageContentLen:]
		}
		sum += len(input[i].Content)
	}
	ilog.EventDebug(ctx, "clip_messages", "sum", sum, "input_len", len(input))
	return input
}

func toolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}

type reactAgentHandle struct {
	agent *react.Agent
	trace *messageTrace
}

// newReactAgentHandle builds a fresh react agent for one step execution.
// Agents are not shared across steps: the tool set is resolved per step
// (scoped MCP acquisition) and the trace recorder is single-use.
func newReactAgentHandle(ctx context.Context, tools []tool.BaseTool, maxStep int) (AgentHandle, error) {
	trace := &messageTrace{}
	a, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:          maxStep,
		ToolCallingModel: infra.ChatModel,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: tools},
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			trace.record(input)
			return clipMessages(ctx, input)
		},
		StreamToolCallChecker: toolCallChecker,
	})
	if err != nil {
		return nil, err
	}
	return &reactAgentHandle{agent: a, trace: trace}, nil
}

// Invoke runs the agent and returns the complete message trace: the input
// messages, every intermediate tool-call/tool-result round, and the final
// response. Returning only the final message is a known defect class — it
// erases the visibility of multi-search steps downstream.
func (h *reactAgentHandle) Invoke(ctx context.Context, input []*schema.Message) ([]*schema.Message, error) {
	final, err := h.agent.Generate(ctx, input)
	if err != nil {
		return nil, err
	}
	msgs := h.trace.msgs
	if len(msgs) < len(input) {
		msgs = input
	}
	return append(append([]*schema.Message(nil), msgs...), final), nil
}

// traceCallsTool reports whether any message in the trace called the named
// tool.
func traceCallsTool(msgs []*schema.Message, name string) bool {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.Function.Name == name {
				return true
			}
		}
	}
	return false
}

// buildStepInput assembles the synthesized task message for the next
// unexecuted step: plan context, the step itself, and — for the researcher
// only — resource instructions plus the standing citation reminder.
func buildStepInput(state *model.State, step *model.Step, agentType string) []*schema.Message {
	plan := state.CurrentPlan
	task := fmt.Sprintf(
		"# Research Plan\n\n## %v\n\n%v\n\n# Current Task\n\n## Title\n\n%v\n\n## Description\n\n%v\n\n## Locale\n\n%v",
		plan.Title, plan.Thought, step.Title, step.Description, state.Locale)

	if agentType == consts.Researcher && len(state.Resources) > 0 {
		var b strings.Builder
		b.WriteString("\n\n**The user mentioned the following resource files:**\n\n")
		for _, r := range state.Resources {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URI, r.Description)
		}
		b.WriteString("\n\n")
		b.WriteString(resourcesReminder)
		task += b.String()
	}

	msgs := []*schema.Message{schema.UserMessage(task)}
	if agentType == consts.Researcher {
		msgs = append(msgs, schema.SystemMessage(citationReminder))
	}
	return msgs
}

// finishAgentStep records one completed step execution back into state:
// the step result, the full message trace, and the observation (with
// low-confidence warnings when a researcher step never searched the web).
// Meta fields are re-applied because the agent sub-invocation only returns
// a messages-shaped partial and would otherwise drop them.
func finishAgentStep(ctx context.Context, state *model.State, agentType string, msgs []*schema.Message) {
	state.Goto = consts.ResearchTeam

	step, idx := state.CurrentPlan.FirstUnexecutedStep()
	if step == nil || len(msgs) == 0 {
		ilog.EventWarn(ctx, "agent_step_noop", "agent_type", agentType, "msgs", len(msgs))
		return
	}

	final := msgs[len(msgs)-1]
	res := strings.Clone(final.Content)
	step.ExecutionRes = &res

	observation := res
	if agentType == consts.Researcher && !traceCallsTool(msgs, consts.WebSearchTool) {
		observation += accuracyWarning + noSearchWarning
		ilog.EventWarn(ctx, "researcher_step_no_web_search", "step", step.Title)
	}

	state.Messages = append(state.Messages, msgs...)
	state.Observations = append(state.Observations, observation)
	model.ApplyStateMetaFields(state, model.PreserveStateMetaFields(state))

	ilog.EventInfo(ctx, "agent_step_done",
		"agent_type", agentType, "step_index", idx, "step", step.Title)
}

// seedToolApprovals moves the resume feedback of a pending tool interrupt
// into the replayable approvals map and returns a snapshot for the step
// about to run.
func seedToolApprovals(state *model.State) map[string]string {
	if state.PendingToolApproval != "" && state.InterruptFeedback != "" {
		if state.ToolApprovals == nil {
			state.ToolApprovals = map[string]string{}
		}
		state.ToolApprovals[state.PendingToolApproval] = state.InterruptFeedback
		state.PendingToolApproval = ""
		state.InterruptFeedback = ""
	}
	snapshot := make(map[string]string, len(state.ToolApprovals))
	for k, v := range state.ToolApprovals {
		snapshot[k] = v
	}
	return snapshot
}

// makeAgentLambda returns the agent node body for one agent type: resolve
// the tool set (defaults + scoped MCP), wrap the approval subset, build a
// fresh react agent, run the step. A tool interrupt raised inside the run
// surfaces as InterruptAndRerun so the whole node replays after resume,
// with already-granted approvals replayed from state.
func makeAgentLambda(agentType string) func(ctx context.Context, input []*schema.Message, opts ...any) ([]*schema.Message, error) {
	return func(ctx context.Context, input []*schema.Message, opts ...any) ([]*schema.Message, error) {
		if len(input) == 0 {
			// no unexecuted step, let the router hand control back
			return nil, nil
		}

		var approvals map[string]string
		_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
			approvals = seedToolApprovals(state)
			return nil
		})

		tools := infra.DefaultAgentTools(ctx, agentType)
		mcpTools, closeMCP, err := infra.GetAgentMCPTools(ctx, agentType)
		if err != nil {
			return nil, err
		}
		defer closeMCP()
		tools = append(tools, mcpTools...)

		pending := ""
		interrupt := InterruptFunc(func(_ context.Context, message string) (string, error) {
			if fb, ok := approvals[message]; ok {
				return fb, nil
			}
			pending = message
			return "", compose.InterruptAndRerun
		})
		tools = WrapToolsWithInterceptor(ctx, tools, conf.Config.Setting.InterruptBeforeTools, interrupt)

		handle, err := newReactAgentHandle(ctx, tools, agentRecursionLimit(ctx))
		if err != nil {
			return nil, err
		}

		msgs, err := handle.Invoke(ctx, input)
		if err != nil {
			if pending != "" || errors.Is(err, compose.InterruptAndRerun) {
				_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
					state.PendingToolApproval = pending
					return nil
				})
				return nil, compose.InterruptAndRerun
			}
			// step execution failure is fatal to the run, the runtime owns
			// retry and failure reporting
			return nil, err
		}
		return msgs, nil
	}
}

// makeAgentLoader returns the load node body: pick the next unexecuted
// step and render the agent's prompt template around the synthesized task
// message. An exhausted plan yields no messages, which downgrades the node
// to a no-op pass-through.
func makeAgentLoader(agentType string) func(ctx context.Context, name string, opts ...any) ([]*schema.Message, error) {
	return func(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
		err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
			step, _ := state.CurrentPlan.FirstUnexecutedStep()
			if step == nil {
				ilog.EventWarn(ctx, "no_unexecuted_step", "agent_type", agentType)
				return nil
			}

			sysPrompt, err := infra.GetPromptTemplate(ctx, agentType)
			if err != nil {
				return err
			}
			output, err = renderTemplate(ctx, sysPrompt, state, buildStepInput(state, step, agentType))
			return err
		})
		return output, err
	}
}

// makeAgentRouter returns the router node body: record the finished step
// and hand control back to the research team dispatcher.
func makeAgentRouter(agentType string) func(ctx context.Context, input []*schema.Message, opts ...any) (string, error) {
	return func(ctx context.Context, input []*schema.Message, opts ...any) (output string, err error) {
		err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
			defer func() {
				output = state.Goto
			}()
			finishAgentStep(ctx, state, agentType, input)
			return nil
		})
		return output, err
	}
}

// NewAgentExecutor builds the subgraph shared by the researcher and coder:
// load the step prompt, run the tool-calling agent, record the result.
func NewAgentExecutor[I, O any](ctx context.Context, agentType string) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()

	_ = cag.AddLambdaNode("load", compose.InvokableLambdaWithOption(makeAgentLoader(agentType)))
	_ = cag.AddLambdaNode("agent", compose.InvokableLambdaWithOption(makeAgentLambda(agentType)))
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(makeAgentRouter(agentType)))

	_ = cag.AddEdge(compose.START, "load")
	_ = cag.AddEdge("load", "agent")
	_ = cag.AddEdge("agent", "router")
	_ = cag.AddEdge("router", compose.END)
	return cag
}
