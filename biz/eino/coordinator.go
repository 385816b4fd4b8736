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
	"encoding/json"
	"strings"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
)

type handoffArgs struct {
	ResearchTopic string `json:"research_topic"`
	Locale        string `json:"locale"`
}

// applyLocaleOverride stores the locale from a handoff tool call only when
// it carries a real value. "auto" means the model could not detect the
// language and must never clobber whatever state already holds.
func applyLocaleOverride(state *model.State, locale string) {
	if locale == "" || locale == consts.AutoLocale {
		return
	}
	state.Locale = locale
}

// compileClarifiedTopic folds the clarification answers into the original
// topic: "<topic> - <answer1>, <answer2>, ...". With no answers the topic
// passes through unchanged.
func compileClarifiedTopic(topic string, answers []string) string {
	if len(answers) == 0 {
		return topic
	}
	return topic + " - " + strings.Join(answers, ", ")
}

// coordinatorAuthored reports whether a message is a clarification question
// authored by the coordinator rather than the user.
func coordinatorAuthored(m *schema.Message) bool {
	if m == nil {
		return false
	}
	return m.Role == schema.Assistant || m.Name == consts.Coordinator
}

// reconstructClarificationHistory rebuilds the topic/answer sequence from
// the raw message log: the first user message is the original topic, and
// every later user message that directly answers a coordinator question is
// an answer. The stored history can lag when state updates were dropped
// across a subgraph boundary, so the message log is the source of truth.
func reconstructClarificationHistory(msgs []*schema.Message) []string {
	history := []string{}
	for i, m := range msgs {
		if m == nil || coordinatorAuthored(m) || m.Role != schema.User {
			continue
		}
		if len(history) == 0 {
			history = append(history, m.Content)
			continue
		}
		if i > 0 && coordinatorAuthored(msgs[i-1]) {
			history = append(history, m.Content)
		}
	}
	return history
}

// clarificationHistory returns the most complete topic/answer sequence
// available, preferring the stored history unless the message log proves
// it incomplete.
func clarificationHistory(ctx context.Context, state *model.State) []string {
	rebuilt := reconstructClarificationHistory(state.Messages)
	if len(state.ClarificationHistory) >= len(rebuilt) {
		return state.ClarificationHistory
	}
	ilog.EventWarn(ctx, "clarification_history_rebuilt",
		"stored", len(state.ClarificationHistory), "rebuilt", len(rebuilt))
	return rebuilt
}

// finishClarification compiles the clarified topic and records it in state.
func finishClarification(ctx context.Context, state *model.State) {
	history := clarificationHistory(ctx, state)
	if len(history) == 0 {
		if state.ResearchTopic != "" {
			history = []string{state.ResearchTopic}
		} else {
			return
		}
	}
	state.ClarificationHistory = history
	state.ResearchTopic = history[0]
	state.ClarifiedResearchTopic = compileClarifiedTopic(history[0], history[1:])
}

// parseToolArgs extracts handoff arguments, tolerating malformed JSON: a
// bad tool-call entry is logged and yields empty args instead of aborting
// the decision.
func parseToolArgs(ctx context.Context, tc schema.ToolCall) handoffArgs {
	args := handoffArgs{}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		ilog.EventWarn(ctx, "coordinator_tool_args_malformed",
			"tool", tc.Function.Name, "err", err)
	}
	return args
}

func loadCoordinatorMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		if state.ResearchTopic == "" {
			for _, m := range state.Messages {
				if m != nil && m.Role == schema.User {
					state.ResearchTopic = m.Content
					break
				}
			}
		}

		sysPrompt, err := infra.GetPromptTemplate(ctx, consts.Coordinator)
		if err != nil {
			ilog.EventError(ctx, err, "get_prompt_template_fail")
			return err
		}
		output, err = renderTemplate(ctx, sysPrompt, state, state.Messages)
		return err
	})
	return output, err
}

// decideCoordinator interprets the coordinator model's single response and
// writes the successor into state.Goto. Tool calls drive handoffs; the
// absence of one means either a direct answer (clarification disabled), a
// clarification question to surface to the user, or a misbehaving model to
// route around. Returns InterruptAndRerun when the run must suspend for a
// clarification answer.
func decideCoordinator(ctx context.Context, state *model.State, input *schema.Message) error {
	state.Goto = compose.END

	for _, tc := range input.ToolCalls {
		switch tc.Function.Name {
		case consts.HandoffToPlanner:
			args := parseToolArgs(ctx, tc)
			applyLocaleOverride(state, args.Locale)
			if args.ResearchTopic != "" {
				state.ResearchTopic = args.ResearchTopic
			}
			if state.ClarifiedResearchTopic == "" {
				state.ClarifiedResearchTopic = state.ResearchTopic
			}
			if state.EnableBackgroundInvestigation {
				state.Goto = consts.BackgroundInvestigator
			} else {
				state.Goto = consts.Planner
			}
			return nil
		case consts.HandoffAfterClarification:
			args := parseToolArgs(ctx, tc)
			applyLocaleOverride(state, args.Locale)
			finishClarification(ctx, state)
			state.Goto = consts.Planner
			return nil
		case consts.DirectResponse:
			// the model answered in the tool arguments, surface it and end
			args := map[string]string{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
				if msg := args["message"]; msg != "" {
					state.Messages = append(state.Messages, schema.AssistantMessage(msg, nil))
				}
			}
			state.Goto = compose.END
			return nil
		default:
			ilog.EventWarn(ctx, "coordinator_unknown_tool", "tool", tc.Function.Name)
		}
	}

	// no handoff tool call from here on
	if !state.EnableClarification {
		ilog.EventInfo(ctx, "coordinator_end", "reason", "no_tool_call")
		return nil
	}

	if state.ClarificationRounds >= state.MaxClarificationRounds {
		ilog.EventWarn(ctx, "clarification_rounds_exhausted",
			"rounds", state.ClarificationRounds)
		finishClarification(ctx, state)
		state.Goto = consts.Planner
		return nil
	}

	if input.Content == "" && state.ClarificationRounds == 0 {
		// empty response from a misbehaving model, route around it
		ilog.EventWarn(ctx, "coordinator_empty_response_fallback")
		if state.ClarifiedResearchTopic == "" {
			state.ClarifiedResearchTopic = state.ResearchTopic
		}
		state.Goto = consts.Planner
		return nil
	}

	// the model asked a clarifying question: surface it, suspend, and
	// on resume feed the answer back into another coordinator pass
	if state.InterruptFeedback == "" {
		if len(state.Messages) == 0 || state.Messages[len(state.Messages)-1].Content != input.Content {
			state.Messages = append(state.Messages, &schema.Message{
				Role:    schema.Assistant,
				Name:    consts.Coordinator,
				Content: input.Content,
			})
		}
		return compose.InterruptAndRerun
	}

	answer := state.InterruptFeedback
	state.InterruptFeedback = ""
	state.Messages = append(state.Messages, schema.UserMessage(answer))
	state.ClarificationRounds++
	if len(state.ClarificationHistory) == 0 {
		state.ClarificationHistory = append(state.ClarificationHistory, state.ResearchTopic)
	}
	state.ClarificationHistory = append(state.ClarificationHistory, answer)
	state.Goto = consts.Coordinator
	return nil
}

func routerCoordinator(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()
		return decideCoordinator(ctx, state, input)
	})
	return output, err
}

func coordinatorTools(clarificationEnabled bool) []*schema.ToolInfo {
	handoffToPlanner := &schema.ToolInfo{
		Name: consts.HandoffToPlanner,
		Desc: "Handoff to planner agent to do plan.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"research_topic": {
				Type:     schema.String,
				Desc:     "The topic of the research task to be handed off.",
				Required: true,
			},
			"locale": {
				Type:     schema.String,
				Desc:     "The user's detected language locale (e.g., en-US, zh-CN).",
				Required: true,
			},
		}),
	}

	if !clarificationEnabled {
		directResponse := &schema.ToolInfo{
			Name: consts.DirectResponse,
			Desc: "Answer the user directly without starting a research workflow.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"message": {
					Type:     schema.String,
					Desc:     "The complete answer to send to the user.",
					Required: true,
				},
			}),
		}
		return []*schema.ToolInfo{handoffToPlanner, directResponse}
	}

	handoffAfterClarification := &schema.ToolInfo{
		Name: consts.HandoffAfterClarification,
		Desc: "Handoff to planner agent once the research topic has been clarified.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"research_topic": {
				Type:     schema.String,
				Desc:     "The clarified topic of the research task.",
				Required: true,
			},
			"locale": {
				Type:     schema.String,
				Desc:     "The user's detected language locale (e.g., en-US, zh-CN).",
				Required: true,
			},
		}),
	}
	return []*schema.ToolInfo{handoffToPlanner, handoffAfterClarification}
}

func NewCoordinator[I, O any](ctx context.Context, clarificationEnabled bool) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()

	coorModel, _ := infra.ChatModel.WithTools(coordinatorTools(clarificationEnabled))

	_ = cag.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadCoordinatorMsg))
	_ = cag.AddChatModelNode("agent", coorModel)
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(routerCoordinator))

	_ = cag.AddEdge(compose.START, "load")
	_ = cag.AddEdge("load", "agent")
	_ = cag.AddEdge("agent", "router")
	_ = cag.AddEdge("router", compose.END)
	return cag
}
