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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
	"github.com/tidal-labs/deepdive/conf"
)

// stripCodeFences unwraps a JSON payload the model wrapped in a markdown
// code block.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// genPlan is the planner's model invocation. The iteration budget is
// checked first so an exhausted loop costs no model call, and the two
// supported invocation shapes are a structured single shot for the basic
// tier and chunked streaming otherwise.
func genPlan(ctx context.Context, name string, opts ...any) (output *schema.Message, err error) {
	var msgs []*schema.Message
	budgetExhausted := false
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		if state.PlanIterations >= state.MaxPlanIterations {
			ilog.EventWarn(ctx, "plan_iterations_exhausted",
				"iterations", state.PlanIterations, "max", state.MaxPlanIterations)
			budgetExhausted = true
			state.Goto = consts.Reporter
			return nil
		}

		sysPrompt, err := infra.GetPromptTemplate(ctx, consts.Planner)
		if err != nil {
			ilog.EventError(ctx, err, "get_prompt_template_fail")
			return err
		}

		var promptTemp *prompt.DefaultChatTemplate
		if state.EnableBackgroundInvestigation && len(state.BackgroundInvestigationResults) > 0 {
			promptTemp = prompt.FromMessages(schema.Jinja2,
				schema.SystemMessage(sysPrompt),
				schema.MessagesPlaceholder("user_input", true),
				schema.UserMessage(fmt.Sprintf("background investigation results of user query: \n %s", state.BackgroundInvestigationResults)),
			)
		} else {
			promptTemp = prompt.FromMessages(schema.Jinja2,
				schema.SystemMessage(sysPrompt),
				schema.MessagesPlaceholder("user_input", true),
			)
		}

		variables := map[string]any{
			"locale":              state.Locale,
			"max_step_num":        state.MaxStepNum,
			"max_plan_iterations": state.MaxPlanIterations,
			"CURRENT_TIME":        time.Now().Format("2006-01-02 15:04:05"),
			"user_input":          state.Messages,
		}
		msgs, err = promptTemp.Format(ctx, variables)
		return err
	})
	if err != nil || budgetExhausted {
		return nil, err
	}

	if infra.PlannerUsesStructuredOutput() {
		return infra.PlanModel.Generate(ctx, msgs)
	}

	sr, err := infra.ChatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	chunks := []*schema.Message{}
	for {
		chunk, err := sr.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return schema.ConcatMessages(chunks)
}

// routerPlanner parses the planner output into a plan. Parse failure is
// iteration-aware: with no accepted plan yet the run ends, with a prior
// plan on record the run degrades to reporting. A parsed plan either has
// enough context (straight to reporter) or goes to the human gate, which
// owns final validation and the iteration counter.
func routerPlanner(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()
		if input == nil {
			// budget gate already routed
			return nil
		}
		state.Goto = compose.END

		planText := stripCodeFences(input.Content)
		raw := map[string]any{}
		if err := json.Unmarshal([]byte(planText), &raw); err != nil {
			ilog.EventWarn(ctx, "gen_plan_fail", "content", input.Content, "err", err)
			if state.PlanIterations > 0 {
				state.Goto = consts.Reporter
			}
			return nil
		}

		raw = model.ValidateAndFixPlan(ctx, raw, conf.Config.Setting.EnforceWebSearch)
		repaired, err := json.Marshal(raw)
		if err != nil {
			ilog.EventWarn(ctx, "plan_marshal_fail", "err", err)
			if state.PlanIterations > 0 {
				state.Goto = consts.Reporter
			}
			return nil
		}

		state.PlanText = string(repaired)
		state.Messages = append(state.Messages, &schema.Message{
			Role:    schema.Assistant,
			Name:    consts.Planner,
			Content: state.PlanText,
		})

		plan := &model.Plan{}
		if err := json.Unmarshal(repaired, plan); err == nil && plan.HasEnoughContext {
			ilog.EventInfo(ctx, "gen_plan_ok", "plan", plan, "has_enough_context", true)
			state.CurrentPlan = plan
			state.Goto = consts.Reporter
			return nil
		}

		ilog.EventInfo(ctx, "gen_plan_ok", "plan_text_len", len(state.PlanText))
		state.Goto = consts.Human
		return nil
	})
	return output, err
}

func NewPlanner[I, O any](ctx context.Context) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()

	_ = cag.AddLambdaNode("gen", compose.InvokableLambdaWithOption(genPlan))
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(routerPlanner))

	_ = cag.AddEdge(compose.START, "gen")
	_ = cag.AddEdge("gen", "router")
	_ = cag.AddEdge("router", compose.END)
	return cag
}
