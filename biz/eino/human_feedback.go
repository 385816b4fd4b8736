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
	"github.com/tidal-labs/deepdive/biz/model"
	"github.com/tidal-labs/deepdive/conf"
)

// acceptCurrentPlan parses and validates the pending plan text, counts the
// iteration, and routes onward. Parse failure follows the planner's
// iteration-aware policy: nothing accepted yet ends the run, a later
// failure degrades to reporting.
func acceptCurrentPlan(ctx context.Context, state *model.State) {
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(stripCodeFences(state.PlanText)), &raw); err != nil {
		ilog.EventWarn(ctx, "plan_validate_fail", "err", err)
		if state.PlanIterations > 0 {
			state.Goto = consts.Reporter
		} else {
			state.Goto = compose.END
		}
		return
	}

	raw = model.ValidateAndFixPlan(ctx, raw, conf.Config.Setting.EnforceWebSearch)
	repaired, _ := json.Marshal(raw)

	plan := &model.Plan{}
	if err := json.Unmarshal(repaired, plan); err != nil {
		ilog.EventWarn(ctx, "plan_validate_fail", "err", err)
		if state.PlanIterations > 0 {
			state.Goto = consts.Reporter
		} else {
			state.Goto = compose.END
		}
		return
	}

	state.CurrentPlan = plan
	state.PlanIterations++

	// meta fields first, then the plan locale on top only when it carries
	// a real value. An empty locale in freshly parsed plans must never
	// clobber the preserved one.
	model.ApplyStateMetaFields(state, model.PreserveStateMetaFields(state))
	if plan.Locale != "" {
		state.Locale = plan.Locale
	}

	if plan.HasEnoughContext {
		state.Goto = consts.Reporter
		return
	}
	state.Goto = consts.ResearchTeam
}

// routerHuman is the plan review gate. Auto-accept skips the interrupt;
// otherwise the run suspends until feedback arrives, and the reply is
// classified by its leading marker. Anything unrecognized loops back to
// the planner rather than failing.
func routerHuman(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
			state.InterruptFeedback = ""
		}()

		if state.AutoAcceptedPlan {
			acceptCurrentPlan(ctx, state)
			return nil
		}

		feedback := strings.TrimSpace(state.InterruptFeedback)
		switch {
		case feedback == "":
			return compose.InterruptAndRerun
		case strings.HasPrefix(feedback, consts.EditPlanMarker):
			state.Messages = append(state.Messages, schema.UserMessage(feedback))
			state.Goto = consts.Planner
		case strings.HasPrefix(feedback, consts.AcceptPlanMarker):
			acceptCurrentPlan(ctx, state)
		default:
			ilog.EventWarn(ctx, "human_feedback_unrecognized", "feedback", feedback)
			state.Goto = consts.Planner
		}
		return nil
	})
	return output, err
}

func NewHumanNode[I, O any](ctx context.Context) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(routerHuman))

	_ = cag.AddEdge(compose.START, "router")
	_ = cag.AddEdge("router", compose.END)

	return cag
}
