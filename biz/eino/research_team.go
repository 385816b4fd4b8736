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

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/model"
)

// nextResearchTeamHop picks the successor for the current plan: the agent
// matching the first unexecuted step's type, the reporter once every step
// is done, or back to the planner when there is no plan at all. Only the
// lowest-index unexecuted step is ever dispatched, steps run strictly in
// order.
func nextResearchTeamHop(ctx context.Context, state *model.State) string {
	if state.CurrentPlan == nil {
		return consts.Planner
	}
	step, i := state.CurrentPlan.FirstUnexecutedStep()
	if step == nil {
		return consts.Reporter
	}
	ilog.EventInfo(ctx, "research_team_step", "step", step.Title, "index", i)
	switch step.StepType {
	case model.Research:
		return consts.Researcher
	case model.Processing, model.Analysis:
		return consts.Coder
	default:
		ilog.EventWarn(ctx, "research_team_unknown_step_type", "step_type", step.StepType)
		return consts.Coder
	}
}

func routerResearchTeam(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		state.Goto = nextResearchTeamHop(ctx, state)
		output = state.Goto
		return nil
	})
	return output, err
}

func NewResearchTeamNode[I, O any](ctx context.Context) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(routerResearchTeam))

	_ = cag.AddEdge(compose.START, "router")
	_ = cag.AddEdge("router", compose.END)

	return cag
}
