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

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
)

// searchBackground runs one web search on the research topic before the
// first planning round, so the planner sees fresh context instead of
// relying on the model's built-in knowledge. Search failure is logged and
// tolerated, the planner just runs without background results.
func searchBackground(ctx context.Context, name string, opts ...any) (output string, err error) {
	searchTool, err := infra.NewWebSearchTool(ctx)
	if err != nil {
		ilog.EventError(ctx, err, "web_search_tool_init_fail")
		return output, nil
	}

	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		query := state.ClarifiedResearchTopic
		if query == "" {
			query = state.ResearchTopic
		}
		if query == "" && len(state.Messages) > 0 {
			query = state.Messages[len(state.Messages)-1].Content
		}

		argsBytes, err := json.Marshal(map[string]any{"query": query})
		if err != nil {
			ilog.EventError(ctx, err, "json_marshal_error")
			return err
		}
		result, err := searchTool.InvokableRun(ctx, string(argsBytes))
		if err != nil {
			ilog.EventError(ctx, err, "background_search_fail")
			return nil
		}
		ilog.EventDebug(ctx, "background_search_result", "result_len", len(result))
		state.BackgroundInvestigationResults = result
		return nil
	})
	return output, err
}

func bIRouter(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()
		state.Goto = consts.Planner
		return nil
	})
	return output, err
}

func NewBAgent[I, O any](ctx context.Context) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()

	_ = cag.AddLambdaNode("search", compose.InvokableLambdaWithOption(searchBackground))
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(bIRouter))

	_ = cag.AddEdge(compose.START, "search")
	_ = cag.AddEdge("search", "router")
	_ = cag.AddEdge("router", compose.END)
	return cag
}
