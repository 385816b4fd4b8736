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
	"fmt"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
)

// loadReporterMsg assembles the report request: the plan's framing plus
// every accumulated observation, in the run's locale.
func loadReporterMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		if state.Locale == "" {
			state.Locale = consts.DefaultLocale
		}

		sysPrompt, err := infra.GetPromptTemplate(ctx, consts.Reporter)
		if err != nil {
			ilog.EventError(ctx, err, "get_prompt_template_fail")
			return err
		}

		title, thought := "", ""
		if state.CurrentPlan != nil {
			title, thought = state.CurrentPlan.Title, state.CurrentPlan.Thought
		}
		userInput := []*schema.Message{
			schema.UserMessage(fmt.Sprintf("# Research Requirements\n\n## Task\n\n%v\n\n## Description\n\n%v", title, thought)),
		}
		for _, ob := range state.Observations {
			userInput = append(userInput, schema.UserMessage(fmt.Sprintf("Below are some observations for the research task:\n\n%v", ob)))
		}
		output, err = renderTemplate(ctx, sysPrompt, state, userInput)
		return err
	})
	return output, err
}

// genReport is a single non-streaming model call, the report is consumed
// whole.
func genReport(ctx context.Context, input []*schema.Message, opts ...any) (*schema.Message, error) {
	return infra.ChatModel.Generate(ctx, input)
}

func routerReporter(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()
		state.FinalReport = input.Content
		state.Messages = append(state.Messages, &schema.Message{
			Role:    schema.Assistant,
			Name:    consts.Reporter,
			Content: input.Content,
		})
		ilog.EventInfo(ctx, "reporter_end", "report_len", len(input.Content))
		state.Goto = compose.END
		return nil
	})
	return output, err
}

func NewReporter[I, O any](ctx context.Context) *compose.Graph[I, O] {
	cag := compose.NewGraph[I, O]()

	_ = cag.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadReporterMsg))
	_ = cag.AddLambdaNode("agent", compose.InvokableLambdaWithOption(genReport))
	_ = cag.AddLambdaNode("router", compose.InvokableLambdaWithOption(routerReporter))

	_ = cag.AddEdge(compose.START, "load")
	_ = cag.AddEdge("load", "agent")
	_ = cag.AddEdge("agent", "router")
	_ = cag.AddEdge("router", compose.END)
	return cag
}
