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
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/model"
)

const reviewPlanText = `{
	"title": "AI adoption study",
	"has_enough_context": false,
	"steps": [
		{"title": "Search industry reports", "description": "Collect adoption figures.", "need_search": true, "step_type": "research"}
	]
}`

func TestAcceptCurrentPlanRoutesToResearchTeam(t *testing.T) {
	ctx := context.Background()
	state := &model.State{PlanText: reviewPlanText}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, consts.ResearchTeam, state.Goto)
	assert.Equal(t, 1, state.PlanIterations)
	require.NotNil(t, state.CurrentPlan)
	assert.Equal(t, "AI adoption study", state.CurrentPlan.Title)
}

func TestAcceptCurrentPlanHasEnoughContext(t *testing.T) {
	ctx := context.Background()
	state := &model.State{
		PlanText: `{"title": "t", "has_enough_context": true, "steps": []}`,
	}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, consts.Reporter, state.Goto)
	assert.Equal(t, 1, state.PlanIterations)
}

func TestAcceptCurrentPlanStripsCodeFences(t *testing.T) {
	ctx := context.Background()
	state := &model.State{
		PlanText: "```json\n" + reviewPlanText + "\n```",
	}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, consts.ResearchTeam, state.Goto)
	require.NotNil(t, state.CurrentPlan)
}

func TestAcceptCurrentPlanRepairsStepTypes(t *testing.T) {
	ctx := context.Background()
	state := &model.State{
		PlanText: `{"title": "t", "steps": [{"title": "gather data", "description": "d", "need_search": true}]}`,
	}

	acceptCurrentPlan(ctx, state)

	require.NotNil(t, state.CurrentPlan)
	require.Len(t, state.CurrentPlan.Steps, 1)
	assert.Equal(t, model.Research, state.CurrentPlan.Steps[0].StepType)
}

func TestAcceptCurrentPlanLocaleHandling(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		planLocale string
		want       string
	}{
		{name: "absent locale keeps preserved", planLocale: "", want: "zh-CN"},
		{name: "plan locale wins when set", planLocale: "en-US", want: "en-US"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			planText := `{"title": "t", "steps": []`
			if tc.planLocale != "" {
				planText = `{"title": "t", "locale": "` + tc.planLocale + `", "steps": []`
			}
			planText += `}`

			state := &model.State{Locale: "zh-CN", PlanText: planText}
			acceptCurrentPlan(ctx, state)
			assert.Equal(t, tc.want, state.Locale)
		})
	}
}

func TestAcceptCurrentPlanParseFailureFirstIteration(t *testing.T) {
	ctx := context.Background()
	state := &model.State{PlanText: "not json at all"}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, compose.END, state.Goto)
	assert.Zero(t, state.PlanIterations)
	assert.Nil(t, state.CurrentPlan)
}

func TestAcceptCurrentPlanParseFailureAfterAcceptedPlan(t *testing.T) {
	ctx := context.Background()
	state := &model.State{PlanText: "not json at all", PlanIterations: 1}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, consts.Reporter, state.Goto)
	assert.Equal(t, 1, state.PlanIterations)
}

func TestAcceptCurrentPlanPreservesMetaFields(t *testing.T) {
	ctx := context.Background()
	state := &model.State{
		PlanText:               reviewPlanText,
		Locale:                 "zh-CN",
		ResearchTopic:          "AI adoption",
		ClarifiedResearchTopic: "AI adoption - enterprise",
		ClarificationHistory:   []string{"AI adoption", "enterprise"},
		ClarificationRounds:    1,
		MaxClarificationRounds: 5,
		EnableClarification:    true,
	}

	acceptCurrentPlan(ctx, state)

	assert.Equal(t, "AI adoption", state.ResearchTopic)
	assert.Equal(t, "AI adoption - enterprise", state.ClarifiedResearchTopic)
	assert.Equal(t, []string{"AI adoption", "enterprise"}, state.ClarificationHistory)
	assert.Equal(t, 1, state.ClarificationRounds)
	assert.Equal(t, 5, state.MaxClarificationRounds)
	assert.True(t, state.EnableClarification)
}
