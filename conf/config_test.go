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

package conf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &DeepDiveConfig{}
	applyDefaults(cfg)

	assert.Equal(t, 1, cfg.Setting.MaxPlanIterations)
	assert.Equal(t, 3, cfg.Setting.MaxStepNum)
	assert.Equal(t, 3, cfg.Setting.MaxSearchResults)
	assert.Equal(t, 3, cfg.Setting.MaxClarificationRounds)
	assert.Equal(t, "basic", cfg.Model.PlannerTier)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &DeepDiveConfig{}
	cfg.Setting.MaxPlanIterations = 4
	cfg.Setting.MaxStepNum = 7
	cfg.Model.PlannerTier = "reasoning"
	applyDefaults(cfg)

	assert.Equal(t, 4, cfg.Setting.MaxPlanIterations)
	assert.Equal(t, 7, cfg.Setting.MaxStepNum)
	assert.Equal(t, "reasoning", cfg.Model.PlannerTier)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	ctx := context.Background()
	cfg := &DeepDiveConfig{}
	cfg.Setting.MaxPlanIterations = 2
	cfg.Setting.EnableClarification = false

	t.Setenv("MAX_PLAN_ITERATIONS", "5")
	t.Setenv("ENABLE_CLARIFICATION", "true")
	ApplyEnvOverrides(ctx, cfg)

	assert.Equal(t, 5, cfg.Setting.MaxPlanIterations)
	assert.True(t, cfg.Setting.EnableClarification)
}

func TestEnvOverridesHonorFalsyValues(t *testing.T) {
	ctx := context.Background()
	cfg := &DeepDiveConfig{}
	cfg.Setting.AutoAcceptedPlan = true
	cfg.Setting.MaxClarificationRounds = 3

	// a present-but-falsy variable must still win over the file value
	t.Setenv("AUTO_ACCEPTED_PLAN", "false")
	t.Setenv("MAX_CLARIFICATION_ROUNDS", "0")
	ApplyEnvOverrides(ctx, cfg)

	assert.False(t, cfg.Setting.AutoAcceptedPlan)
	assert.Equal(t, 0, cfg.Setting.MaxClarificationRounds)
}

func TestEnvOverridesIgnoreUnparseable(t *testing.T) {
	ctx := context.Background()
	cfg := &DeepDiveConfig{}
	cfg.Setting.MaxStepNum = 6
	cfg.Setting.EnforceWebSearch = true

	t.Setenv("MAX_STEP_NUM", "lots")
	t.Setenv("ENFORCE_WEB_SEARCH", "definitely")
	ApplyEnvOverrides(ctx, cfg)

	assert.Equal(t, 6, cfg.Setting.MaxStepNum)
	assert.True(t, cfg.Setting.EnforceWebSearch)
}

func TestEnvOverridesModelCredentials(t *testing.T) {
	ctx := context.Background()
	cfg := &DeepDiveConfig{}
	cfg.Model.APIKey = "file-key"
	cfg.Model.BaseURL = "https://file.example.com/v1"

	t.Setenv("OPENAI_API_KEY", "env-key")
	// empty credential values never clobber the file
	t.Setenv("OPENAI_BASE_URL", "")
	ApplyEnvOverrides(ctx, cfg)

	assert.Equal(t, "env-key", cfg.Model.APIKey)
	assert.Equal(t, "https://file.example.com/v1", cfg.Model.BaseURL)
}
