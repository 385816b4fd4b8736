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
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RanFeng/ilog"
	"gopkg.in/yaml.v3"
)

// MCPServerConf describes one MCP tool server. AddToAgents names the agent
// types the server's tools are offered to; EnabledTools whitelists which of
// the fetched tools are kept (empty list keeps all).
type MCPServerConf struct {
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args"`
	Env          map[string]string `yaml:"env,omitempty"`
	URL          string            `yaml:"url,omitempty"`
	Headers      []string          `yaml:"headers,omitempty"`
	AddToAgents  []string          `yaml:"add_to_agents"`
	EnabledTools []string          `yaml:"enabled_tools"`
}

// 定义一个结构体来解析 YAML 配置
type DeepDiveConfig struct {
	MCP struct {
		Servers map[string]MCPServerConf `yaml:"servers"`
	} `yaml:"mcp"`
	Model struct {
		DefaultModel string `yaml:"default_model"`
		// PlannerTier selects the planner invocation path: "basic" uses
		// single-shot structured output, anything else streams and
		// concatenates.
		PlannerTier string `yaml:"planner_tier"`
		APIKey      string `yaml:"api_key"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"model"`
	Setting struct {
		MaxPlanIterations             int      `yaml:"max_plan_iterations"`
		MaxStepNum                    int      `yaml:"max_step_num"`
		MaxSearchResults              int      `yaml:"max_search_results"`
		EnforceWebSearch              bool     `yaml:"enforce_web_search"`
		AutoAcceptedPlan              bool     `yaml:"auto_accepted_plan"`
		EnableClarification           bool     `yaml:"enable_clarification"`
		MaxClarificationRounds        int      `yaml:"max_clarification_rounds"`
		EnableBackgroundInvestigation bool     `yaml:"enable_background_investigation"`
		InterruptBeforeTools          []string `yaml:"interrupt_before_tools"`
	} `yaml:"setting"`
}

var (
	Config *DeepDiveConfig = &DeepDiveConfig{}
)

func LoadConfig(ctx context.Context) {
	dir, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("获取当前工作目录失败: %v", err))
	}

	configPath := filepath.Join(dir, "conf", "deepdive.yaml")

	configData, err := os.ReadFile(configPath)
	if err != nil {
		panic(fmt.Sprintf("读取配置文件 %s 失败: %v", configPath, err))
	}

	cfg := &DeepDiveConfig{}
	if err := yaml.Unmarshal(configData, cfg); err != nil {
		panic(fmt.Sprintf("解析配置文件 %s 失败: %v", configPath, err))
	}

	applyDefaults(cfg)
	ApplyEnvOverrides(ctx, cfg)
	ilog.EventInfo(ctx, "load_config", "conf", cfg)
	Config = cfg
}

func applyDefaults(cfg *DeepDiveConfig) {
	if cfg.Setting.MaxPlanIterations <= 0 {
		cfg.Setting.MaxPlanIterations = 1
	}
	if cfg.Setting.MaxStepNum <= 0 {
		cfg.Setting.MaxStepNum = 3
	}
	if cfg.Setting.MaxSearchResults <= 0 {
		cfg.Setting.MaxSearchResults = 3
	}
	if cfg.Setting.MaxClarificationRounds <= 0 {
		cfg.Setting.MaxClarificationRounds = 3
	}
	if cfg.Model.PlannerTier == "" {
		cfg.Model.PlannerTier = "basic"
	}
}

// ApplyEnvOverrides lets the environment take precedence over the YAML
// values. Overrides are presence-aware: a variable set to a falsy value
// ("0", "false") still overrides, only an unset or unparseable variable
// leaves the file value alone.
func ApplyEnvOverrides(ctx context.Context, cfg *DeepDiveConfig) {
	overrideInt(ctx, "MAX_PLAN_ITERATIONS", &cfg.Setting.MaxPlanIterations)
	overrideInt(ctx, "MAX_STEP_NUM", &cfg.Setting.MaxStepNum)
	overrideInt(ctx, "MAX_SEARCH_RESULTS", &cfg.Setting.MaxSearchResults)
	overrideInt(ctx, "MAX_CLARIFICATION_ROUNDS", &cfg.Setting.MaxClarificationRounds)
	overrideBool(ctx, "ENFORCE_WEB_SEARCH", &cfg.Setting.EnforceWebSearch)
	overrideBool(ctx, "AUTO_ACCEPTED_PLAN", &cfg.Setting.AutoAcceptedPlan)
	overrideBool(ctx, "ENABLE_CLARIFICATION", &cfg.Setting.EnableClarification)
	overrideBool(ctx, "ENABLE_BACKGROUND_INVESTIGATION", &cfg.Setting.EnableBackgroundInvestigation)

	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok && v != "" {
		cfg.Model.APIKey = v
	}
	if v, ok := os.LookupEnv("OPENAI_BASE_URL"); ok && v != "" {
		cfg.Model.BaseURL = v
	}
}

func overrideInt(ctx context.Context, key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		ilog.EventWarn(ctx, "env_override_invalid", "key", key, "value", raw)
		return
	}
	*dst = v
}

func overrideBool(ctx context.Context, key string, dst *bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		ilog.EventWarn(ctx, "env_override_invalid", "key", key, "value", raw)
		return
	}
	*dst = v
}
