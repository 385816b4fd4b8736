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

package model

// StepType 定义步骤类型的枚举
type StepType string

const (
	Research StepType = "research"
	// Processing is the legacy non-search step type. Older plans still carry
	// it and it keeps routing to the coder agent, but repair never emits it.
	Processing StepType = "processing"
	Analysis   StepType = "analysis"
)

// Step 定义单个步骤的结构体
type Step struct {
	NeedSearch   bool     `json:"need_search" validate:"required"`
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	StepType     StepType `json:"step_type" validate:"required"`
	ExecutionRes *string  `json:"execution_res,omitempty"`
}

// Executed reports whether the step has already produced a result.
func (s *Step) Executed() bool {
	return s.ExecutionRes != nil
}

// Plan 定义计划的结构体
type Plan struct {
	Locale           string `json:"locale" validate:"required"`
	HasEnoughContext bool   `json:"has_enough_context" validate:"required"`
	Thought          string `json:"thought" validate:"required"`
	Title            string `json:"title" validate:"required"`
	Steps            []Step `json:"steps"`
}

// FirstUnexecutedStep returns the lowest-index step whose ExecutionRes is
// still nil, or (nil, -1) when every step has executed. Steps run strictly
// in array order, so this is the only dispatch rule.
func (p *Plan) FirstUnexecutedStep() (*Step, int) {
	if p == nil {
		return nil, -1
	}
	for i := range p.Steps {
		if p.Steps[i].ExecutionRes == nil {
			return &p.Steps[i], i
		}
	}
	return nil, -1
}

// AgentForStep maps a step type to the agent that executes it. Research
// steps run on the researcher; processing and analysis both run on the
// coder. Unknown types fall through to the coder as well, since repair
// guarantees one of the three valid values on any plan that got this far.
func AgentForStep(t StepType) string {
	if t == Research {
		return "researcher"
	}
	return "coder"
}
