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

package infra

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	aclopenai "github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/tidal-labs/deepdive/biz/model"
	"github.com/tidal-labs/deepdive/conf"
)

var (
	// ChatModel serves the coordinator, agents and reporter.
	ChatModel *openai.ChatModel
	// PlanModel is ChatModel constrained to the Plan JSON schema, used by
	// the planner's structured-output path.
	PlanModel *openai.ChatModel
)

// PlannerUsesStructuredOutput reports whether the planner should use the
// single-shot structured invocation instead of streaming.
func PlannerUsesStructuredOutput() bool {
	return conf.Config.Model.PlannerTier == "basic"
}

func InitModel() {
	config := &openai.ChatModelConfig{
		BaseURL: conf.Config.Model.BaseURL,
		APIKey:  conf.Config.Model.APIKey,
		Model:   conf.Config.Model.DefaultModel,
	}
	ChatModel, _ = openai.NewChatModel(context.Background(), config)

	planSchema, _ := openapi3gen.NewSchemaRefForValue(&model.Plan{}, nil)
	planConfig := &openai.ChatModelConfig{
		BaseURL: conf.Config.Model.BaseURL,
		APIKey:  conf.Config.Model.APIKey,
		Model:   conf.Config.Model.DefaultModel,
		ResponseFormat: &aclopenai.ChatCompletionResponseFormat{
			Type: aclopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &aclopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   "plan",
				Strict: false,
				Schema: planSchema.Value,
			},
		},
	}
	PlanModel, _ = openai.NewChatModel(context.Background(), planConfig)
}
