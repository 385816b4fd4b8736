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

// ChatMessage is one turn of the incoming conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReq is the body of POST /api/chat/stream.
type ChatReq struct {
	ThreadID                      string        `json:"thread_id"`
	Messages                      []ChatMessage `json:"messages"`
	Resources                     []Resource    `json:"resources,omitempty"`
	AutoAcceptedPlan              bool          `json:"auto_accepted_plan"`
	InterruptFeedback             string        `json:"interrupt_feedback,omitempty"`
	EnableClarification           *bool         `json:"enable_clarification,omitempty"`
	MaxClarificationRounds        *int          `json:"max_clarification_rounds,omitempty"`
	EnableBackgroundInvestigation *bool         `json:"enable_background_investigation,omitempty"`
	MaxPlanIterations             *int          `json:"max_plan_iterations,omitempty"`
	MaxStepNum                    *int          `json:"max_step_num,omitempty"`
	Locale                        string        `json:"locale,omitempty"`
}

// ChatResp is one SSE event frame pushed to the client.
type ChatResp struct {
	ThreadID       string          `json:"thread_id"`
	Agent          string          `json:"agent"`
	ID             string          `json:"id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	FinishReason   string          `json:"finish_reason,omitempty"`
	MessageChunks  string          `json:"message_chunks,omitempty"`
	ToolCallID     string          `json:"tool_call_id,omitempty"`
	ToolCalls      []ToolResp      `json:"tool_calls,omitempty"`
	ToolCallChunks []ToolChunkResp `json:"tool_call_chunks,omitempty"`
	Options        []OptionResp    `json:"options,omitempty"`
}

// ToolResp describes a completed tool call announcement.
type ToolResp struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	Type string         `json:"type"`
	ID   string         `json:"id"`
}

// ToolChunkResp carries the streamed argument fragments of a tool call.
type ToolChunkResp struct {
	Name string `json:"name"`
	Args string `json:"args"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// OptionResp is one choice offered to the user on an interrupt frame.
type OptionResp struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}
