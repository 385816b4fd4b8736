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
	"fmt"
	"strings"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// InterruptFunc suspends the run with a human-readable prompt and returns
// the free-text resume value once the run continues. The production
// implementation is backed by the graph's durable interrupt/resume cycle;
// tests substitute a plain function.
type InterruptFunc func(ctx context.Context, message string) (string, error)

// approvalKeywords is a fixed allow-list. Any feedback that contains none
// of these rejects the tool call, including ambiguous replies like
// "maybe" — approval is permissive on phrasing, everything else fails
// closed.
var approvalKeywords = []string{
	"approved", "approve", "yes", "proceed", "continue",
	"ok", "okay", "accepted", "accept",
}

// ToolInterceptor wraps a named subset of tools so a human approves each
// invocation before the underlying tool executes.
type ToolInterceptor struct {
	interruptBeforeTools []string
	interrupt            InterruptFunc
}

func NewToolInterceptor(interruptBeforeTools []string, interrupt InterruptFunc) *ToolInterceptor {
	return &ToolInterceptor{
		interruptBeforeTools: interruptBeforeTools,
		interrupt:            interrupt,
	}
}

// ShouldInterrupt is an exact, case-sensitive membership test.
func (ti *ToolInterceptor) ShouldInterrupt(name string) bool {
	for _, n := range ti.interruptBeforeTools {
		if n == name {
			return true
		}
	}
	return false
}

// parseApproval classifies free-text feedback. Case-insensitive substring
// match against the approval keywords; empty feedback rejects.
func parseApproval(feedback string) bool {
	if feedback == "" {
		return false
	}
	lower := strings.ToLower(feedback)
	for _, kw := range approvalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// formatToolInput renders a tool's call arguments for the approval prompt:
// nil becomes "No input", strings pass through verbatim, everything else is
// 2-space-indented JSON with a plain %v fallback for unserializable values.
func formatToolInput(input any) string {
	if input == nil {
		return "No input"
	}
	if s, ok := input.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", input)
	}
	return string(data)
}

// interceptedTool wraps InvokableRun, the lowest common entry point of the
// tool abstraction, so every invocation path goes through the approval
// check.
type interceptedTool struct {
	inner       tool.InvokableTool
	info        *schema.ToolInfo
	interceptor *ToolInterceptor
}

func (t *interceptedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *interceptedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	if !t.interceptor.ShouldInterrupt(t.info.Name) {
		return t.inner.InvokableRun(ctx, argumentsInJSON, opts...)
	}

	var display any
	if argumentsInJSON != "" {
		var parsed any
		if err := json.Unmarshal([]byte(argumentsInJSON), &parsed); err == nil {
			display = parsed
		} else {
			display = argumentsInJSON
		}
	}
	message := fmt.Sprintf("Tool '%s' requires approval before execution.\n\nArguments:\n%s",
		t.info.Name, formatToolInput(display))

	feedback, err := t.interceptor.interrupt(ctx, message)
	if err != nil {
		// durable suspension or transport failure, surface to the runtime
		return "", err
	}

	if parseApproval(feedback) {
		ilog.EventInfo(ctx, "tool_call_approved", "tool", t.info.Name)
		return t.inner.InvokableRun(ctx, argumentsInJSON, opts...)
	}

	ilog.EventInfo(ctx, "tool_call_rejected", "tool", t.info.Name, "feedback", feedback)
	rejection, _ := json.Marshal(map[string]string{
		"status": "rejected",
		"error":  fmt.Sprintf("Tool execution rejected by user. Feedback: %s", feedback),
	})
	return string(rejection), nil
}

// WrapToolsWithInterceptor wraps exactly the tools whose names appear in
// interruptBeforeTools, leaving the rest untouched. An empty or nil name
// list returns the input unchanged, so read-only tools like search carry
// zero overhead.
func WrapToolsWithInterceptor(ctx context.Context, tools []tool.BaseTool, interruptBeforeTools []string, interrupt InterruptFunc) []tool.BaseTool {
	if len(interruptBeforeTools) == 0 {
		return tools
	}
	interceptor := NewToolInterceptor(interruptBeforeTools, interrupt)

	out := make([]tool.BaseTool, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			ilog.EventWarn(ctx, "tool_info_fail_skip_wrap")
			out = append(out, t)
			continue
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok || !interceptor.ShouldInterrupt(info.Name) {
			out = append(out, t)
			continue
		}
		out = append(out, &interceptedTool{inner: inv, info: info, interceptor: interceptor})
	}
	return out
}
