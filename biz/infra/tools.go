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

	"github.com/RanFeng/ilog"
	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"

	"github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/conf"
)

// NewWebSearchTool builds the default web search tool shared by the
// researcher and the background investigator. The tool name is fixed so
// that step traces can be scanned for whether a real search happened.
func NewWebSearchTool(ctx context.Context) (tool.InvokableTool, error) {
	return duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   consts.WebSearchTool,
		ToolDesc:   "Search the web for fresh information. Input a concise query, get back titles, URLs and snippets.",
		MaxResults: conf.Config.Setting.MaxSearchResults,
	})
}

// DefaultAgentTools returns the built-in tool set for an agent type before
// MCP servers are consulted. The researcher gets web search; the coder has
// no built-ins and relies entirely on configured MCP tools.
func DefaultAgentTools(ctx context.Context, agentType string) []tool.BaseTool {
	switch agentType {
	case consts.Researcher:
		searchTool, err := NewWebSearchTool(ctx)
		if err != nil {
			ilog.EventError(ctx, err, "web_search_tool_init_fail")
			return nil
		}
		return []tool.BaseTool{searchTool}
	default:
		return nil
	}
}
