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
	"fmt"
	"strings"
	"time"

	"github.com/RanFeng/ilog"
	einomcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tidal-labs/deepdive/conf"
)

const mcpInitTimeout = 60 * time.Second

// GetAgentMCPTools connects to every configured MCP server whose
// add_to_agents includes agentType, fetches its tools, filters them to the
// server's enabled_tools and brands each description with the server name.
// The acquisition is scoped: the returned closer must be called once the
// step using the tools has finished, no connection outlives a step.
//
// When no server applies to this agent type it returns (nil, no-op, nil),
// which is the normal not-configured case rather than an error.
func GetAgentMCPTools(ctx context.Context, agentType string) ([]tool.BaseTool, func(), error) {
	var tools []tool.BaseTool
	var clients []client.MCPClient
	closer := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}

	for name, server := range conf.Config.MCP.Servers {
		if !containsString(server.AddToAgents, agentType) {
			continue
		}

		cli, err := connectMCPClient(ctx, name, server)
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		clients = append(clients, cli)

		ts, err := einomcp.GetTools(ctx, &einomcp.Config{Cli: cli})
		if err != nil {
			closer()
			return nil, func() {}, fmt.Errorf("fetch tools from MCP server %s: %w", name, err)
		}

		for _, t := range ts {
			info, err := t.Info(ctx)
			if err != nil {
				ilog.EventWarn(ctx, "mcp_tool_info_fail", "server", name)
				continue
			}
			if len(server.EnabledTools) > 0 && !containsString(server.EnabledTools, info.Name) {
				continue
			}
			tools = append(tools, brandTool(t, info, name))
		}
		ilog.EventInfo(ctx, "mcp_tools_loaded", "server", name, "agent_type", agentType, "count", len(ts))
	}

	if len(clients) == 0 {
		return nil, func() {}, nil
	}
	return tools, closer, nil
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// brandedTool prefixes the tool description so the model (and any trace
// reader) can tell which server a tool came from.
type brandedTool struct {
	inner tool.InvokableTool
	info  *schema.ToolInfo
}

func (b *brandedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return b.info, nil
}

func (b *brandedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return b.inner.InvokableRun(ctx, argumentsInJSON, opts...)
}

func brandTool(t tool.BaseTool, info *schema.ToolInfo, server string) tool.BaseTool {
	inv, ok := t.(tool.InvokableTool)
	if !ok {
		return t
	}
	branded := *info
	branded.Desc = fmt.Sprintf("Powered by '%s'.\n%s", server, info.Desc)
	return &brandedTool{inner: inv, info: &branded}
}

func connectMCPClient(ctx context.Context, name string, server conf.MCPServerConf) (client.MCPClient, error) {
	var cli client.MCPClient
	var err error

	if server.URL != "" {
		options := []client.ClientOption{}
		if server.Headers != nil {
			headers := make(map[string]string)
			for _, header := range server.Headers {
				parts := strings.SplitN(header, ":", 2)
				if len(parts) == 2 {
					headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
				}
			}
			options = append(options, client.WithHeaders(headers))
		}
		cli, err = client.NewSSEMCPClient(server.URL, options...)
		if err == nil {
			err = cli.(*client.SSEMCPClient).Start(ctx)
		}
	} else {
		var env []string
		for k, v := range server.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cli, err = client.NewStdioMCPClient(server.Command, env, server.Args...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, mcpInitTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "deepdive",
		Version: "0.1.0",
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err = cli.Initialize(initCtx, initRequest); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to initialize MCP client for %s: %w", name, err)
	}

	ilog.EventInfo(ctx, "mcp_client_ready", "name", name)
	return cli, nil
}
