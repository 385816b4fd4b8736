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

package main

import (
	"context"
	"os"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/cors"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"github.com/tidal-labs/deepdive/biz/handler"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/conf"
)

func main() {
	ctx := context.Background()

	conf.LoadConfig(ctx)
	infra.InitModel()
	infra.InitCozeLoopTracing()
	tracer, tracerCfg, shutdown := infra.InitAPMPlusTracing(ctx, true)
	if shutdown != nil {
		defer func() {
			_ = shutdown(ctx)
		}()
	}

	addr := os.Getenv("DEEPDIVE_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	opts := []hertzconfig.Option{server.WithHostPorts(addr)}
	if tracerCfg != nil {
		opts = append(opts, tracer)
	}
	h := server.Default(opts...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}

	h.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
	}))

	h.POST("/api/chat/stream", handler.ChatStream)

	ilog.EventInfo(ctx, "server_start", "addr", addr)
	h.Spin()
}
