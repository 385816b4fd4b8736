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

package handler

import (
	"context"
	"errors"
	"io"

	"github.com/RanFeng/ilog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/google/uuid"

	bizconsts "github.com/tidal-labs/deepdive/biz/consts"
	"github.com/tidal-labs/deepdive/biz/eino"
	"github.com/tidal-labs/deepdive/biz/infra"
	"github.com/tidal-labs/deepdive/biz/model"
	"github.com/tidal-labs/deepdive/conf"
)

// newRunState builds the initial workflow state for one thread from the
// request plus configured defaults. Resumed runs never reach this, the
// checkpoint restores state instead.
func newRunState(req *model.ChatReq) *model.State {
	state := &model.State{
		Goto:                          bizconsts.Coordinator,
		Locale:                        bizconsts.DefaultLocale,
		Resources:                     req.Resources,
		AutoAcceptedPlan:              req.AutoAcceptedPlan,
		MaxPlanIterations:             conf.Config.Setting.MaxPlanIterations,
		MaxStepNum:                    conf.Config.Setting.MaxStepNum,
		EnableClarification:           conf.Config.Setting.EnableClarification,
		MaxClarificationRounds:        conf.Config.Setting.MaxClarificationRounds,
		EnableBackgroundInvestigation: conf.Config.Setting.EnableBackgroundInvestigation,
	}
	if req.Locale != "" && req.Locale != bizconsts.AutoLocale {
		state.Locale = req.Locale
	}
	if req.EnableClarification != nil {
		state.EnableClarification = *req.EnableClarification
	}
	if req.MaxClarificationRounds != nil {
		state.MaxClarificationRounds = *req.MaxClarificationRounds
	}
	if req.EnableBackgroundInvestigation != nil {
		state.EnableBackgroundInvestigation = *req.EnableBackgroundInvestigation
	}
	if req.MaxPlanIterations != nil {
		state.MaxPlanIterations = *req.MaxPlanIterations
	}
	if req.MaxStepNum != nil {
		state.MaxStepNum = *req.MaxStepNum
	}
	for _, m := range req.Messages {
		role := schema.User
		if m.Role == "assistant" {
			role = schema.Assistant
		}
		state.Messages = append(state.Messages, &schema.Message{Role: role, Content: m.Content})
	}
	return state
}

// ChatStream is POST /api/chat/stream: runs (or resumes) one workflow
// thread and streams its events to the client over SSE.
func ChatStream(ctx context.Context, c *app.RequestContext) {
	req := &model.ChatReq{}
	if err := c.BindJSON(req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.ThreadID == "" || req.ThreadID == "__default__" {
		req.ThreadID = uuid.New().String()
	}

	w := sse.NewWriter(c)
	defer w.Close()

	cb := &infra.StreamCallback{ID: req.ThreadID, SSE: w}
	runChat(ctx, req, cb)
	c.Flush()
}

// runChat drives the graph for one request. An interrupt surfaces as a
// pushed SSE frame and leaves the checkpoint in place for the next
// request on the same thread to resume with its feedback.
func runChat(ctx context.Context, req *model.ChatReq, cb *infra.StreamCallback) {
	r := eino.Builder[string, string, *model.State](ctx,
		func(ctx context.Context) *model.State {
			return newRunState(req)
		})

	opts := []compose.Option{
		compose.WithCheckPointID(req.ThreadID),
		compose.WithCallbacks(cb),
	}
	if req.InterruptFeedback != "" {
		opts = append(opts, compose.WithStateModifier(func(ctx context.Context, path compose.NodePath, s any) error {
			state, ok := s.(*model.State)
			if !ok {
				return nil
			}
			state.InterruptFeedback = req.InterruptFeedback
			state.AutoAcceptedPlan = state.AutoAcceptedPlan || req.AutoAcceptedPlan
			return nil
		}))
	}

	sr, err := r.Stream(ctx, bizconsts.Coordinator, opts...)
	if err == nil {
		defer sr.Close()
		for {
			_, recvErr := sr.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				err = recvErr
				break
			}
		}
	}

	if info, ok := compose.ExtractInterruptInfo(err); ok {
		content := ""
		if state, ok := info.State.(*model.State); ok {
			if state.PendingToolApproval != "" {
				content = state.PendingToolApproval
			} else if state.PlanText != "" {
				content = state.PlanText
			} else if len(state.Messages) > 0 {
				content = state.Messages[len(state.Messages)-1].Content
			}
		}
		ilog.EventInfo(ctx, "chat_interrupt", "thread_id", req.ThreadID)
		cb.PushInterrupt(ctx, content)
		return
	}
	if err != nil {
		ilog.EventError(ctx, err, "chat_stream_fail", "thread_id", req.ThreadID)
	}
}
