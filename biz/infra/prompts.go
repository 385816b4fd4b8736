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
	"os"
	"path/filepath"
	"sync"

	"github.com/RanFeng/ilog"
)

var (
	promptMu    sync.RWMutex
	promptCache = map[string]string{}
)

// GetPromptTemplate loads the Jinja2 Markdown template for the given agent
// name from conf/prompts/<name>.md. Templates are read once and cached for
// the process lifetime.
func GetPromptTemplate(ctx context.Context, name string) (string, error) {
	promptMu.RLock()
	if tpl, ok := promptCache[name]; ok {
		promptMu.RUnlock()
		return tpl, nil
	}
	promptMu.RUnlock()

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "conf", "prompts", name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		ilog.EventError(ctx, err, "prompt_template_read_fail", "name", name)
		return "", fmt.Errorf("read prompt template %s: %w", name, err)
	}

	promptMu.Lock()
	promptCache[name] = string(data)
	promptMu.Unlock()
	return string(data), nil
}
