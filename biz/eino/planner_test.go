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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare json untouched", in: `{"title": "t"}`, want: `{"title": "t"}`},
		{name: "json fence", in: "```json\n{\"title\": \"t\"}\n```", want: `{"title": "t"}`},
		{name: "anonymous fence", in: "```\n{\"title\": \"t\"}\n```", want: `{"title": "t"}`},
		{name: "surrounding whitespace", in: "  ```json\n{}\n```  ", want: `{}`},
		{name: "unterminated fence", in: "```json\n{\"title\": \"t\"}", want: `{"title": "t"}`},
		{name: "empty input", in: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripCodeFences(tc.in))
		})
	}
}
