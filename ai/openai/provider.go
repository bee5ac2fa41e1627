// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"github.com/poiesic/studyplanner/ai"
)

const (
	// DeepSeekBaseURL is the DeepSeek OpenAI-compatible endpoint.
	DeepSeekBaseURL = "https://api.deepseek.com"
	// DeepSeekModel is the chat model behind the "deepseek" provider.
	DeepSeekModel = "deepseek-chat"

	openAIBaseURL = "https://api.openai.com/v1"
)

// NewDeepSeek creates the "deepseek" answerer.
func NewDeepSeek(config *ai.Config) (ai.Answerer, error) {
	return NewAnswerer(DeepSeekBaseURL, config.DeepSeekAPIKey, DeepSeekModel)
}

// NewGPT4o creates the "gpt-4o" answerer on the hosted OpenAI API.
func NewGPT4o(config *ai.Config) (ai.Answerer, error) {
	return NewAnswerer(openAIBaseURL, config.OpenAIAPIKey, ai.ProviderGPT4o)
}

// NewCompatible creates the "openai" answerer for any OpenAI-compatible
// server configured by OpenAIHost and OpenAIModel. Local servers that take
// no key are sent a placeholder token.
func NewCompatible(config *ai.Config) (ai.Answerer, error) {
	if err := config.CheckProvider(ai.ProviderOpenAI); err != nil {
		return nil, err
	}
	token := config.OpenAIAPIKey
	if token == "" {
		token = "none"
	}
	return NewAnswerer(config.OpenAIHost, token, config.OpenAIModel)
}
