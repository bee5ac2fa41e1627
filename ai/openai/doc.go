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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Both the embedder and the answerers use the langchaingo client, so they
// work against OpenAI, DeepSeek, or any OpenAI-compatible server (Ollama,
// LocalAI, vLLM).
//
// # Usage
//
//	config := ai.NewConfig(ai.WithDeepSeekAPIKey(key))
//	answerer, err := openai.NewDeepSeek(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	answer, err := answerer.Answer(ctx, req)
//
//	embedder, err := openai.NewEmbedder(config)
//	vectors, err := embedder.EmbedTexts(ctx, chunks)
package openai
