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


// Package ai provides abstractions for the AI services used by the study planner.
//
// The package defines the capabilities the background jobs depend on:
//
//   - Embedder: Generates vector embeddings from document chunks
//   - Answerer: Produces tutoring answers from a system prompt, history and question
//   - AIProvider: Aggregates both and resolves answerers by provider name
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs via langchaingo (DeepSeek, GPT-4o, local servers)
//   - ai/gemini: Google Gemini via generative-ai-go
//   - ai/vertex: Gemini on Vertex AI
//   - ai/providers: String-keyed factory selecting one of the above
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithDeepSeekAPIKey(key))
//	provider, err := providers.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answerer, err := provider.Answerer(ctx, "gpt-4o")
//	answer, err := answerer.Answer(ctx, ai.AnswerRequest{
//	    SystemPrompt: ai.TutorSystemPrompt("Calculus", "lecture", "English"),
//	    Question:     ai.StudentQuestion("Calculus", "lecture", "What is a limit?"),
//	    Temperature:  cfg.Temperature,
//	    MaxTokens:    cfg.MaxTokens,
//	})
package ai
