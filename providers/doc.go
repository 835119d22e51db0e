// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package providers 提供 rag 能力接口的具体实现。
// 目前只有 OpenAI 兼容（chat completions / embeddings）一种，
// Deepseek、Qwen、GLM 等兼容端点都可以直接用 BaseURL 指过去。
package providers
