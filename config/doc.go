// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package config 提供 AskForge 的统一配置：YAML 文件加环境变量覆盖。
// 优先级为 默认值 → YAML → 环境变量（前缀 ASKFORGE）。
package config
