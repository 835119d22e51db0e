// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package checkpoint 按会话线程保存管线状态的版本化快照。
// 每次 Save 分配递增版本号，只保留最近 KeepLast 个版本；
// 重启后用 Latest 恢复会话上下文（历史、摘要、轮数）。
// 提供内存与 Redis 两种实现。
package checkpoint
