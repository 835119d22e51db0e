// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package types 定义 AskForge 全局共享的数据模型。

该包是检索边界的唯一规范化点：所有检索后端返回的文档在进入管线前
都会被 Normalize 收敛为同一个 Document 结构，下游不再接受第二种形态。

# 核心类型

  - Document — 规范化检索文档（source_id / content / metadata / score / score_type）
  - ScoreType — 分数空间（similarity / distance）
  - SafeguardLabel — 输入安全分类标签（PASS / PII / HARMFUL / PROMPT_INJECTION）
  - PipelineState — 贯穿管线的单一可变状态记录
  - ErrorCode / Error — 统一错误码与用户可见消息
*/
package types
