// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 实现基于检索增强生成（Retrieval-Augmented Generation）的问答管线。

管线以固定阶段的状态机驱动：安全分类 → 并发检索（查询分解 + 自适应 HyDE
回退）→ 策略过滤 → 分数归一化 → 合并去重 → 后处理 → 有据生成 → 条件摘要。
所有阶段都写入同一个 types.PipelineState，阶段本身绝不向调用方抛出错误；
失败被折叠为 route / errorCode 并由生成阶段转换为用户可见的回退答案。

# 核心接口/类型

  - TextGenerator / Embedder / Searcher — 管线消费的外部能力接口
  - Pipeline — 阶段状态机；NewPipeline 在构造时编译阶段转移表
  - SafetyClassifier — PII / 有害内容 / 提示注入 分类器（规则 + 可选 LLM）
  - QueryDecomposer — 查询分解器（LLM 优先，规则回退）
  - ParallelRetriever — 有界并发多查询检索器
  - AdaptiveRetriever — 自适应 HyDE 回退检索器（search → judge → hyde → merge）
  - Merger / PostProcessor — 合并去重、来源多样性、压缩与截断
  - AnswerGenerator — 有据生成器，带 token 预算与无 LLM 回退
  - Summarizer — 对话摘要策略与生成

# 使用示例

	pipe := rag.NewPipeline(rag.DefaultPipelineConfig(), rag.Capabilities{
		Generator: gen,
		Searcher:  searcher,
	}, metrics.Nop(), logger)

	state := &types.PipelineState{Question: "what is petrov defence"}
	state, _ = pipe.Run(ctx, state)
*/
package rag
