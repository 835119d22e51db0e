// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package jobs 提供问答管线的作业执行外壳：作业队列、事件队列、
状态存储与轮询 worker。

作业生命周期：queued → running → {completed, failed, cancelled}。
终态是吸收态，到达后不再变化。破坏性的 FIFO Pop 是唯一的互斥点，
一个作业只会被一个 worker 取走。取消以标志位表达，worker 在取出后
与管线返回后各检查一次；被取消的作业恰好产出 error(cancelled) + done
两个事件。

队列与存储各有内存实现与 Redis 实现，接口一致、可混搭。
*/
package jobs
