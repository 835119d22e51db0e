// Copyright 2025-2026 AskForge Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package stream 定义问答结果的流式事件协议。

事件序列服从固定文法：

	token{in_progress}* token{end} references error? done

token 以空载荷的 token{end} 哨兵收尾，references 在每个完成的流中
恰好出现一次（来源可为空）。done 在每个流中恰好出现一次且必为最后
一个事件。每种事件类型有
各自的必填字段，构造与入队前都会校验，坏事件宁可失败也不静默丢弃。

# 核心类型

  - Event — 带类型标签的事件联合（token / references / error / done）
  - Streamer — 把管线终态展开为合法事件序列
  - EncodeSSE / DecodeSSE — Server-Sent Events 帧编解码
*/
package stream
