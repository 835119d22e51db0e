package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/askforge/askforge/types"
)

// SafeguardConfig 安全分类器配置。
type SafeguardConfig struct {
	// PIIPatterns 个人信息正则；任一命中即判定 PII。
	PIIPatterns []*regexp.Regexp
	// HarmfulKeywords 有害内容关键词（小写匹配）。
	HarmfulKeywords []string
	// InjectionPhrases 提示注入特征短语（小写匹配）。
	InjectionPhrases []string
	// UseLLM 规则全部放行后是否再用 LLM 复核。
	UseLLM bool
}

// DefaultSafeguardConfig 返回默认安全分类配置。
func DefaultSafeguardConfig() SafeguardConfig {
	return SafeguardConfig{
		PIIPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{6}[-\s]?[1-4]\d{6}\b`),           // 居民登记号
			regexp.MustCompile(`\b\d{3}[-.\s]?\d{3,4}[-.\s]?\d{4}\b`), // 电话号码
			regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), // 银行卡号
			regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		},
		HarmfulKeywords: []string{
			"bomb", "explosive", "weapon", "malware", "ransomware",
			"phishing", "how to hack", "suicide", "self-harm", "poison someone",
		},
		InjectionPhrases: []string{
			"ignore previous", "ignore all previous", "disregard the above",
			"system prompt", "developer message", "reveal your instructions",
			"you are now", "jailbreak", "do anything now",
		},
	}
}

// SafetyClassifier 对进入管线的问题做前置安全分类。
// 规则层先行：PII 正则 → 有害关键词 → 注入短语；全部放行且配置了
// LLM 复核时再调用生成器。分类器自身绝不报错，一切异常都判 PASS，
// 由下游阶段兜底。
type SafetyClassifier struct {
	config    SafeguardConfig
	generator TextGenerator
	logger    *zap.Logger
}

// NewSafetyClassifier 创建安全分类器。generator 可为 nil（纯规则模式）。
func NewSafetyClassifier(config SafeguardConfig, generator TextGenerator, logger *zap.Logger) *SafetyClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafetyClassifier{
		config:    config,
		generator: generator,
		logger:    logger.With(zap.String("component", "safety_classifier")),
	}
}

// Classify 返回问题的安全标签。空问题直接 PASS。
func (c *SafetyClassifier) Classify(ctx context.Context, question string) types.SafeguardLabel {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return types.SafeguardPass
	}

	if label := c.classifyByRules(trimmed); label != types.SafeguardPass {
		c.logger.Debug("safeguard rule hit", zap.String("label", string(label)))
		return label
	}

	if c.config.UseLLM && c.generator != nil {
		return c.classifyByLLM(ctx, trimmed)
	}
	return types.SafeguardPass
}

func (c *SafetyClassifier) classifyByRules(question string) types.SafeguardLabel {
	for _, pattern := range c.config.PIIPatterns {
		if pattern.MatchString(question) {
			return types.SafeguardPII
		}
	}

	lowered := strings.ToLower(question)
	for _, kw := range c.config.HarmfulKeywords {
		if strings.Contains(lowered, kw) {
			return types.SafeguardHarmful
		}
	}
	for _, phrase := range c.config.InjectionPhrases {
		if strings.Contains(lowered, phrase) {
			return types.SafeguardInjection
		}
	}
	return types.SafeguardPass
}

func (c *SafetyClassifier) classifyByLLM(ctx context.Context, question string) types.SafeguardLabel {
	out, err := c.generator.Generate(ctx, fmt.Sprintf(safeguardPrompt, question))
	if err != nil {
		c.logger.Warn("safeguard llm check failed, passing through", zap.Error(err))
		return types.SafeguardPass
	}
	return types.ParseSafeguardLabel(out)
}
