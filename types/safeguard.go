package types

import "strings"

// SafeguardLabel 输入安全分类标签
type SafeguardLabel string

const (
	// SafeguardPass 正常请求
	SafeguardPass SafeguardLabel = "PASS"
	// SafeguardPII 包含个人身份信息
	SafeguardPII SafeguardLabel = "PII"
	// SafeguardHarmful 有害请求
	SafeguardHarmful SafeguardLabel = "HARMFUL"
	// SafeguardInjection 疑似提示词注入
	SafeguardInjection SafeguardLabel = "PROMPT_INJECTION"
)

// SafeguardAction 标签对应的处理动作
type SafeguardAction string

const (
	SafeguardAllow    SafeguardAction = "allow"
	SafeguardMask     SafeguardAction = "mask"
	SafeguardBlock    SafeguardAction = "block"
	SafeguardRedirect SafeguardAction = "redirect"
)

// Blocked 返回该标签是否阻断生成。PASS 之外的所有标签都会短路生成节点。
func (l SafeguardLabel) Blocked() bool {
	return l != SafeguardPass && l != ""
}

// Action 返回标签对应的处理动作。未知标签按注入处理。
func (l SafeguardLabel) Action() SafeguardAction {
	switch l {
	case SafeguardPass:
		return SafeguardAllow
	case SafeguardPII:
		return SafeguardMask
	case SafeguardHarmful:
		return SafeguardBlock
	case SafeguardInjection:
		return SafeguardRedirect
	default:
		return SafeguardRedirect
	}
}

// BlockCode 返回标签对应的用户可见错误码。
func (l SafeguardLabel) BlockCode() ErrorCode {
	switch l {
	case SafeguardPII:
		return ErrPIIBlocked
	case SafeguardHarmful:
		return ErrHarmfulBlocked
	case SafeguardInjection:
		return ErrInjectionBlocked
	default:
		return ErrSafeguardBlocked
	}
}

// ParseSafeguardLabel 解析模型输出的标签文本，无法识别时返回 PASS。
func ParseSafeguardLabel(raw string) SafeguardLabel {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	switch SafeguardLabel(raw) {
	case SafeguardPass, SafeguardPII, SafeguardHarmful, SafeguardInjection:
		return SafeguardLabel(raw)
	default:
		return SafeguardPass
	}
}
