package meli

import (
	"errors"
	"fmt"
	"strings"
)

// ==================== 上游错误分类 ====================

// ErrorKind 上游失败的封闭分类集
// 调用方只匹配 Kind，绝不匹配错误文案
type ErrorKind int

const (
	// KindUpstream 其他非 2xx 响应，保留原始状态码与消息
	KindUpstream ErrorKind = iota
	// KindCredentialExpired 401，凭证过期，需要运营人员介入，永不自动重试
	KindCredentialExpired
	// KindCursorExpired 400 且错误码为游标类，重置游标后可恢复
	KindCursorExpired
	// KindRateLimited 429，按提示时长等待后重试
	KindRateLimited
	// KindServiceUnavailable 503，指数退避后重试
	KindServiceUnavailable
	// KindPaginationExhausted 普通分页模式下 offset 超出上游上限，按"翻页到底"处理
	KindPaginationExhausted
	// KindNetwork 网络故障 / 超时
	KindNetwork
	// KindValidation 参数非法（卖家 ID 异常、缺少凭证等），立即失败不重试
	KindValidation
)

// String 返回分类的可读名称（用于日志与商品诊断字段）
func (k ErrorKind) String() string {
	switch k {
	case KindCredentialExpired:
		return "credential_expired"
	case KindCursorExpired:
		return "cursor_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindPaginationExhausted:
		return "pagination_exhausted"
	case KindNetwork:
		return "network_error"
	case KindValidation:
		return "validation_error"
	default:
		return "upstream_error"
	}
}

// APIError 带分类的上游错误
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error // 底层网络错误（如有）
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meli: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("meli: %s [%d]: %s", e.Kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf 提取错误分类，非 APIError 一律按 KindNetwork 处理
// （能走到调用方的非 API 错误只剩传输层故障）
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// NewValidationError 构造参数校验错误
func NewValidationError(msg string) *APIError {
	return &APIError{Kind: KindValidation, StatusCode: 400, Message: msg}
}

// ==================== 分类逻辑 ====================

// 游标类 400 的错误码（上游拒绝过期 scroll_id 时返回）
const errCodeInvalidScroll = "invalid_scroll_id"

// classifyStatus 在检查 HTTP 状态码与错误体的唯一位置构造分类错误
// scanMode 影响 400 的解释：scan 模式的 400 是游标问题，普通模式可能是 offset 触顶
func classifyStatus(status int, body ErrorResp, scanMode bool) *APIError {
	apiErr := &APIError{StatusCode: status, Message: body.Message}
	if apiErr.Message == "" {
		apiErr.Message = body.ErrorCode
	}

	switch status {
	case 401:
		apiErr.Kind = KindCredentialExpired
	case 429:
		apiErr.Kind = KindRateLimited
	case 503:
		apiErr.Kind = KindServiceUnavailable
	case 400:
		switch {
		case body.ErrorCode == errCodeInvalidScroll || containsScrollCause(body):
			apiErr.Kind = KindCursorExpired
		case !scanMode && isOffsetCause(body):
			apiErr.Kind = KindPaginationExhausted
		default:
			apiErr.Kind = KindUpstream
		}
	default:
		apiErr.Kind = KindUpstream
	}
	return apiErr
}

// containsScrollCause 游标类错误的兜底判断：错误码里带 scroll 字样
// 上游对过期游标的错误码并不完全稳定
func containsScrollCause(body ErrorResp) bool {
	return strings.Contains(body.ErrorCode, "scroll")
}

// isOffsetCause offset 触顶类 400 的判断，依据错误码而非消息正文
func isOffsetCause(body ErrorResp) bool {
	return strings.Contains(body.ErrorCode, "offset") || strings.Contains(body.ErrorCode, "max_offset")
}
