package meli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== Client 上游 API 客户端 ====================

// 上游硬性限制
const (
	// BulkLimit 批量详情接口单次最多 20 个 ID
	BulkLimit = 20
	// MaxOffset 普通分页模式的 offset 上限
	MaxOffset = 10000
)

// Auth 单次调用的卖家凭证
type Auth struct {
	SellerID    int64
	AccessToken string
}

// ClientConfig 客户端配置
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration // 单次 HTTP 调用超时
	MinInterval      time.Duration // 相邻请求的最小间隔（容量为 1 的令牌桶）
	RetryMax         int           // 503 / 网络故障的最大重试次数
	BackoffBase      time.Duration // 指数退避基础时长
	BackoffCap       time.Duration // 指数退避上限
	RateRetryDefault time.Duration // 429 未带 Retry-After 时的默认等待
}

// DefaultClientConfig 默认配置
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          20 * time.Second,
		MinInterval:      200 * time.Millisecond,
		RetryMax:         3,
		BackoffBase:      500 * time.Millisecond,
		BackoffCap:       10 * time.Second,
		RateRetryDefault: 60 * time.Second,
	}
}

// Client Meli API 客户端
// 负责限速、分块、429/503 重试，以及把所有非 2xx 响应翻译成带分类的 APIError
type Client struct {
	http *resty.Client
	cfg  ClientConfig

	// 容量为 1 的令牌桶：记录上一次请求时间，保证最小间隔
	mu       sync.Mutex
	lastCall time.Time
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Meli-GS-Sync/1.0")

	return &Client{http: httpClient, cfg: cfg}
}

// ==================== 搜索 ====================

// SearchQuery 卖家商品搜索参数
type SearchQuery struct {
	Status   string // active / paused / closed，空值不过滤
	Sort     string // 排序，如 start_time_desc
	Offset   int
	Limit    int
	UseScan  bool   // scan 模式（无 offset 上限，游标 5 分钟过期）
	ScrollID string // scan 模式的游标，空值表示初始请求
}

// SearchPage 一页搜索结果
type SearchPage struct {
	IDs      []string
	Total    int
	ScrollID string
	// PaginationLimitReached 普通分页模式 offset 触顶
	// 不是错误：调用方可换排序等策略捞取上限之外的商品
	PaginationLimitReached bool
}

// Exhausted scan 模式终态判断：既无游标也无结果
func (p *SearchPage) Exhausted() bool {
	return len(p.IDs) == 0 && p.ScrollID == ""
}

// SearchPage 拉取一页卖家商品 ID
// GET /users/{seller_id}/items/search
func (c *Client) SearchPage(ctx context.Context, auth Auth, q SearchQuery) (*SearchPage, error) {
	if auth.SellerID <= 0 {
		return nil, NewValidationError("无效的卖家 ID")
	}
	if auth.AccessToken == "" {
		return nil, NewValidationError("缺少访问凭证")
	}

	params := map[string]string{}
	if q.Status != "" {
		params["status"] = q.Status
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	if q.UseScan {
		params["search_type"] = "scan"
		if q.ScrollID != "" {
			params["scroll_id"] = q.ScrollID
		}
	} else {
		params["offset"] = strconv.Itoa(q.Offset)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}

	var result SearchResp
	resp, err := c.doWithRetry(ctx, auth, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(auth.AccessToken).
			SetQueryParams(params).
			SetResult(&result).
			Get(fmt.Sprintf("/users/%d/items/search", auth.SellerID))
	})
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		apiErr := classifyStatus(resp.StatusCode(), parseErrorBody(resp), q.UseScan)
		if apiErr.Kind == KindPaginationExhausted {
			// offset 触顶按空页处理，打标记交给上层决定兜底策略
			return &SearchPage{PaginationLimitReached: true}, nil
		}
		return nil, apiErr
	}

	return &SearchPage{
		IDs:      result.Results,
		Total:    result.Paging.Total,
		ScrollID: result.ScrollID,
	}, nil
}

// ==================== 批量详情 ====================

// FetchDetails 批量拉取商品详情
// 按上游上限切块，顺序发起，块间由令牌桶保证最小间隔
// 单条失败（code != 200）不会中断整批，由调用方按 code 处理
func (c *Client) FetchDetails(ctx context.Context, auth Auth, ids []string) ([]BulkResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	results := make([]BulkResult, 0, len(ids))
	for start := 0; start < len(ids); start += BulkLimit {
		end := start + BulkLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		var page []BulkResult
		resp, err := c.doWithRetry(ctx, auth, func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetAuthToken(auth.AccessToken).
				SetQueryParam("ids", strings.Join(chunk, ",")).
				SetResult(&page).
				Get("/items")
		})
		if err != nil {
			return results, err
		}
		if resp.IsError() {
			return results, classifyStatus(resp.StatusCode(), parseErrorBody(resp), false)
		}

		results = append(results, page...)
	}
	return results, nil
}

// ==================== CBT 扩展接口 ====================

// MarketplaceItems 拉取 CBT 商品的多站点发布列表
// GET /items/{id}/marketplace_items
func (c *Client) MarketplaceItems(ctx context.Context, auth Auth, itemID string) (*MarketplaceItemsResp, error) {
	var result MarketplaceItemsResp
	resp, err := c.doWithRetry(ctx, auth, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(auth.AccessToken).
			SetResult(&result).
			Get(fmt.Sprintf("/items/%s/marketplace_items", itemID))
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classifyStatus(resp.StatusCode(), parseErrorBody(resp), false)
	}
	return &result, nil
}

// Performance 拉取商品质量分
// GET /items/{id}/performance
func (c *Client) Performance(ctx context.Context, auth Auth, itemID string) (*PerformanceResp, error) {
	var result PerformanceResp
	resp, err := c.doWithRetry(ctx, auth, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(auth.AccessToken).
			SetResult(&result).
			Get(fmt.Sprintf("/items/%s/performance", itemID))
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classifyStatus(resp.StatusCode(), parseErrorBody(resp), false)
	}
	result.Raw = json.RawMessage(resp.Body())
	return &result, nil
}

// ==================== 重试与限速 ====================

// doWithRetry 带限速和有界重试的请求执行器
// 重试策略（对齐 §7 错误分级）：
//   - 429：等待 Retry-After（缺省 60s），只重试一次
//   - 503：指数退避 base×2^attempt（封顶），最多 RetryMax 次
//   - 网络故障/超时：与 503 共用同一退避预算
//   - 401 与其他状态：不在此层重试，直接交回调用方分类处理
func (c *Client) doWithRetry(ctx context.Context, auth Auth, call func() (*resty.Response, error)) (*resty.Response, error) {
	rateRetried := false

	for attempt := 0; ; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil, &APIError{Kind: KindNetwork, Message: "请求被取消", Err: err}
		}

		resp, err := call()

		// 传输层故障：有界退避重试
		if err != nil {
			if ctx.Err() != nil {
				return nil, &APIError{Kind: KindNetwork, Message: "请求被取消", Err: ctx.Err()}
			}
			if attempt >= c.cfg.RetryMax {
				return nil, &APIError{Kind: KindNetwork, Message: "网络请求失败，重试预算已耗尽", Err: err}
			}
			if sleepErr := sleepCtx(ctx, c.backoff(attempt)); sleepErr != nil {
				return nil, &APIError{Kind: KindNetwork, Message: "请求被取消", Err: sleepErr}
			}
			continue
		}

		switch resp.StatusCode() {
		case 429:
			// 按上游提示等待后重试一次，第二次仍被限流就上抛
			if rateRetried {
				return resp, nil
			}
			rateRetried = true
			if sleepErr := sleepCtx(ctx, c.retryAfter(resp)); sleepErr != nil {
				return nil, &APIError{Kind: KindNetwork, Message: "请求被取消", Err: sleepErr}
			}
			continue
		case 503:
			if attempt >= c.cfg.RetryMax {
				return resp, nil
			}
			if sleepErr := sleepCtx(ctx, c.backoff(attempt)); sleepErr != nil {
				return nil, &APIError{Kind: KindNetwork, Message: "请求被取消", Err: sleepErr}
			}
			continue
		default:
			return resp, nil
		}
	}
}

// throttle 保证相邻请求的最小间隔
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.MinInterval - time.Since(c.lastCall)
	if wait > 0 {
		c.mu.Unlock()
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		c.mu.Lock()
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
	return nil
}

// backoff 指数退避时长：base × 2^attempt，封顶
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase << uint(attempt)
	if d > c.cfg.BackoffCap || d <= 0 {
		return c.cfg.BackoffCap
	}
	return d
}

// retryAfter 解析 429 响应的 Retry-After 头（秒），缺省用配置值
func (c *Client) retryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.cfg.RateRetryDefault
}

// parseErrorBody 尽力解析错误体，解析失败时保留原始文本
func parseErrorBody(resp *resty.Response) ErrorResp {
	var body ErrorResp
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		body.Message = string(resp.Body())
	}
	body.Status = resp.StatusCode()
	return body
}

// sleepCtx 可取消的 sleep
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
