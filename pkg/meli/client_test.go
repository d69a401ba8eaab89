package meli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// ==================== 测试辅助 ====================

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:          baseURL,
		Timeout:          2 * time.Second,
		MinInterval:      time.Millisecond,
		RetryMax:         3,
		BackoffBase:      time.Millisecond,
		BackoffCap:       20 * time.Millisecond,
		RateRetryDefault: 50 * time.Millisecond,
	})
}

var testAuth = Auth{SellerID: 123, AccessToken: "test-token"}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ==================== 搜索 ====================

func TestSearchPage_OffsetMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/123/items/search" {
			t.Errorf("请求路径 = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "50" {
			t.Errorf("offset = %s, want 50", got)
		}
		if r.URL.Query().Get("search_type") != "" {
			t.Error("普通分页不应携带 search_type")
		}
		writeJSON(w, 200, SearchResp{
			Results: []string{"CBT1", "CBT2"},
			Paging:  PagingDTO{Total: 300, Offset: 50, Limit: 50},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	page, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Offset: 50, Limit: 50})
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	if len(page.IDs) != 2 {
		t.Errorf("len(IDs) = %d, want 2", len(page.IDs))
	}
	if page.Total != 300 {
		t.Errorf("Total = %d, want 300", page.Total)
	}
}

func TestSearchPage_ScanMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("search_type") != "scan" {
			t.Error("scan 模式应携带 search_type=scan")
		}
		if q.Get("scroll_id") != "token-a" {
			t.Errorf("scroll_id = %s, want token-a", q.Get("scroll_id"))
		}
		writeJSON(w, 200, SearchResp{
			Results:  []string{"CBT3"},
			ScrollID: "token-b",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	page, err := client.SearchPage(context.Background(), testAuth, SearchQuery{
		UseScan: true, ScrollID: "token-a", Limit: 50,
	})
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	if page.ScrollID != "token-b" {
		t.Errorf("ScrollID = %s, want token-b", page.ScrollID)
	}
}

func TestSearchPage_ValidationErrors(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")

	_, err := client.SearchPage(context.Background(), Auth{SellerID: 0, AccessToken: "x"}, SearchQuery{})
	if !IsKind(err, KindValidation) {
		t.Errorf("无效卖家 ID 应返回 validation 错误, got %v", err)
	}

	_, err = client.SearchPage(context.Background(), Auth{SellerID: 1}, SearchQuery{})
	if !IsKind(err, KindValidation) {
		t.Errorf("缺少凭证应返回 validation 错误, got %v", err)
	}
}

// ==================== 错误分类 ====================

func TestSearchPage_CredentialExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, ErrorResp{Message: "invalid access token", ErrorCode: "invalid_token"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50})
	if !IsKind(err, KindCredentialExpired) {
		t.Errorf("401 应分类为 credential_expired, got %v", err)
	}
}

func TestSearchPage_CursorExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, ErrorResp{Message: "scroll id expired", ErrorCode: "invalid_scroll_id"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(context.Background(), testAuth, SearchQuery{
		UseScan: true, ScrollID: "stale-token", Limit: 50,
	})
	if !IsKind(err, KindCursorExpired) {
		t.Errorf("scan 模式游标类 400 应分类为 cursor_expired, got %v", err)
	}
}

func TestSearchPage_OffsetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, ErrorResp{Message: "offset too large", ErrorCode: "max_offset_exceeded"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	page, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Offset: 10000, Limit: 50})
	if err != nil {
		t.Fatalf("offset 触顶不应返回错误, got %v", err)
	}
	if !page.PaginationLimitReached {
		t.Error("offset 触顶应打 PaginationLimitReached 标记")
	}
	if len(page.IDs) != 0 {
		t.Errorf("触顶页不应有结果, got %d", len(page.IDs))
	}
}

func TestSearchPage_ScanModeOffsetErrorNotExhausted(t *testing.T) {
	// scan 模式没有 offset 的概念，同样的错误码不应解释为触顶
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, ErrorResp{Message: "bad request", ErrorCode: "max_offset_exceeded"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(context.Background(), testAuth, SearchQuery{UseScan: true, Limit: 50})
	if err == nil {
		t.Fatal("scan 模式下应返回错误")
	}
	if IsKind(err, KindPaginationExhausted) {
		t.Error("scan 模式不应分类为 pagination_exhausted")
	}
}

// ==================== 重试 ====================

func TestDoWithRetry_RateLimitedOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, 429, ErrorResp{Message: "too many requests"})
			return
		}
		writeJSON(w, 200, SearchResp{Results: []string{"CBT1"}})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	start := time.Now()
	page, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50})
	if err != nil {
		t.Fatalf("429 后重试应成功, got %v", err)
	}
	if len(page.IDs) != 1 {
		t.Errorf("len(IDs) = %d, want 1", len(page.IDs))
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("应等待默认限流间隔后重试, elapsed = %v", elapsed)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("请求次数 = %d, want 2", calls)
	}
}

func TestDoWithRetry_RateLimitedTwiceFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 429, ErrorResp{Message: "too many requests"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50})
	if !IsKind(err, KindRateLimited) {
		t.Errorf("连续两次 429 应上抛 rate_limited, got %v", err)
	}
}

func TestDoWithRetry_RetryAfterHeader(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, 429, ErrorResp{Message: "too many requests"})
			return
		}
		writeJSON(w, 200, SearchResp{Results: []string{"CBT1"}})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	start := time.Now()
	if _, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50}); err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("应按 Retry-After 头等待, elapsed = %v", elapsed)
	}
}

func TestDoWithRetry_ServiceUnavailableBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			writeJSON(w, 503, ErrorResp{Message: "service unavailable"})
			return
		}
		writeJSON(w, 200, SearchResp{Results: []string{"CBT1"}})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	page, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50})
	if err != nil {
		t.Fatalf("503 退避重试后应成功, got %v", err)
	}
	if len(page.IDs) != 1 {
		t.Errorf("len(IDs) = %d, want 1", len(page.IDs))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("请求次数 = %d, want 3", calls)
	}
}

func TestDoWithRetry_ServiceUnavailableExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 503, ErrorResp{Message: "service unavailable"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(context.Background(), testAuth, SearchQuery{Limit: 50})
	if !IsKind(err, KindServiceUnavailable) {
		t.Errorf("退避预算耗尽应上抛 service_unavailable, got %v", err)
	}
}

func TestDoWithRetry_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		writeJSON(w, 429, ErrorResp{Message: "too many requests"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(srv.URL)
	_, err := client.SearchPage(ctx, testAuth, SearchQuery{Limit: 50})
	if err == nil {
		t.Fatal("context 取消后应返回错误")
	}
	if !IsKind(err, KindNetwork) {
		t.Errorf("取消应分类为 network, got %v", err)
	}
}

// ==================== 批量详情 ====================

func TestFetchDetails_Chunking(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		batches = append(batches, ids)

		results := make([]BulkResult, 0, len(ids))
		for _, id := range ids {
			body, _ := json.Marshal(ItemDetailDTO{ID: id, Title: "t", Status: "active"})
			results = append(results, BulkResult{Code: 200, Body: body})
		}
		writeJSON(w, 200, results)
	}))
	defer srv.Close()

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("CBT%03d", i)
	}

	client := newTestClient(srv.URL)
	results, err := client.FetchDetails(context.Background(), testAuth, ids)
	if err != nil {
		t.Fatalf("FetchDetails() error = %v", err)
	}
	if len(results) != 45 {
		t.Errorf("len(results) = %d, want 45", len(results))
	}
	if len(batches) != 3 {
		t.Fatalf("请求批次 = %d, want 3", len(batches))
	}
	for i, b := range batches {
		if len(b) > BulkLimit {
			t.Errorf("第 %d 批大小 = %d, 超过上限 %d", i, len(b), BulkLimit)
		}
	}
	if len(batches[2]) != 5 {
		t.Errorf("末批大小 = %d, want 5", len(batches[2]))
	}
}

func TestFetchDetails_Empty(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	results, err := client.FetchDetails(context.Background(), testAuth, nil)
	if err != nil || results != nil {
		t.Errorf("空 ID 列表应直接返回, results = %v, err = %v", results, err)
	}
}

func TestFetchDetails_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		results := make([]BulkResult, 0, len(ids))
		for i, id := range ids {
			if i == 1 {
				results = append(results, BulkResult{Code: 404, Body: json.RawMessage(`{"message":"not found"}`)})
				continue
			}
			body, _ := json.Marshal(ItemDetailDTO{ID: id, Status: "active"})
			results = append(results, BulkResult{Code: 200, Body: body})
		}
		writeJSON(w, 200, results)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	results, err := client.FetchDetails(context.Background(), testAuth, []string{"CBT1", "CBT2", "CBT3"})
	if err != nil {
		t.Fatalf("单条失败不应中断整批, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[1].Code != 404 {
		t.Errorf("results[1].Code = %d, want 404", results[1].Code)
	}
}

// ==================== CBT 扩展接口 ====================

func TestMarketplaceItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/CBT100/marketplace_items" {
			t.Errorf("请求路径 = %s", r.URL.Path)
		}
		writeJSON(w, 200, MarketplaceItemsResp{
			MarketplaceItems: []MarketplaceItemDTO{
				{ItemID: "MLM200", SiteID: "MLM", DateCreated: "2026-08-01T10:00:00Z"},
				{ItemID: "MLB300", SiteID: "MLB", DateCreated: "2026-08-02T10:00:00Z"},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.MarketplaceItems(context.Background(), testAuth, "CBT100")
	if err != nil {
		t.Fatalf("MarketplaceItems() error = %v", err)
	}
	if len(resp.MarketplaceItems) != 2 {
		t.Errorf("站点数 = %d, want 2", len(resp.MarketplaceItems))
	}
	if resp.MarketplaceItems[0].SiteID != "MLM" {
		t.Errorf("SiteID = %s, want MLM", resp.MarketplaceItems[0].SiteID)
	}
}

func TestPerformance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, PerformanceResp{
			ItemID: "MLM200", Score: 4.5, Level: "good", LevelWording: "表现良好",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	perf, err := client.Performance(context.Background(), testAuth, "MLM200")
	if err != nil {
		t.Fatalf("Performance() error = %v", err)
	}
	if perf.Score != 4.5 {
		t.Errorf("Score = %v, want 4.5", perf.Score)
	}
	if len(perf.Raw) == 0 {
		t.Error("应保留原始质量分报文")
	}
}
