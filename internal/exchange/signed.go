package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
)

const userTradesEndpoint = "/fapi/v1/userTrades"

// HTTPStatusError 响应体不是币安错误格式时，保留 HTTP 状态码用于分类
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// parseAPIError 响应体是币安错误格式时返回 APIError
func parseAPIError(data []byte) (*common.APIError, bool) {
	apiErr := new(common.APIError)
	if json.Unmarshal(data, apiErr) != nil || !apiErr.IsValid() {
		return nil, false
	}
	return apiErr, true
}

// statusTransport 把无法解析的 4xx/5xx 响应转换为 HTTPStatusError
// SDK 遇到这类响应只返回空的 APIError，状态码会丢失
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil || res.StatusCode < http.StatusBadRequest {
		return res, err
	}

	data, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, err
	}

	if _, ok := parseAPIError(data); !ok {
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(data)}
	}

	res.Body = io.NopCloser(bytes.NewReader(data))
	return res, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Transport: &statusTransport{base: http.DefaultTransport}}
}

// signedGet 发送签名 GET 请求并解析 JSON 响应
// 用于 SDK 服务无法表达的请求，例如不带 symbol 的成交查询
func (b *BinanceGateway) signedGet(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("recvWindow", strconv.FormatInt(b.recvWindow, 10))
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli()-b.client.TimeOffset, 10))

	keyType := b.client.KeyType
	if keyType == "" {
		keyType = common.KeyTypeHmac
	}
	sign, err := common.SignFunc(keyType)
	if err != nil {
		return err
	}

	query := params.Encode()
	signature, err := sign(b.client.SecretKey, query)
	if err != nil {
		return fmt.Errorf("请求签名失败: %w", err)
	}
	query += "&signature=" + url.QueryEscape(*signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.client.BaseURL+endpoint+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", b.client.APIKey)

	httpClient := b.client.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		if apiErr, ok := parseAPIError(data); ok {
			return apiErr
		}
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
