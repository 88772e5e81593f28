package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/adshao/go-binance/v2/common"
)

// ErrorKind 传输错误分类
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "Unauthorized"
	KindRateLimited  ErrorKind = "RateLimited"
	KindNetwork      ErrorKind = "NetworkError"
	KindUnknown      ErrorKind = "Unknown"
)

// TransportError 网关请求失败
type TransportError struct {
	Op   string    // account / positions / trades
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s 请求失败 (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// KindOf 返回错误分类，非 TransportError 视为 Unknown
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// 币安错误码，-1100 到 -1130 的参数错误归为 Unknown
const (
	codeTooManyRequests  = -1003
	codeTooManyOrders    = -1015
	codeUnauthorized     = -1002
	codeInvalidSignature = -1022
	codeBadAPIKeyFmt     = -2014
	codeRejectedMbxKey   = -2015
	codeInvalidAPIKey    = -2008
)

// wrapError 对底层错误分类并包装，nil 原样返回
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeUnauthorized, codeInvalidSignature, codeBadAPIKeyFmt, codeRejectedMbxKey, codeInvalidAPIKey:
			return KindUnauthorized
		case codeTooManyRequests, codeTooManyOrders:
			return KindRateLimited
		default:
			return KindUnknown
		}
	}

	// 必须在 net.Error 之前判断，url.Error 也实现了 net.Error
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindUnauthorized
		case http.StatusTooManyRequests, http.StatusTeapot:
			return KindRateLimited
		default:
			return KindUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	return KindUnknown
}
