package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize はレスポンスボディの最大読み取りサイズ（1MB）。
const maxResponseSize = 1 << 20

// postJSON はbodyをJSONとしてPOSTし、2xxレスポンスのボディを返す。
// ネットワークエラーとコンテキストのタイムアウトはErrUnavailableとして返す。
func postJSON(ctx context.Context, client *http.Client, service, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Wearly/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, service, err)
	}
	defer resp.Body.Close()

	if err := statusError(service, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, service, err)
		}
		return nil, fmt.Errorf("%w: %s: レスポンスボディの読み取りに失敗しました: %v", ErrMalformedResponse, service, err)
	}
	return data, nil
}
