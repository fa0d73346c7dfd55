package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/soc-dashboard/internal/domain"
)

// maxPayloadSize ограничивает тело ответа (защита от бесконечного стрима).
const maxPayloadSize = 32 << 20

// RemoteSource забирает ресурс по HTTP GET.
type RemoteSource struct {
	url    string
	client *http.Client
}

func NewRemoteSource(url string, client *http.Client) *RemoteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSource{url: url, client: client}
}

func (s *RemoteSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// Данные пайплайна меняются после каждого скана, промежуточные кэши не нужны
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Дочитываем тело, чтобы соединение вернулось в пул
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

		statusErr := &StatusError{URL: s.url, Code: resp.StatusCode}
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return nil, &ThrottleError{RetryAfter: d, Cause: statusErr}
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", s.url, err)
	}
	return body, nil
}

func (s *RemoteSource) Describe() string      { return s.url }
func (s *RemoteSource) Origin() domain.Origin { return domain.OriginRemote }

// retryAfter понимает оба формата заголовка: секунды и HTTP-дату.
func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(header); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
