// Package activity — client.go ходит в GitLab Events API.
// Один клиент (и один пул соединений http.Client) живёт весь прогон
// и переиспользуется для всех пользователей.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/devscore/internal/common"
)

// ClientConfig — параметры клиента событий.
type ClientConfig struct {
	BaseURL  string        // например https://gitlab.com/api/v4
	Token    string        // bearer-токен
	PerPage  int           // размер страницы, максимум 100
	MaxPages int           // предохранитель от бесконечной пагинации
	Timeout  time.Duration // таймаут одного HTTP-запроса
}

// Client получает постраничные события пользователя. Повторов внутри нет:
// политика повторов — забота вызывающего кода.
type Client struct {
	baseURL  string
	token    string
	perPage  int
	maxPages int
	http     *http.Client
}

// NewClient создаёт клиент. Если httpClient == nil, создаётся свой с таймаутом из cfg.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		perPage:  cfg.PerPage,
		maxPages: cfg.MaxPages,
		http:     httpClient,
	}
}

// Events возвращает ленивую последовательность событий пользователя.
//
// Пагинация идёт по заголовку X-Next-Page и заканчивается, когда:
//   - страница пустая;
//   - заголовок отсутствует или пуст.
//
// Если после MaxPages страниц источник всё ещё отдаёт X-Next-Page, последовательность
// завершается ошибкой ErrFetchFailed: обрезанная лента потеряла бы старые события навсегда.
// При ошибке последовательность отдаёт одну пару (Event{}, err) с ErrFetchFailed и останавливается.
func (c *Client) Events(ctx context.Context, externalID string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		page := 1
		for fetched := 1; ; fetched++ {
			events, next, err := c.fetchPage(ctx, externalID, page)
			if err != nil {
				yield(Event{}, err)
				return
			}
			if len(events) == 0 {
				return
			}
			for _, e := range events {
				if !yield(e, nil) {
					return
				}
			}

			if next == "" {
				return
			}
			n, err := strconv.Atoi(next)
			if err != nil || n <= page {
				yield(Event{}, fmt.Errorf("%w: пользователь %s: некорректный X-Next-Page %q", common.ErrFetchFailed, externalID, next))
				return
			}
			if fetched >= c.maxPages {
				log.WithFields(log.Fields{
					"external_id": externalID,
					"max_pages":   c.maxPages,
				}).Warn("Достигнут лимит страниц, а события ещё есть")
				yield(Event{}, fmt.Errorf("%w: пользователь %s: лента длиннее %d страниц, увеличьте GITLAB_MAX_PAGES",
					common.ErrFetchFailed, externalID, c.maxPages))
				return
			}
			page = n
		}
	}
}

// FetchTally выбирает события пользователя из окна w и сразу классифицирует их.
//
// GitLab отдаёт события от новых к старым, поэтому первое событие не позже
// w.After означает, что дальше только уже учтённые: выборка останавливается.
// Любая ошибка выборки проваливает выборку целиком: частичный подсчёт не возвращается.
func (c *Client) FetchTally(ctx context.Context, externalID string, w Window) (*Tally, error) {
	tally := NewTally(w)
	for e, err := range c.Events(ctx, externalID) {
		if err != nil {
			return nil, err
		}
		if !w.After.IsZero() && !e.CreatedAt.IsZero() && !e.CreatedAt.After(w.After) {
			break
		}
		tally.Add(e)
	}
	return tally, nil
}

// fetchPage запрашивает одну страницу событий.
// Возвращает события и значение X-Next-Page.
func (c *Client) fetchPage(ctx context.Context, externalID string, page int) ([]Event, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(externalID, page), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: пользователь %s: %v", common.ErrFetchFailed, externalID, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: пользователь %s: %w", common.ErrFetchFailed, externalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("%w: пользователь %s: HTTP %d: %s",
			common.ErrFetchFailed, externalID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, "", fmt.Errorf("%w: пользователь %s: ошибка разбора ответа: %v", common.ErrFetchFailed, externalID, err)
	}

	log.WithFields(log.Fields{
		"external_id": externalID,
		"page":        page,
		"events":      len(events),
	}).Debug("Страница событий получена")

	return events, strings.TrimSpace(resp.Header.Get("X-Next-Page")), nil
}

// pageURL собирает {base}/users/{id}/events?per_page=N[&page=n].
func (c *Client) pageURL(externalID string, page int) string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return fmt.Sprintf("%s/users/%s/events?%s", c.baseURL, url.PathEscape(externalID), q.Encode())
}
