package grocy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/observability"
)

const apiKeyHeader = "GROCY-API-KEY"

// Client is an HTTP implementation of API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	limiter     *rate.Limiter
	maxAttempts int
	newBackOff  func() backoff.BackOff
	loc         *time.Location
	tracer      trace.Tracer
	lg          zerolog.Logger
}

var _ API = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles outgoing requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets how many attempts idempotent reads get.
func WithRetries(attempts int) Option {
	return func(c *Client) {
		if attempts >= 1 {
			c.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the retry policy for reads. newBackOff is called once per
// request since BackOff implementations carry state.
func WithBackoff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

// WithLocation sets the zone Grocy timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewClient returns a client for the Grocy instance at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		limiter:     rate.NewLimiter(rate.Limit(10), 20),
		maxAttempts: 3,
		newBackOff:  defaultBackOff,
		loc:         time.Local,
		tracer:      otel.Tracer("grocy"),
		lg:          log.With().Str("component", "grocy").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// defaultBackOff doubles a jittered 500ms pause up to 10s.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Second
	return b
}

// statusError carries an unexpected HTTP status and a clipped body.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// do executes one API call. Reads (retry=true) are retried on transport
// errors and 5xx responses; mutations are sent exactly once.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, retry bool) error {
	ctx, span := c.tracer.Start(ctx, "grocy."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("grocy.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.doAttempts(ctx, op, method, path, query, body, out, retry)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.GrocyRequestSeconds.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) doAttempts(ctx context.Context, op, method, path string, query url.Values, body, out any, retry bool) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("grocy %s: encode body: %w", op, err)
		}
		payload = b
	}

	attempts := uint(1)
	if retry {
		attempts = uint(c.maxAttempts)
	}

	var attempt int
	attemptOnce := func() (struct{}, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("grocy %s: rate limiter: %w", op, err))
		}

		respBody, status, err := c.roundTrip(ctx, method, reqURL, payload)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			return struct{}{}, fmt.Errorf("%w: %s: %v", ErrAPIFailure, op, err)
		}

		switch {
		case status == http.StatusNotFound:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, op))
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrUnauthorized, op))
		case status >= 500:
			return struct{}{}, fmt.Errorf("%w: %s: %w", ErrAPIFailure, op, &statusError{status: status, body: truncate(string(respBody), 256)})
		case status < 200 || status >= 300:
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrAPIFailure, op, &statusError{status: status, body: truncate(string(respBody), 256)}))
		}

		if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
			return struct{}{}, nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrDecode, op, err))
		}
		c.lg.Debug().Str("op", op).Int("attempt", attempt).Msg("grocy request ok")
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, attemptOnce,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.lg.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("backoff", wait).Msg("retrying grocy request")
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, reqURL string, payload []byte) ([]byte, int, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, out, true)
}

func (c *Client) post(ctx context.Context, op, path string, body any) error {
	return c.do(ctx, op, http.MethodPost, path, nil, body, nil, false)
}

// Chores lists all chores with their next estimated execution time.
func (c *Client) Chores(ctx context.Context) ([]domain.Chore, error) {
	var dtos []choreDTO
	if err := c.get(ctx, OpChores, "/api/chores", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Chore, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(c.loc))
	}
	return out, nil
}

// Chore returns the details of a single chore.
func (c *Client) Chore(ctx context.Context, id int) (*domain.Chore, error) {
	var d choreDetailsDTO
	if err := c.get(ctx, OpChore, "/api/chores/"+strconv.Itoa(id), nil, &d); err != nil {
		return nil, err
	}
	ch := &domain.Chore{
		ID:                         int(d.Chore.ID),
		Name:                       d.Chore.Name,
		LastTrackedTime:            parseTimePtr(d.LastTracked, c.loc),
		NextEstimatedExecutionTime: parseTimePtr(d.NextEstimatedExecutionTime, c.loc),
	}
	if ch.ID == 0 {
		ch.ID = id
	}
	return ch, nil
}

// Stock lists every product currently in stock.
func (c *Client) Stock(ctx context.Context) ([]domain.Product, error) {
	var dtos []stockDTO
	if err := c.get(ctx, OpStock, "/api/stock", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(c.loc))
	}
	return out, nil
}

// Products lists the product catalogue (amounts are not populated).
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	if err := c.get(ctx, OpProducts, "/api/objects/products", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, domain.Product{ID: int(d.ID), Name: d.Name})
	}
	return out, nil
}

// Product returns stock details for one product.
func (c *Client) Product(ctx context.Context, id int) (*domain.Product, error) {
	var d stockDetailsDTO
	if err := c.get(ctx, OpProduct, "/api/stock/products/"+strconv.Itoa(id), nil, &d); err != nil {
		return nil, err
	}
	p := &domain.Product{
		ID:              int(d.Product.ID),
		Name:            d.Product.Name,
		AvailableAmount: float64(d.StockAmount),
	}
	if p.ID == 0 {
		p.ID = id
	}
	due := d.NextDueDate
	if due == "" {
		due = d.NextBestBeforeDate
	}
	if t, ok := parseTime(due, c.loc); ok {
		p.BestBeforeDate = t
	}
	return p, nil
}

// VolatileStock lists expiring, expired and missing products.
func (c *Client) VolatileStock(ctx context.Context, dueSoonDays int) ([]domain.VolatileProduct, error) {
	q := url.Values{}
	q.Set("due_soon_days", strconv.Itoa(dueSoonDays))
	var d volatileDTO
	if err := c.get(ctx, OpVolatileStock, "/api/stock/volatile", q, &d); err != nil {
		return nil, err
	}
	return d.toDomain(c.loc), nil
}

func (c *Client) volatileByStatus(ctx context.Context, dueSoonDays int, status domain.ProductStatus) ([]domain.Product, error) {
	items, err := c.VolatileStock(ctx, dueSoonDays)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(items))
	for _, it := range items {
		if it.Status == status {
			out = append(out, it.Product)
		}
	}
	return out, nil
}

// ExpiringProducts lists products due within dueSoonDays.
func (c *Client) ExpiringProducts(ctx context.Context, dueSoonDays int) ([]domain.Product, error) {
	return c.volatileByStatus(ctx, dueSoonDays, domain.StatusExpiring)
}

// ExpiredProducts lists products past their best-before date.
func (c *Client) ExpiredProducts(ctx context.Context) ([]domain.Product, error) {
	return c.volatileByStatus(ctx, domain.DefaultDueSoonDays, domain.StatusExpired)
}

// MissingProducts lists products below their minimum stock amount.
func (c *Client) MissingProducts(ctx context.Context) ([]domain.Product, error) {
	return c.volatileByStatus(ctx, domain.DefaultDueSoonDays, domain.StatusMissing)
}

// ShoppingList returns the open items of all shopping lists with their
// products resolved.
func (c *Client) ShoppingList(ctx context.Context) ([]domain.ShoppingListItem, error) {
	var dtos []shoppingListDTO
	if err := c.get(ctx, OpShoppingList, "/api/objects/shopping_list", nil, &dtos); err != nil {
		return nil, err
	}
	products, err := c.Products(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]domain.ShoppingListItem, 0, len(dtos))
	for _, d := range dtos {
		if d.Done != 0 {
			continue
		}
		item := domain.ShoppingListItem{
			ID:             int(d.ID),
			ProductID:      int(d.ProductID),
			ShoppingListID: int(d.ShoppingListID),
			Amount:         float64(d.Amount),
			Note:           d.Note,
		}
		if p, ok := byID[item.ProductID]; ok {
			p := p
			item.Product = &p
		}
		out = append(out, item)
	}
	return out, nil
}

// Tasks lists open tasks.
func (c *Client) Tasks(ctx context.Context) ([]domain.Task, error) {
	var dtos []taskDTO
	if err := c.get(ctx, OpTasks, "/api/tasks", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, domain.Task{
			ID:      int(d.ID),
			Name:    d.Name,
			DueDate: parseTimePtr(d.DueDate, c.loc),
			Done:    d.Done != 0,
		})
	}
	return out, nil
}

// LastDBChanged returns the time of the last write to the Grocy database.
func (c *Client) LastDBChanged(ctx context.Context) (time.Time, error) {
	var d dbChangedDTO
	if err := c.get(ctx, OpLastDBChanged, "/api/system/db-changed-time", nil, &d); err != nil {
		return time.Time{}, err
	}
	t, ok := parseTime(d.ChangedTime, c.loc)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: last_db_changed: %q", ErrDecode, d.ChangedTime)
	}
	return t, nil
}

// AddProduct books amount units of a product into stock.
func (c *Client) AddProduct(ctx context.Context, productID int, amount float64, bestBefore time.Time) error {
	if bestBefore.IsZero() {
		bestBefore = domain.NeverExpires
	}
	return c.post(ctx, OpAddProduct, "/api/stock/products/"+strconv.Itoa(productID)+"/add", addProductRequest{
		Amount:          amount,
		BestBeforeDate:  bestBefore.Format(layoutDate),
		TransactionType: "purchase",
	})
}

// AddProductToShoppingList puts amount units of a product on a list.
func (c *Client) AddProductToShoppingList(ctx context.Context, productID, listID int, amount float64) error {
	return c.post(ctx, OpAddProductToShoppingList, "/api/stock/shoppinglist/add-product", shoppingListProductRequest{
		ProductID: productID, ListID: listID, ProductAmount: amount,
	})
}

// RemoveProductInShoppingList takes amount units of a product off a list.
func (c *Client) RemoveProductInShoppingList(ctx context.Context, productID, listID int, amount float64) error {
	return c.post(ctx, OpRemoveProductInShoppingList, "/api/stock/shoppinglist/remove-product", shoppingListProductRequest{
		ProductID: productID, ListID: listID, ProductAmount: amount,
	})
}

// AddMissingProductsToShoppingList adds every product below its minimum
// stock amount to a list.
func (c *Client) AddMissingProductsToShoppingList(ctx context.Context, listID int) error {
	return c.post(ctx, OpAddMissingProductsToShoppingList, "/api/stock/shoppinglist/add-missing-products", shoppingListRequest{
		ListID: listID,
	})
}

// IsNotFound reports whether err is a Grocy 404.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
