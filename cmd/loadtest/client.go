package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient вызывает REST API сервиса заказов и пишет каждый вызов в collector.
type apiClient struct {
	baseURL string
	http    *http.Client
	col     *collector
}

type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.op, e.status, e.body)
}

func (c *apiClient) do(ctx context.Context, op, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(op, time.Since(started), 0, false)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.col.record(op, time.Since(started), resp.StatusCode, resp.StatusCode == want)

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{op: op, status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

type created struct {
	ID int64 `json:"id"`
}

func (c *apiClient) createCustomer(ctx context.Context, email string) (int64, error) {
	var out created
	err := c.do(ctx, "CreateCustomer", http.MethodPost, "/api/customers",
		map[string]any{"name": "Load Test", "email": email, "phone": 5550000}, http.StatusCreated, &out)
	return out.ID, err
}

func (c *apiClient) createProduct(ctx context.Context, name, price string) (int64, error) {
	var out created
	err := c.do(ctx, "CreateProduct", http.MethodPost, "/api/products",
		map[string]any{"name": name, "price": price}, http.StatusCreated, &out)
	return out.ID, err
}

func (c *apiClient) createOrder(ctx context.Context, customerID, productID int64, qty int) (int64, error) {
	var out created
	err := c.do(ctx, "CreateOrder", http.MethodPost, "/api/orders", map[string]any{
		"customerId": customerID,
		"items":      []map[string]any{{"productId": productID, "quantity": qty}},
	}, http.StatusCreated, &out)
	return out.ID, err
}

func (c *apiClient) updateStatus(ctx context.Context, orderID int64, status string) error {
	return c.do(ctx, "UpdateOrderStatus", http.MethodPatch,
		fmt.Sprintf("/api/orders/%d/status?status=%s", orderID, status), nil, http.StatusOK, nil)
}

func (c *apiClient) deleteOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, "DeleteOrder", http.MethodDelete, fmt.Sprintf("/api/orders/%d", orderID), nil, http.StatusNoContent, nil)
}
