package goTodo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListTodos fetches the caller's list.
func (c *Client) ListTodos(ctx context.Context) (TodoList, error) {
	return c.todoCall(ctx, http.MethodGet, "", nil)
}

// CreateTodo adds an item titled title and returns the updated list.
func (c *Client) CreateTodo(ctx context.Context, title string) (TodoList, error) {
	return c.todoCall(ctx, http.MethodPost, "", map[string]any{"title": title})
}

// DeleteTodo removes item id and returns the updated list.
func (c *Client) DeleteTodo(ctx context.Context, id string) (TodoList, error) {
	return c.todoCall(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil)
}

// CheckTodo sets the done flag of item id and returns the updated list.
func (c *Client) CheckTodo(ctx context.Context, id string, done bool) (TodoList, error) {
	return c.todoCall(ctx, http.MethodPatch, "", map[string]any{"id": id, "done": done})
}

func (c *Client) todoCall(ctx context.Context, method, suffix string, body any) (TodoList, error) {
	if !c.ready() {
		return TodoList{}, ErrClientNotReady
	}
	return handleJSON[TodoList](ctx, c, method, c.config.API.todoPath(suffix), body)
}

// handleJSON runs one authenticated call through Handle and decodes the
// success payload into T.
func handleJSON[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var (
		out       T
		decodeErr error
	)
	res := c.Handle(ctx, func(ctx context.Context) Result {
		return c.Send(ctx, method, path, body)
	}, func(payload json.RawMessage) {
		if err := json.Unmarshal(payload, &out); err != nil {
			decodeErr = fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}, nil)
	if !res.OK() {
		var zero T
		return zero, res.Err
	}
	if decodeErr != nil {
		var zero T
		return zero, decodeErr
	}
	return out, nil
}
