package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/adapter/http/middleware"
)

type cli struct {
	v   *viper.Viper
	out io.Writer
}

// apiError is a non-2xx answer from the API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
}

// call sends body as JSON and pretty prints the response. POSTs carry an
// Idempotency-Key, generated when idemKey is empty.
func (c *cli) call(ctx context.Context, method, path string, query url.Values, body any, idemKey string) error {
	ctx, cancel := context.WithTimeout(ctx, c.v.GetDuration("timeout"))
	defer cancel()

	target := strings.TrimRight(c.v.GetString("url"), "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		req.Header.Set(middleware.IdempotencyKeyHeader, idemKey)
	}
	c.setIdentity(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		var payload dto.ErrorResponse
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code, apiErr.Message = payload.Error, payload.Message
		}
		return apiErr
	}

	return c.printRaw(raw)
}

func (c *cli) setIdentity(req *http.Request) {
	if token := c.v.GetString("token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		return
	}
	if user := c.v.GetString("user"); user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	if role := c.v.GetString("role"); role != "" {
		req.Header.Set(middleware.UserRoleHeader, role)
	}
	if bank := c.v.GetString("bank"); bank != "" {
		req.Header.Set(middleware.BankIDHeader, bank)
	}
}

func (c *cli) printRaw(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = c.out.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(c.out)
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
