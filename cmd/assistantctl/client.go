package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiFlag).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
}

// call runs one request and returns the raw body, turning non-2xx statuses
// into errors with the body attached.
func call(req func(c *resty.Client) (*resty.Response, error)) ([]byte, error) {
	resp, err := req(apiClient())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}
