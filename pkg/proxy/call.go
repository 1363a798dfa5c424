package proxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/clienterr"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/codec"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/contract"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoker holds the state shared by every operation of one client.
type invoker struct {
	identity     string
	target       Target
	base         string
	codec        *codec.Codec
	transport    httpclient.Client
	observer     Observer
	interceptors []Interceptor
	log          Logger
}

// call executes one operation.
type call struct {
	desc   contract.Descriptor
	shared *invoker
}

// typed is the reflect.MakeFunc body installed in the contract's func field.
func (c *call) typed(in []reflect.Value) []reflect.Value {
	var ctx context.Context
	if !in[0].IsNil() {
		ctx = in[0].Interface().(context.Context)
	}
	args := make([]any, len(in)-1)
	for i, v := range in[1:] {
		args[i] = v.Interface()
	}

	val, err := c.invoke(ctx, args)

	errVal := reflect.Zero(errorType)
	if err != nil {
		errVal = reflect.ValueOf(&err).Elem()
	}
	if !c.desc.HasResult() {
		return []reflect.Value{errVal}
	}
	if !val.IsValid() {
		val = reflect.Zero(c.desc.Result)
	}
	return []reflect.Value{val, errVal}
}

func (c *call) invoke(ctx context.Context, args []any) (reflect.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	val, status, err := c.do(ctx, args)
	c.shared.observer.ObserveCall(CallInfo{
		Contract:  c.shared.identity,
		Operation: c.desc.Name,
		Method:    c.desc.Method,
		Status:    status,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		c.shared.log.DebugObj("client call failed", "client_call_error", map[string]any{
			"contract":  c.shared.identity,
			"operation": c.desc.Name,
			"status":    status,
			"error":     err.Error(),
		})
	}
	return val, err
}

func (c *call) do(ctx context.Context, args []any) (reflect.Value, int, error) {
	s := c.shared

	encoded, err := s.codec.Encode(c.desc, args)
	if err != nil {
		return reflect.Value{}, 0, c.fail(err)
	}

	req := &httpclient.Request{
		Method: encoded.Method,
		URL:    encoded.URL(s.base),
		Header: encoded.Header,
		Body:   encoded.Body,
	}
	for key, value := range s.target.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	for _, intercept := range s.interceptors {
		if err := intercept(ctx, req); err != nil {
			return reflect.Value{}, 0, c.fail(fmt.Errorf("interceptor: %w", err))
		}
	}

	if s.target.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.target.Timeout)
		defer cancel()
	}

	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return reflect.Value{}, 0, c.fail(fmt.Errorf("%s %s: %w", req.Method, req.URL, err))
	}

	val, err := s.codec.Decode(c.desc, resp)
	if err != nil {
		var remote *clienterr.RemoteError
		if errors.As(err, &remote) {
			remote.URL = req.URL
			return reflect.Value{}, resp.StatusCode(), remote
		}
		return reflect.Value{}, resp.StatusCode(), c.fail(err)
	}
	return val, resp.StatusCode(), nil
}

func (c *call) fail(err error) error {
	return &clienterr.InvocationError{
		Contract:  c.shared.identity,
		Operation: c.desc.Name,
		Err:       err,
	}
}
