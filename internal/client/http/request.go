package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

type requestType int

const (
	postRequestType requestType = iota
	getRequestType
)

type actionType int

const (
	assignmentActionType actionType = iota
	bootstrapScriptActionType
)

// assignmentRequest is the body sent to the redirector.
type assignmentRequest struct {
	Key assignmentKey `json:"key"`
}

type assignmentKey struct {
	SystemID string `json:"system_id"`
}

type RequestBuilder struct {
	action      actionType
	requestType requestType
	body        interface{}
	url         string
	header      map[string]string
}

func newRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		header: make(map[string]string),
	}
}

func (rb *RequestBuilder) Type(t requestType) *RequestBuilder {
	rb.requestType = t
	return rb
}

func (rb *RequestBuilder) Action(a actionType) *RequestBuilder {
	rb.action = a
	return rb
}

func (rb *RequestBuilder) Url(url string) *RequestBuilder {
	rb.url = url
	return rb
}

func (rb *RequestBuilder) Body(b interface{}) *RequestBuilder {
	rb.body = b
	return rb
}

func (rb *RequestBuilder) Header(key, value string) *RequestBuilder {
	rb.header[key] = value
	return rb
}

func (rb *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	var method string
	switch rb.requestType {
	case postRequestType:
		method = http.MethodPost
	case getRequestType:
		fallthrough
	default:
		method = http.MethodGet
	}

	var data interface{}

	switch rb.action {
	case assignmentActionType:
		systemID, ok := rb.body.(string)
		if !ok {
			return nil, errors.New("system id is required for this type of request")
		}

		data = assignmentRequest{Key: assignmentKey{SystemID: systemID}}
	case bootstrapScriptActionType:
		data = nil
	default:
		return nil, errors.New("unknown request type")
	}

	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal '%+v' '%w'", data, err)
		}

		body = bytes.NewBuffer(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, rb.url, body)
	if err != nil {
		return nil, fmt.Errorf("cannot create request '%w'", err)
	}

	request.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range rb.header {
		request.Header.Set(k, v)
	}

	return request, nil
}
