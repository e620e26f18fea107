package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// assignmentResponse is the answer of the redirector. Only the fields we need are decoded.
type assignmentResponse []struct {
	Value struct {
		Clusters struct {
			Values []struct {
				Hosts struct {
					Values []string `json:"values"`
				} `json:"hosts"`
			} `json:"values"`
		} `json:"clusters"`
	} `json:"value"`
}

// extractData decodes the response body into T and applies a custom transformation function on it.
func extractData[T, S any](response *http.Response, tranformFunc func(t T) (S, error)) (S, error) {
	var (
		result S
		res    T
	)

	if tranformFunc == nil {
		return result, fmt.Errorf("tranformFunc is missing")
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return result, fmt.Errorf("cannot read response body '%w'", err)
	}

	err = json.Unmarshal(data, &res)
	if err != nil {
		return result, fmt.Errorf("%w: cannot unmarshal body '%s'", ErrInvalidResponse, err)
	}

	// apply custom transformation function on the result
	result, err = tranformFunc(res)
	if err != nil {
		return result, fmt.Errorf("error applying transformation function %w", err)
	}

	return result, nil
}

// firstAssignedHost returns the first host of the first cluster the device is assigned to.
func firstAssignedHost(r assignmentResponse) (string, error) {
	if len(r) == 0 {
		return "", fmt.Errorf("%w: no assignment found", ErrInvalidResponse)
	}

	clusters := r[0].Value.Clusters.Values
	if len(clusters) == 0 {
		return "", fmt.Errorf("%w: assignment has no cluster", ErrInvalidResponse)
	}

	hosts := clusters[0].Hosts.Values
	if len(hosts) == 0 || strings.TrimSpace(hosts[0]) == "" {
		return "", fmt.Errorf("%w: cluster has no host", ErrInvalidResponse)
	}

	return strings.TrimSpace(hosts[0]), nil
}
