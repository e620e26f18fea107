package resolver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tupyy/ztp-bootstrap/internal/address"
	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"github.com/tupyy/ztp-bootstrap/internal/region"
	"github.com/tupyy/ztp-bootstrap/internal/resolver"
)

// rewriteTransport sends every request to the test server, keeping the original Host header.
type rewriteTransport struct {
	target *url.URL

	lock  sync.Mutex
	hosts []string
}

func (t *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.lock.Lock()
	t.hosts = append(t.hosts, r.URL.Host)
	t.lock.Unlock()

	r = r.Clone(r.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host

	return http.DefaultTransport.RoundTrip(r)
}

// fakeRedirector assigns every device to the cluster found in assignments for the queried host.
type fakeRedirector struct {
	token       string
	assignments map[string]string
	delay       time.Duration
}

func (f *fakeRedirector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != address.RedirectorPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if f.delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(f.delay):
		}
	}

	if r.Header.Get("redirector_token") != f.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var body struct {
		Key struct {
			SystemID string `json:"system_id"`
		} `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Key.SystemID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	host, ok := f.assignments[r.Host]
	if !ok {
		host = r.Host
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `[{"value":{"key":{"system_id":%q},"clusters":{"values":[{"hosts":{"values":[%q]}}]}}}]`, body.Key.SystemID, host)
}

var _ = Describe("resolver over http", func() {
	var (
		server     *httptest.Server
		redirector *fakeRedirector
		transport  *rewriteTransport
		req        entity.EnrollmentRequest
	)

	newResolver := func(timeout time.Duration, opts ...resolver.Option) *resolver.Resolver {
		c, err := httpClient.New(httpClient.WithTransport(transport), httpClient.WithTimeout(timeout))
		Expect(err).To(BeNil())
		return resolver.New(c, append(opts, resolver.WithTimeout(timeout))...)
	}

	BeforeEach(func() {
		redirector = &fakeRedirector{
			token: "good-token",
			assignments: map[string]string{
				region.GenericEntry: "www.cv-prod-na-northeast1-b.arista.io",
			},
		}
		server = httptest.NewServer(redirector)

		target, err := url.Parse(server.URL)
		Expect(err).To(BeNil())
		transport = &rewriteTransport{target: target}

		req = entity.EnrollmentRequest{
			EntryAddress: "www.arista.io",
			Token:        "good-token",
			SystemID:     "JPE12345678",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	It("follows the redirector to the regional cluster", func() {
		result, err := newResolver(time.Second).Resolve(context.TODO(), req)
		Expect(err).To(BeNil())
		Expect(result.Endpoint.Name).To(Equal("Canada"))
		Expect(result.Hops).To(Equal(1))
		Expect(result.EnrollAddress).To(Equal("apiserver.cv-prod-na-northeast1-b.arista.io:443"))
		Expect(transport.hosts).To(Equal([]string{"www.arista.io", "www.cv-prod-na-northeast1-b.arista.io"}))
	})

	It("fails on a redirect cycle", func() {
		redirector.assignments["www.cv-prod-na-northeast1-b.arista.io"] = "www.arista.io"

		_, err := newResolver(time.Second).Resolve(context.TODO(), req)
		Expect(resolver.KindOf(err)).To(Equal(resolver.RedirectLoop))
	})

	It("reports a rejected token", func() {
		req.Token = "bad-token"

		result, err := newResolver(time.Second).Resolve(context.TODO(), req)
		Expect(resolver.KindOf(err)).To(Equal(resolver.TokenRejected))
		Expect(result.Kind).To(Equal("TokenRejected"))
	})

	It("times out instead of hanging", func() {
		redirector.delay = 5 * time.Second

		start := time.Now()
		_, err := newResolver(100 * time.Millisecond).Resolve(context.TODO(), req)
		Expect(resolver.KindOf(err)).To(Equal(resolver.Timeout))
		Expect(time.Since(start)).To(BeNumerically("<", 3*time.Second))
	})

	It("reports an unreachable network", func() {
		server.Close()

		_, err := newResolver(time.Second).Resolve(context.TODO(), req)
		Expect(resolver.KindOf(err)).To(Equal(resolver.NetworkUnreachable))
	})

	It("does not touch the network for a malformed address", func() {
		req.EntryAddress = "arista.io"

		_, err := newResolver(time.Second).Resolve(context.TODO(), req)
		Expect(resolver.KindOf(err)).To(Equal(resolver.MalformedAddress))
		Expect(transport.hosts).To(BeEmpty())
	})
})
