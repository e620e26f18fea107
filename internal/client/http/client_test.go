package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
)

const redirectorPath = "/api/v3/services/arista.redirector.v1.AssignmentService/GetOne"

func assignmentBody(host string) string {
	return fmt.Sprintf(`[{"value":{"key":{"system_id":"SN1"},"clusters":{"values":[{"name":"uk","hosts":{"values":["%s"]}}]}}}]`, host)
}

var _ = Describe("http client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		client  *httpClient.Client
	)

	BeforeEach(func() {
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))

		var err error
		client, err = httpClient.New(httpClient.WithTimeout(time.Second))
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		server.Close()
	})

	Context("assignment", func() {
		It("returns the assigned host", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()

				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal(redirectorPath))
				Expect(r.Header.Get("redirector_token")).To(Equal("my-token"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(r.Header.Get("X-Request-ID")).ToNot(BeEmpty())

				var body map[string]map[string]string
				data, _ := io.ReadAll(r.Body)
				Expect(json.Unmarshal(data, &body)).To(Succeed())
				Expect(body["key"]["system_id"]).To(Equal("SN1"))

				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, assignmentBody("www.cv-prod-uk-1.arista.io"))
			}

			a, err := client.GetAssignment(context.TODO(), server.URL+redirectorPath, "my-token", "SN1")
			Expect(err).To(BeNil())
			Expect(a.Host).To(Equal("www.cv-prod-uk-1.arista.io"))
			Expect(a.Location).To(BeEmpty())
		})

		It("returns the location of an http redirect without following it", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "https://www.cv-prod-euwest-2.arista.io"+redirectorPath, http.StatusTemporaryRedirect)
			}

			a, err := client.GetAssignment(context.TODO(), server.URL+redirectorPath, "my-token", "SN1")
			Expect(err).To(BeNil())
			Expect(a.Host).To(BeEmpty())
			Expect(a.Location).To(Equal("https://www.cv-prod-euwest-2.arista.io" + redirectorPath))
		})

		It("reports a rejected token", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
			}

			_, err := client.GetAssignment(context.TODO(), server.URL+redirectorPath, "bad", "SN1")
			Expect(err).ToNot(BeNil())
			Expect(httpClient.IsUnauthorized(err)).To(BeTrue())

			var statusErr *httpClient.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(http.StatusUnauthorized))
			Expect(statusErr.Message).To(Equal("invalid token"))
		})

		It("reports other status codes", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			_, err := client.GetAssignment(context.TODO(), server.URL+redirectorPath, "t", "SN1")
			Expect(err).ToNot(BeNil())
			Expect(httpClient.IsUnauthorized(err)).To(BeFalse())
		})

		DescribeTable("rejects invalid bodies",
			func(body string) {
				handler = func(w http.ResponseWriter, r *http.Request) {
					fmt.Fprint(w, body)
				}

				_, err := client.GetAssignment(context.TODO(), server.URL+redirectorPath, "t", "SN1")
				Expect(errors.Is(err, httpClient.ErrInvalidResponse)).To(BeTrue())
			},
			Entry("not json", "<html></html>"),
			Entry("no assignment", "[]"),
			Entry("no cluster", `[{"value":{"clusters":{"values":[]}}}]`),
			Entry("no host", `[{"value":{"clusters":{"values":[{"hosts":{"values":[]}}]}}}]`),
		)

		It("times out", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			}

			c, err := httpClient.New(httpClient.WithTimeout(100 * time.Millisecond))
			Expect(err).To(BeNil())

			_, err = c.GetAssignment(context.TODO(), server.URL+redirectorPath, "t", "SN1")
			Expect(err).ToNot(BeNil())

			var netErr net.Error
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(netErr.Timeout()).To(BeTrue())
		})
	})

	Context("bootstrap script", func() {
		It("downloads the script with the device headers", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()

				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.URL.Path).To(Equal("/ztp/bootstrap"))
				Expect(r.Header.Get("X-Arista-Serial")).To(Equal("SN1"))

				w.Header().Set("Content-Type", "text/x-shellscript")
				fmt.Fprint(w, "#!/bin/sh\necho hello\n")
			}

			script, err := client.GetBootstrapScript(context.TODO(), server.URL+"/ztp/bootstrap", map[string]string{"X-Arista-Serial": "SN1"})
			Expect(err).To(BeNil())
			Expect(string(script)).To(Equal("#!/bin/sh\necho hello\n"))
		})

		It("fails on error status", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			}

			_, err := client.GetBootstrapScript(context.TODO(), server.URL+"/ztp/bootstrap", nil)
			var statusErr *httpClient.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(http.StatusNotFound))
		})

		It("fails on empty script", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {}

			_, err := client.GetBootstrapScript(context.TODO(), server.URL+"/ztp/bootstrap", nil)
			Expect(errors.Is(err, httpClient.ErrInvalidResponse)).To(BeTrue())
		})
	})

	It("rejects bad options", func() {
		_, err := httpClient.New(httpClient.WithTimeout(0))
		Expect(err).ToNot(BeNil())

		_, err = httpClient.New(httpClient.WithProxy("http://proxy.corp:3128"))
		Expect(err).To(BeNil())

		_, err = httpClient.New(httpClient.WithProxy("://bad"))
		Expect(err).ToNot(BeNil())
	})
})
