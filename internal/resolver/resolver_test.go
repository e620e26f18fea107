package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tupyy/ztp-bootstrap/internal/address"
	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"github.com/tupyy/ztp-bootstrap/internal/region"
	"github.com/tupyy/ztp-bootstrap/internal/resolver"
	"github.com/tupyy/ztp-bootstrap/internal/token"
)

func redirectorURL(host string) string {
	return "https://" + host + address.RedirectorPath
}

func assigned(host string) httpClient.Assignment {
	return httpClient.Assignment{Host: host}
}

var _ = Describe("resolver", func() {
	var (
		ctrl   *gomock.Controller
		client *resolver.MockClient
		r      *resolver.Resolver
		req    entity.EnrollmentRequest
	)

	const (
		uk     = "www.cv-prod-uk-1.arista.io"
		europe = "www.cv-prod-euwest-2.arista.io"
		japan  = "www.cv-prod-apnortheast-1.arista.io"
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		client = resolver.NewMockClient(ctrl)
		r = resolver.New(client)
		req = entity.EnrollmentRequest{
			EntryAddress: region.GenericEntry,
			Token:        "enrollment-token",
			SystemID:     "SN1",
		}
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	Context("regional entry address", func() {
		for _, c := range region.All() {
			c := c
			It(fmt.Sprintf("does not redirect when the entry is %s", c.Host), func() {
				req.EntryAddress = c.Host
				client.EXPECT().
					GetAssignment(gomock.Any(), redirectorURL(c.Host), "enrollment-token", "SN1").
					Return(assigned(c.Host), nil).
					Times(1)

				result, err := r.Resolve(context.TODO(), req)
				Expect(err).To(BeNil())
				Expect(result.Success).To(BeTrue())
				Expect(result.Hops).To(Equal(0))
				Expect(result.Endpoint).To(Equal(c))
				Expect(result.Path).To(Equal([]string{c.Host}))
			})
		}
	})

	Context("generic entry address", func() {
		for _, c := range region.All() {
			c := c
			It(fmt.Sprintf("resolves to %s", c.Name), func() {
				client.EXPECT().
					GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).
					Return(assigned(c.Host), nil)

				if c.Host != region.GenericEntry {
					client.EXPECT().
						GetAssignment(gomock.Any(), redirectorURL(c.Host), gomock.Any(), gomock.Any()).
						Return(assigned(c.Host), nil)
				}

				result, err := r.Resolve(context.TODO(), req)
				Expect(err).To(BeNil())
				Expect(result.Success).To(BeTrue())
				Expect(region.All()).To(ContainElement(result.Endpoint))
				Expect(result.Endpoint).To(Equal(c))
				Expect(result.Hops).To(BeNumerically("<=", 1))
			})
		}

		It("returns the enroll and bootstrap addresses of the resolved cluster", func() {
			gomock.InOrder(
				client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned(uk), nil),
				client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(uk), gomock.Any(), gomock.Any()).Return(assigned(uk), nil),
			)

			result, err := r.Resolve(context.TODO(), req)
			Expect(err).To(BeNil())
			Expect(result.Hops).To(Equal(1))
			Expect(result.Path).To(Equal([]string{region.GenericEntry, uk}))
			Expect(result.EnrollAddress).To(Equal("apiserver.cv-prod-uk-1.arista.io:443"))
			Expect(result.BootstrapURL).To(Equal("https://www.cv-prod-uk-1.arista.io/ztp/bootstrap"))
		})

		It("normalizes the assigned host", func() {
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned("apiserver.cv-prod-uk-1.arista.io"), nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(uk), gomock.Any(), gomock.Any()).Return(assigned("https://WWW.cv-prod-uk-1.arista.io/"), nil)

			result, err := r.Resolve(context.TODO(), req)
			Expect(err).To(BeNil())
			Expect(result.Endpoint.Host).To(Equal(uk))
			Expect(result.Hops).To(Equal(1))
		})

		It("follows http redirects", func() {
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).
				Return(httpClient.Assignment{Location: redirectorURL(europe)}, nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(europe), gomock.Any(), gomock.Any()).Return(assigned(europe), nil)

			result, err := r.Resolve(context.TODO(), req)
			Expect(err).To(BeNil())
			Expect(result.Endpoint.Host).To(Equal(europe))
			Expect(result.Hops).To(Equal(1))
			Expect(result.BootstrapURL).To(Equal("https://www.cv-prod-euwest-2.arista.io/ztp/bootstrap"))
			Expect(result.EnrollAddress).To(Equal("apiserver.cv-prod-euwest-2.arista.io:443"))
		})
	})

	Context("redirect loop", func() {
		It("fails when the chain exceeds the hop bound", func() {
			r = resolver.New(client, resolver.WithMaxHops(1))

			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned(uk), nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(uk), gomock.Any(), gomock.Any()).Return(assigned(europe), nil)

			result, err := r.Resolve(context.TODO(), req)
			Expect(errors.Is(err, resolver.ErrRedirectLoop)).To(BeTrue())
			Expect(resolver.KindOf(err)).To(Equal(resolver.RedirectLoop))
			Expect(result.Success).To(BeFalse())
			Expect(result.Kind).To(Equal("RedirectLoop"))
			Expect(result.Path).To(Equal([]string{region.GenericEntry, uk, europe}))
		})

		It("fails when redirected back to a visited cluster", func() {
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned(uk), nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(uk), gomock.Any(), gomock.Any()).Return(assigned(region.GenericEntry), nil)

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.RedirectLoop))
		})

		It("accepts a chain as long as the hop bound", func() {
			r = resolver.New(client, resolver.WithMaxHops(2))

			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned(uk), nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(uk), gomock.Any(), gomock.Any()).Return(assigned(japan), nil)
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(japan), gomock.Any(), gomock.Any()).Return(assigned(japan), nil)

			result, err := r.Resolve(context.TODO(), req)
			Expect(err).To(BeNil())
			Expect(result.Hops).To(Equal(2))
			Expect(result.Endpoint.Host).To(Equal(japan))
		})

		It("does not follow any redirect with a zero bound", func() {
			r = resolver.New(client, resolver.WithMaxHops(0))

			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).Return(assigned(uk), nil)

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.RedirectLoop))
		})
	})

	Context("validation", func() {
		DescribeTable("fails with MalformedAddress before any network call",
			func(addr string) {
				req.EntryAddress = addr

				result, err := r.Resolve(context.TODO(), req)
				Expect(errors.Is(err, resolver.ErrMalformedAddress)).To(BeTrue())
				Expect(errors.Is(err, address.ErrMalformedAddress)).To(BeTrue())
				Expect(result.Success).To(BeFalse())
				Expect(result.Kind).To(Equal("MalformedAddress"))
			},
			Entry("missing www prefix", "arista.io"),
			Entry("regional without www prefix", "cv-prod-uk-1.arista.io"),
			Entry("empty", ""),
			Entry("invalid hostname", "www.arista .io"),
		)

		It("fails with MissingToken before any network call", func() {
			req.Token = ""

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.MissingToken))
			Expect(errors.Is(err, token.ErrEmptyToken)).To(BeTrue())
		})
	})

	Context("failures", func() {
		It("reports a rejected token", func() {
			client.EXPECT().GetAssignment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(httpClient.Assignment{}, &httpClient.StatusError{Code: 401})

			_, err := r.Resolve(context.TODO(), req)
			Expect(errors.Is(err, resolver.ErrTokenRejected)).To(BeTrue())
		})

		It("reports an unreachable network", func() {
			client.EXPECT().GetAssignment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(httpClient.Assignment{}, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: network is unreachable")})

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.NetworkUnreachable))
		})

		It("bounds every request with the timeout", func() {
			r = resolver.New(client, resolver.WithTimeout(50*time.Millisecond))

			client.EXPECT().GetAssignment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, url, token, systemID string) (httpClient.Assignment, error) {
					<-ctx.Done()
					return httpClient.Assignment{}, ctx.Err()
				})

			start := time.Now()
			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.Timeout))
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		})

		It("reports unexpected answers", func() {
			client.EXPECT().GetAssignment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(httpClient.Assignment{}, &httpClient.StatusError{Code: 500})

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.BadResponse))
		})

		It("does not send the token to an unknown cluster", func() {
			client.EXPECT().GetAssignment(gomock.Any(), redirectorURL(region.GenericEntry), gomock.Any(), gomock.Any()).
				Return(assigned("www.cv-prod-unknown.arista.io"), nil)

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.UnknownCluster))
		})

		It("refuses an assignment that is not an address", func() {
			client.EXPECT().GetAssignment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(assigned("arista.io"), nil)

			_, err := r.Resolve(context.TODO(), req)
			Expect(resolver.KindOf(err)).To(Equal(resolver.BadResponse))
		})
	})

	It("does not redirect on-prem clusters", func() {
		req.EntryAddress = "cvp.corp.example.com"

		result, err := r.Resolve(context.TODO(), req)
		Expect(err).To(BeNil())
		Expect(result.Success).To(BeTrue())
		Expect(result.Hops).To(Equal(0))
		Expect(result.Endpoint.Host).To(Equal("cvp.corp.example.com"))
		Expect(result.EnrollAddress).To(Equal("cvp.corp.example.com"))
		Expect(result.BootstrapURL).To(Equal("http://cvp.corp.example.com/ztp/bootstrap"))
	})
})
