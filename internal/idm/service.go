package idm

import (
	"context"
	"net/url"

	"github.com/agentstation/relink/pkg/constants"
)

// Client is the transport the service issues requests through.
// *transport.Client satisfies it.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Delete(ctx context.Context, path, rev string) error
}

// Service exposes the IDM reads and deletes relink needs.
type Service struct {
	client   Client
	pageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets the page size requested for entry queries.
// Values outside 1..MaxPageSize are ignored.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= constants.MaxPageSize {
			s.pageSize = n
		}
	}
}

// NewService creates a Service on top of client.
func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:   client,
		pageSize: constants.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize returns the page size used for entry queries.
func (s *Service) PageSize() int {
	return s.pageSize
}

// With returns a copy of the service with opts applied.
func (s *Service) With(opts ...Option) *Service {
	c := *s
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}
