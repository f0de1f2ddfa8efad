package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"post-server/internal/model"
	"post-server/internal/service"
)

// MockArticleGenerator is a mock type for the ArticleGenerator type
type MockArticleGenerator struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, req, sink
func (_m *MockArticleGenerator) Run(ctx context.Context, req model.GenerationRequest, sink service.StreamSink) (string, error) {
	ret := _m.Called(ctx, req, sink)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, model.GenerationRequest, service.StreamSink) string); ok {
		r0 = rf(ctx, req, sink)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, model.GenerationRequest, service.StreamSink) error); ok {
		r1 = rf(ctx, req, sink)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// NewMockArticleGenerator creates a new instance of MockArticleGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockArticleGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockArticleGenerator {
	m := &MockArticleGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.ArticleGenerator = (*MockArticleGenerator)(nil)
