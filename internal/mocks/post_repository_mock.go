package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"post-server/internal/model"
	"post-server/internal/repository"
)

// MockPostRepository is a mock type for the PostRepository type
type MockPostRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, post
func (_m *MockPostRepository) Create(ctx context.Context, post model.Post) (model.Post, error) {
	ret := _m.Called(ctx, post)

	var r0 model.Post
	if rf, ok := ret.Get(0).(func(context.Context, model.Post) model.Post); ok {
		r0 = rf(ctx, post)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(model.Post)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, model.Post) error); ok {
		r1 = rf(ctx, post)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockPostRepository) GetByID(ctx context.Context, id string) (model.Post, error) {
	ret := _m.Called(ctx, id)

	var r0 model.Post
	if rf, ok := ret.Get(0).(func(context.Context, string) model.Post); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(model.Post)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// Update provides a mock function with given fields: ctx, id, text, image
func (_m *MockPostRepository) Update(ctx context.Context, id string, text *string, image *string) (model.Post, error) {
	ret := _m.Called(ctx, id, text, image)

	var r0 model.Post
	if rf, ok := ret.Get(0).(func(context.Context, string, *string, *string) model.Post); ok {
		r0 = rf(ctx, id, text, image)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(model.Post)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, *string, *string) error); ok {
		r1 = rf(ctx, id, text, image)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// NewMockPostRepository creates a new instance of MockPostRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockPostRepository(t interface {
	mock.TestingT
	Helper()
}) *MockPostRepository {
	m := &MockPostRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.PostRepository = (*MockPostRepository)(nil)
