package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"post-server/internal/model"
	"post-server/internal/service"
)

// MockReferenceTextStore is a mock type for the ReferenceTextStore type
type MockReferenceTextStore struct {
	mock.Mock
}

// Put provides a mock function with given fields: ctx, key, texts
func (_m *MockReferenceTextStore) Put(ctx context.Context, key string, texts model.ReferenceTexts) error {
	ret := _m.Called(ctx, key, texts)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.ReferenceTexts) error); ok {
		r0 = rf(ctx, key, texts)
	} else {
		err := ret.Error(0)
		if err != nil {
			r0 = err
		}
	}

	return r0
}

// Consume provides a mock function with given fields: ctx, key
func (_m *MockReferenceTextStore) Consume(ctx context.Context, key string) (model.ReferenceTexts, error) {
	ret := _m.Called(ctx, key)

	var r0 model.ReferenceTexts
	if rf, ok := ret.Get(0).(func(context.Context, string) model.ReferenceTexts); ok {
		r0 = rf(ctx, key)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(model.ReferenceTexts)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, key)
	} else {
		err := ret.Error(1)
		if err != nil {
			r1 = err
		}
	}

	return r0, r1
}

// NewMockReferenceTextStore creates a new instance of MockReferenceTextStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockReferenceTextStore(t interface {
	mock.TestingT
	Helper()
}) *MockReferenceTextStore {
	m := &MockReferenceTextStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.ReferenceTextStore = (*MockReferenceTextStore)(nil)
