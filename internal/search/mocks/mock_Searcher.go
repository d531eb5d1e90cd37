// Package mocks provides test doubles for the search package.
package mocks

import (
	"context"

	search "github.com/sells-group/lead-engine/internal/search"
	mock "github.com/stretchr/testify/mock"
)

// MockSearcher is a mock type for the Searcher interface.
type MockSearcher struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, prompt
func (_m *MockSearcher) Search(ctx context.Context, prompt string) (*search.Result, error) {
	ret := _m.Called(ctx, prompt)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *search.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*search.Result, error)); ok {
		return rf(ctx, prompt)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *search.Result); ok {
		r0 = rf(ctx, prompt)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*search.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, prompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSearcher creates a new instance of MockSearcher.
func NewMockSearcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSearcher {
	m := &MockSearcher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockRepairer is a mock type for the Repairer interface.
type MockRepairer struct {
	mock.Mock
}

// Repair provides a mock function with given fields: ctx, raw
func (_m *MockRepairer) Repair(ctx context.Context, raw string) (string, error) {
	ret := _m.Called(ctx, raw)

	if len(ret) == 0 {
		panic("no return value specified for Repair")
	}

	return ret.String(0), ret.Error(1)
}

// NewMockRepairer creates a new instance of MockRepairer.
func NewMockRepairer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepairer {
	m := &MockRepairer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
