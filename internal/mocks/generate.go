// Package mocks provides mock implementations for testing the alert
// synchronization core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockAlertRepository(ctrl)
//	mockRepo.EXPECT().Get(gomock.Any(), "tenant-a", "alert-1").Return(alert, nil)
package mocks

// Generate mock for AlertRepository interface from internal/core package.
// This creates MockAlertRepository with methods for all AlertRepository interface methods:
// Create, Get, CompareAndSetStatus, List
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=alert_repository_mock.go github.com/oncallops/alertsync/internal/core AlertRepository
