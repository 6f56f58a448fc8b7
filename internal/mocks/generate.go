// Package mocks provides generated test doubles for the auth ports.
//
// Mocks are generated with go.uber.org/mock (gomock). To regenerate after
// interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	exchanger := mocks.NewMockTokenExchanger(ctrl)
//	exchanger.EXPECT().Exchange(gomock.Any(), "code").Return(tokens, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ports_mocks.go github.com/gmrl/auth-portal/internal/ports TokenExchanger,DirectoryClient,UserRepository,SessionRepository,DirectoryCache,AuditRecorder
