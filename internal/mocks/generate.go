package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Store --dir ../domain/kv --output domain/kv --outpkg kvmock --filename store_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Fetcher --dir ../domain/program --output domain/program --outpkg programmock --filename fetcher_mock.go
