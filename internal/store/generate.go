package store

// This file documents code generation for the store package.
//
// schema.go mirrors the embedded migration files; regenerate it after adding
// a migration:
//   go generate ./internal/store

//go:generate sh -c "cd ../.. && go run internal/store/tools/generate_schema.go"
