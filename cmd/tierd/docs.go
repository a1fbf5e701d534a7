package main

// General API documentation for swaggo. Run `swag init -g cmd/tierd/docs.go -o internal/docs` to regenerate.
//
// @title           tierd API
// @version         1.0
// @description     Adaptive tier routing for local LLM backends: classification, resource-aware model selection, conversation context and answer confidence.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
