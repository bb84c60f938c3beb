// Package api contains the HTTP DTOs generated from openapi.yaml.
package api

//go:generate go tool oapi-codegen -config cfg.yaml openapi.yaml
