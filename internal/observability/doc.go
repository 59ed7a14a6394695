// Package observability builds the service logger from configuration.
package observability
