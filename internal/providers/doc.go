// Package providers holds the shared plumbing for hosted model providers:
// SDK client construction and translation of provider API errors into
// [retry.StatusError] so the retry policy can classify them.
package providers
