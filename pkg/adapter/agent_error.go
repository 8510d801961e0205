package adapter

import (
	"errors"
	"net"
	"net/url"
)

const (
	CodeNetworkError  = "NETWORK_ERROR"
	CodeAgentAPIError = "AGENT_API_ERROR"
)

// AgentError is implemented by every failure returned from the Agent client
type AgentError interface {
	error
	Code() string
	Detail() string
}

// NetworkError reports that the agent service could not be reached or that
// the exchange failed below the HTTP layer.
type NetworkError struct {
	Message string
	Details string
	cause   error
}

func newNetworkError(msg string, cause error) *NetworkError {
	e := &NetworkError{Message: msg, cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func (e *NetworkError) Error() string  { return e.Message }
func (e *NetworkError) Code() string   { return CodeNetworkError }
func (e *NetworkError) Detail() string { return e.Details }
func (e *NetworkError) Unwrap() error  { return e.cause }

// AgentAPIError reports that the agent service answered but signaled failure
type AgentAPIError struct {
	Message string
	Details string
	// StatusCode is zero when the failure was not an HTTP status
	StatusCode int
	cause      error
}

func (e *AgentAPIError) Error() string  { return e.Message }
func (e *AgentAPIError) Code() string   { return CodeAgentAPIError }
func (e *AgentAPIError) Detail() string { return e.Details }
func (e *AgentAPIError) Unwrap() error  { return e.cause }

// isTransportError distinguishes connectivity failures (refused, DNS, TLS,
// timeouts) from everything else.
func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ErrorMessage returns the user facing text for err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var agentErr AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Error()
	}
	return err.Error()
}
