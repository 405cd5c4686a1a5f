// Package connection provides the tokstash-cli HTTP client.
//
// HTTPClient wraps the server's token routes with typed methods. Non-2xx
// responses surface as *APIError; errors.Is(err, ErrInvalidToken) matches
// the server's "invalid token" answers.
package connection
