package es

import (
	"fmt"
	"io"
)

func formatError(statusCode int, body io.Reader) error {
	bodyBytes, _ := io.ReadAll(body)
	return fmt.Errorf("status %d: %s", statusCode, string(bodyBytes))
}
