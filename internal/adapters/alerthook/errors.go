package alerthook

import "fmt"

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alert webhook status %d: %s", e.Status, e.Body)
}
