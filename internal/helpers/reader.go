package helpers

import "io"

// ReadAllAndClose drains a response body and closes it in one step, so
// provider and feed clients never leak connections on early returns.
func ReadAllAndClose(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}
