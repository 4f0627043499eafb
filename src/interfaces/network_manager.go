package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for outbound HTTP requests.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// PostJSON sends payload as a JSON body with the given headers.
	// Returns the response body, or an error for transport failures and
	// non-2xx statuses.
	PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) ([]byte, error)
}
