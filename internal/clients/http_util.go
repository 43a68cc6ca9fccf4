package clients

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
)

const errorBodyLimit = 512

// doHTTP sends req and reads the body. Transport failures become
// TransientNetworkError, non-2xx responses ExternalServiceError.
func doHTTP(client *http.Client, req *http.Request, service string, maxBody int64) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, types.NewTransientNetworkError(service+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &types.ExternalServiceError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, types.NewTransientNetworkError(service+" read body", err)
	}
	if int64(len(body)) > maxBody {
		return nil, &types.ExternalServiceError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("response exceeds %d bytes", maxBody),
		}
	}
	return body, nil
}
