package executor

import (
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/postmyrustache/gateway/internal/gwerr"
)

// MapError classifies a backend error into the gateway's closed error
// kinds (spec §4.4 "Backend error mapping" / §7). Connection-level
// failures become a fatal BackendConnection error; everything PostgreSQL
// itself rejected becomes a non-fatal BackendSyntax error carrying the
// backend's own SQLSTATE where one is available.
func MapError(err error) *gwerr.Error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return gwerr.BackendConnection(err)
	}
	if errors.Is(err, net.ErrClosed) {
		return gwerr.BackendConnection(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if strings.HasPrefix(string(pqErr.Code), "08") { // connection exception class
			return gwerr.BackendConnection(err)
		}
		if strings.Contains(pqErr.Message, "column") || pqErr.Code == "42703" {
			return gwerr.UnknownColumn(pqErr.Message, err)
		}
		return gwerr.BackendSyntax(0, string(pqErr.Code), pqErr.Message, err)
	}

	return gwerr.BackendSyntax(0, "", err.Error(), err)
}
