package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/goldvault-backend/api/responses"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	pkgerrors "github.com/angelmondragon/goldvault-backend/pkg/errors"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

// StorageBillingRun triggers a storage billing run and answers with the run summary. The
// summary is returned with 200 even when individual customers failed.
func StorageBillingRun(runner storagebilling.Runner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storage billing unavailable"))
			return
		}

		// a client disconnect must not abort customers mid-invoice
		summary, err := runner.Run(context.WithoutCancel(r.Context()))
		switch {
		case errors.Is(err, storagebilling.ErrRunInProgress):
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeRunInProgress, err, "storage billing run already in progress"))
			return
		case err != nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storage billing run failed"))
			return
		}

		if summary.Errors == nil {
			summary.Errors = []string{}
		}
		responses.WriteJSON(w, http.StatusOK, summary)
	}
}
