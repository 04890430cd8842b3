// Package httputil holds the JSON helpers and middleware shared by the API handlers.
//
// Handlers return errors and let WriteAPIError render them:
//
//	var req createProjectRequest
//	if err := httputil.DecodeAndValidate(r, &req); err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
package httputil
