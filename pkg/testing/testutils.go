// Package testing holds helpers shared by the package tests.
package testing

import (
	"net/http"
	"net/http/httptest"
	"net/url"
)

// PerformRequest will make the given request to the supplied handler and return
// an httptest.ResponseRecorder representing the result of making the request.
func PerformRequest(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// PerformSimpleRequest will make the given request to the supplied handler and
// return an httptest.ResponseRecorder indicating the result.
func PerformSimpleRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	r, _ := http.NewRequest(method, path, nil)
	return PerformRequest(h, r)
}

// PerformQuery is PerformSimpleRequest for a GET with encoded query values.
func PerformQuery(h http.Handler, path string, query url.Values) *httptest.ResponseRecorder {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return PerformSimpleRequest(h, http.MethodGet, path)
}
