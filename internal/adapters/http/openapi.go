package httpadapter

import (
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var openapiSpec []byte

var apiRouter routers.Router

func init() {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		panic("httpadapter: load embedded openapi document: " + err.Error())
	}
	if err := doc.Validate(loader.Context); err != nil {
		panic("httpadapter: validate embedded openapi document: " + err.Error())
	}
	apiRouter, err = gorillamux.NewRouter(doc)
	if err != nil {
		panic("httpadapter: build openapi router: " + err.Error())
	}
}

// requestValidationMiddleware rejects requests that do not match the API
// contract before they reach a handler. Request bodies are excluded from
// validation so multipart uploads are not buffered in memory; routes the
// document does not describe (health, metrics, UI) pass through untouched.
func requestValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := apiRouter.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options:    &openapi3filter.Options{ExcludeRequestBody: true},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}
