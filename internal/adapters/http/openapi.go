package httpadapter

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiSpec []byte

// openAPIValidator validates request parameters against the embedded API
// document. Bodies are excluded: multipart uploads must stay streamable and
// the handlers validate payload semantics anyway.
var openAPIValidator = mustOpenAPIValidator()

func mustOpenAPIValidator() func(http.Handler) http.Handler {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		panic(fmt.Sprintf("httpadapter: load api document: %v", err))
	}
	if err := doc.Validate(loader.Context); err != nil {
		panic(fmt.Sprintf("httpadapter: validate api document: %v", err))
	}
	specRouter, err := legacyrouter.NewRouter(doc)
	if err != nil {
		panic(fmt.Sprintf("httpadapter: build api router: %v", err))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Routes outside the document fall through to the mux, which
			// answers 404 on its own.
			route, pathParams, err := specRouter.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					ExcludeRequestBody: true,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
