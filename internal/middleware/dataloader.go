package middleware

import (
	"context"
	"net/http"

	"github.com/lsurma/data-manager/internal/repository"
	"github.com/lsurma/data-manager/internal/translationloader"
)

type ctxKey string

const translationLoaderKey ctxKey = "translationLoader"

// DataLoaderMiddleware attaches a per-request translation loader to the
// request context so handlers batch their by-id lookups.
func DataLoaderMiddleware(repo repository.TranslationRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := translationloader.NewTranslationLoader(repo)
			ctx := context.WithValue(r.Context(), translationLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TranslationLoaderFromContext retrieves the loader from context.
func TranslationLoaderFromContext(ctx context.Context) *translationloader.TranslationLoader {
	if l, ok := ctx.Value(translationLoaderKey).(*translationloader.TranslationLoader); ok {
		return l
	}
	return nil
}
