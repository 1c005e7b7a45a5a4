// Package optionserve provides a small net/http handler that serves option
// lists for dependent form fields. Fields configured with an options_endpoint
// point at the mounted route; the handler answers with the {"data": [...]}
// envelope the cascade fetcher understands, narrowed by the parent value and
// an optional search query.
package optionserve
