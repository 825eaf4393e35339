// Package nomad is a client for the Nomad HTTP API.
//
// A Client turns a method call into exactly one HTTP request against
// /<version>/<endpoint>/<segments...> and maps the response:
//
//   - 2xx: the body is decoded into a Record or []Record, or reported as a
//     plain success for delete and toggle operations
//   - 404: *NotFoundError (errors.Is(err, ErrNotFound))
//   - any other status: *APIError with the status code and body
//   - a 2xx body that is not valid JSON: *DecodeError
//
// Invalid argument combinations are rejected with *InvalidParametersError
// before anything is sent. Nothing is retried or cached at this layer.
//
// Resource wrappers are obtained from the client:
//
//	client, err := nomad.NewClient(nomad.Config{Address: "http://nomad:4646"})
//	if err != nil {
//	    return err
//	}
//	ok, err := client.Job().Exists(ctx, "web")
package nomad
