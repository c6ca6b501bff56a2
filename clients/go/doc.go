// Package opecstatego is a Go client for the opecstate HTTP service.
//
// It saves and resumes portal states and manages users through the
// /service routes, and reads the database status from /api/status.
//
// # Basic Usage
//
//	client := opecstatego.NewClient("http://localhost:8080")
//
//	st, err := client.CreateState(ctx, `{"layers":["sst"]}`)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Later, resume it
//	st, err = client.GetState(ctx, st.ID)
//	if opecstatego.IsNotFoundError(err) {
//		log.Println("state was deleted")
//	}
//
// # Error Handling
//
// All methods return *Error values carrying an ErrorType and, for API
// errors, the HTTP status code.
package opecstatego
