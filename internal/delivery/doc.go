// Package delivery sends a run's parts through the messaging transport.
//
// The Coordinator owns the single abort policy: parts go out in ordinal order,
// every part is checked against the ceiling before upload, and the first
// failure stops the loop with a *Error naming the part. Size failures match
// services.ErrTooLarge; all failures match services.ErrDelivery.
package delivery
