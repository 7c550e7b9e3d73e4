// Package api exposes the review scheduler and the read models of its
// event subscribers over HTTP.
//
// Every response uses the envelope in package shared. Service errors are
// mapped to status codes by MapErrorToStatusCode and never reach clients
// verbatim, except validation messages built from field names.
package api
