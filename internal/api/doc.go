// Package api provides the Eludris REST client.
//
// Endpoints:
//   - Oprish (REST): https://api.eludris.gay
//   - Effis (files): https://cdn.eludris.gay
//
// Authenticated routes send the session token verbatim in the
// Authorization header.
package api
