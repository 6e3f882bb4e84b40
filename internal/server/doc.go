// Package server implements the HTTP server for the hello service: the
// greeting route, the in-memory log and frequency table with their
// update and read-back routes, and the operational endpoints (health,
// metrics, admin snapshot and audit views). The collections live in an
// injected Store; Postgres auditing and MinIO snapshot export are
// optional and attached with WithAudit and WithSnapshots.
package server
