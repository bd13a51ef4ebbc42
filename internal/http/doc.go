// Package http exposes the reservation directory as a JSON API.
//
// Callers name themselves with the `X-Campus-User` header; the directory
// resolves whether that user is an administrator. Registration and catalog
// reads work without the header, everything else answers 401 when it is
// missing.
//
// The router exposes the following endpoints:
//   - GET /resources, POST /resources: catalog listing and creation. The list
//     accepts name, id, kind, min_capacity, category, and available query
//     parameters; supplied filters are combined. Creation requires an
//     administrator and takes {"id","name","kind","capacity","category"}.
//   - GET /resources/{id}, PUT /resources/{id}, DELETE /resources/{id}: a
//     single catalog entry. Updates apply only the fields supplied and reject
//     fields the variant does not have. Removal fails with 409 while active
//     reservations remain.
//   - GET /resources/{id}/schedule: occupied cells with day and slot labels.
//   - GET /resources/{id}/availability?day=&slot=: whether one cell is free.
//   - GET /reservations, POST /reservations, DELETE /reservations/{id}:
//     booking for the acting user ({"resource_id","day","slot"}), listing, and
//     cancellation by the owner or an administrator. Students list their own
//     active bookings; administrators list the full history, narrowed by
//     resource_id and active=true.
//   - GET /users, POST /users, GET /users/{name}, GET /users/{name}/reservations:
//     registration and lookup.
//   - POST /admin/snapshot, POST /admin/export: administrator only.
//
// Directory errors map to 400 (invalid time slot, wrong resource type), 403,
// 404, 409 (slot taken, duplicate identity, active bookings), and 422
// (invalid input with per-field messages).
//
// Request/response DTOs live alongside their respective handlers.
package http
