// Package ir provides the domain value types shared by every layer of the
// runtime: entries, chain headers, capability grants, the application
// definition (DNA) and the content addresses that identify them.
//
// This package imports nothing internal. All other internal packages import
// ir; ir never imports them.
//
// Key design constraints:
//   - Addresses are content-derived: SHA-256 over RFC 8785 canonical JSON
//     with a domain prefix per content kind
//   - No floats in hashed content - timestamps are int64 unix nanoseconds
//   - All JSON tags use snake_case
package ir
