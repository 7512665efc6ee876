// Package internaldefs maps client counters onto exported families and holds
// the bucket bounds shared by the Prometheus and OTel exporters, so both
// publish identical series.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
