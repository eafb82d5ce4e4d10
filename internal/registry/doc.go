// Package registry maintains the persistent inventory of devices seen
// across scans, keyed by hardware address. It reconciles scan batches
// into long-lived records, keeps an append-only IP history per device,
// and derives a presence status for each record on demand. Status is
// never stored; it is computed from timestamps at read time so a
// record's status is always consistent with the clock.
package registry
