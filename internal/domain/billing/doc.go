// Package billing implements the recurring member-dues (sanda) engine:
// per-member billing periods, invoice generation, oldest-first payment
// allocation, and arrears aggregation.
//
// The package contains pure domain logic only. Persistence is reached
// through the repository interfaces in repository.go and wired up by the
// infrastructure layer.
package billing
