// Package mock provides deterministic test doubles for the ai service
// interfaces. Behavior can be overridden per test via function fields.
package mock
