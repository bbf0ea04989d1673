// Package simulation builds synthetic food-web scenarios and runs them
// through the real engine and job store, with no mocks.
//
// Scenarios are Go builders that describe species, their node parameters
// and feeding links. A Runner saves each scenario as a job and processes
// the batch, collecting one engine result per scenario for property-based
// assertions.
//
// Usage:
//
//	func TestChainConserves(t *testing.T) {
//	    r := simulation.NewTestRunner(t)
//	    result := r.MustRun(simulation.Chain(4, 50))
//	    simulation.AssertConserved(t, result.Results["chain-4"], 1e-6)
//	}
package simulation
