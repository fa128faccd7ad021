// Package harness runs scenario files against a backend and compares what
// the compiled program produces with what the scenario expects.
//
// # Scenario Format
//
// A scenario names one program and lists the cases to run it with:
//
//	name: add_scalars
//	description: Adds two integers
//	program: ../programs/add.cue
//	backend: native
//	tolerance: 0.0001
//	cases:
//	  - name: small
//	    inputs: {a: 2, b: 3}
//	    expect: {x: 5}
//	  - name: overflow
//	    inputs: {a: 2147483647, b: 1}
//	    expect: {x: -2147483648}
//	    result: 0
//
// The program path is resolved against the scenario file's directory. Input
// values are decoded by the declared type of the input: integers for i32,
// numbers for f32, booleans for b8 and nested lists for arrays. A scalar
// given for an array fills every element. Expectations are subset matches;
// outputs not listed are recorded in the trace but not compared. Floats
// compare within tolerance and NaN matches NaN. Result is the status word
// Execute must return and defaults to 0.
//
// # Isolation
//
// Every case gets a fresh backend, so storage starts zeroed and nothing
// carries over from a previous case.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/add.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
