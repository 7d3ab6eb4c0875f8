package constants_test

import (
	"fmt"
	"net/http"

	"github.com/agentstation/relink/pkg/constants"
)

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Printf("HTTP timeout: %v\n", client.Timeout)
	fmt.Printf("Assertion lifetime: %v\n", constants.AssertionLifetime)

	// Output:
	// HTTP timeout: 30s
	// Assertion lifetime: 14m59s
}

// Example_sampleModes shows how sample sizes map to run modes
func Example_sampleModes() {
	for _, n := range []int{constants.SampleAll, constants.SampleDryRun, 10} {
		switch {
		case n < 0:
			fmt.Println("all")
		case n == constants.SampleDryRun:
			fmt.Println("dry run")
		default:
			fmt.Printf("first %d\n", n)
		}
	}

	// Output:
	// all
	// dry run
	// first 10
}

// Example_protocol shows the identity platform protocol values
func Example_protocol() {
	fmt.Println(constants.SituationFoundAlreadyLinked)
	fmt.Println(constants.GrantTypeJWTBearer)
	fmt.Println(constants.DefaultPageSize)

	// Output:
	// FOUND_ALREADY_LINKED
	// urn:ietf:params:oauth:grant-type:jwt-bearer
	// 500
}
