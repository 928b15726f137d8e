package sharedtest

import (
	m "github.com/launchdarkly/go-test-helpers/v3/matchers"
)

// ExpectJSONBody matches a response body that is JSON equivalent to the given string.
func ExpectJSONBody(expectedBody string) m.Matcher {
	return m.JSONStrEqual(expectedBody)
}

// ExpectNoBody matches either a nil body or an empty one.
func ExpectNoBody() m.Matcher {
	return m.Length().Should(m.Equal(0))
}
