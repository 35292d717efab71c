package logging

import "testing"

func TestNewReturnsUsableLogger(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		log := New(env, "test")
		// Event methods have pointer receivers, so the logger must be
		// held in a variable before chaining.
		log.Debug().Str("env", env).Msg("constructed")
	}
}
