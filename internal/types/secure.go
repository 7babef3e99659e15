package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (the upload API key, the MQTT broker
// password). It overrides String() and MarshalJSON() to return a redacted
// placeholder, so secrets never leak through fmt functions, structured log
// attrs, or the status endpoint's JSON output.
//
// Use Unmask() to retrieve the raw value where it is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Calls should be
// limited to the point of use: request headers and broker credentials.
func (s SecretString) Unmask() string {
	return string(s)
}
