package propagation

import "strings"

// Carrier is the flat string mapping that crosses a transport boundary.
// Message-attribute systems commonly normalize attribute keys, so lookups
// are case-insensitive while writes emit lower-case keys.
type Carrier map[string]string

// Get returns the value for key, matching case-insensitively.
func (c Carrier) Get(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set stores value under the lower-cased key.
func (c Carrier) Set(key, value string) {
	c[strings.ToLower(key)] = value
}

// FromAttributes builds a Carrier from a raw message-attribute map,
// lower-casing keys and trimming values.
func FromAttributes(attrs map[string]string) Carrier {
	carrier := make(Carrier, len(attrs))
	for k, v := range attrs {
		carrier[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	return carrier
}
