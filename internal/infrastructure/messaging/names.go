// Package messaging adapts the event ports to kafka and rabbitmq.
package messaging

import "strings"

// WireName maps a platform subject such as "payment:created" to the
// dotted form used for kafka topics and rabbitmq routing keys.
func WireName(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}

// PlatformName is the inverse of WireName.
func PlatformName(wire string) string {
	return strings.ReplaceAll(wire, ".", ":")
}

func wireNames(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, WireName(t))
	}
	return out
}
