// Package jsoncodec is the JSON codec shared by the event transports and the
// event store.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

// MarshalIndent encodes v with indentation.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Encode writes v to w followed by a newline.
func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}
