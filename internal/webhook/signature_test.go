package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "shhh"
	body := []byte(`{"event":"message_received"}`)

	assert.True(t, VerifySignature(secret, body, Sign(secret, body)))
}

func TestVerifySignatureRejects(t *testing.T) {
	secret := "shhh"
	body := []byte(`{"event":"message_received"}`)

	tests := []struct {
		name string
		sig  string
	}{
		{"empty signature", ""},
		{"wrong signature", "deadbeef"},
		{"signature for other body", Sign(secret, []byte("other"))},
		{"signature with other secret", Sign("wrong", body)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(secret, body, tt.sig))
		})
	}
}

func TestVerifySignatureBodySensitive(t *testing.T) {
	secret := "shhh"
	sig := Sign(secret, []byte(`{"a":1}`))

	// A single changed byte in the body must invalidate the signature.
	assert.False(t, VerifySignature(secret, []byte(`{"a":2}`), sig))
}
