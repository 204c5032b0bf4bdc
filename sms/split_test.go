// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyEncoding(t *testing.T) {
	assert.Equal(t, EncodingGSM7, BodyEncoding("hello world"))
	assert.Equal(t, EncodingGSM7, BodyEncoding("état señor øre"))
	assert.Equal(t, EncodingGSM7, BodyEncoding("price: {100}[USD]"))
	assert.Equal(t, EncodingUCS2, BodyEncoding("ćao"))
	assert.Equal(t, EncodingUCS2, BodyEncoding("смс"))
	assert.Equal(t, EncodingUCS2, BodyEncoding("hi 👋"))
}

func TestSplitEmptyBody(t *testing.T) {
	assert.Nil(t, Split(""))
	assert.Equal(t, 0, PartCount(""))
}

func TestSplitGSM7Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		length int
		parts  int
	}{
		{"single char", 1, 1},
		{"exactly 160", 160, 1},
		{"161 overflows to two", 161, 2},
		{"two full parts", 306, 2},
		{"307 overflows to three", 307, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("a", tt.length)
			parts := Split(body)
			require.Len(t, parts, tt.parts)

			// Multipart fragments fill up to 153 septets each.
			if tt.parts > 1 {
				for i, p := range parts[:len(parts)-1] {
					assert.Len(t, p, 153, "part %d", i)
				}
			}

			// Reassembly must reproduce the body exactly.
			assert.Equal(t, body, strings.Join(parts, ""))
		})
	}
}

func TestSplitUCS2Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		length int
		parts  int
	}{
		{"exactly 70", 70, 1},
		{"71 overflows to two", 71, 2},
		{"two full parts", 134, 2},
		{"135 overflows to three", 135, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("б", tt.length)
			parts := Split(body)
			require.Len(t, parts, tt.parts)

			if tt.parts > 1 {
				for i, p := range parts[:len(parts)-1] {
					assert.Equal(t, 67, len([]rune(p)), "part %d", i)
				}
			}

			assert.Equal(t, body, strings.Join(parts, ""))
		})
	}
}

func TestSplitExtensionCharsCostTwo(t *testing.T) {
	// 80 euro signs cost 160 septets: still a single message.
	body := strings.Repeat("€", 80)
	require.Len(t, Split(body), 1)

	// One more and it no longer fits.
	body = strings.Repeat("€", 81)
	parts := Split(body)
	require.Len(t, parts, 2)
	// 76 euros fill 152 septets; the 77th would overflow 153.
	assert.Equal(t, 76, len([]rune(parts[0])))
	assert.Equal(t, body, strings.Join(parts, ""))
}

func TestSplitNeverBreaksSurrogatePair(t *testing.T) {
	// Each emoji costs two UTF-16 code units.
	body := strings.Repeat("🙂", 40) // 80 units, multipart
	parts := Split(body)
	require.Greater(t, len(parts), 1)

	for i, p := range parts {
		for _, r := range p {
			assert.NotEqual(t, rune(0xFFFD), r, "part %d contains a broken pair", i)
		}
	}
	assert.Equal(t, body, strings.Join(parts, ""))
	// 33 whole emojis fit in 67 units.
	assert.Equal(t, 33, len([]rune(parts[0])))
}

func TestSplitDeterministic(t *testing.T) {
	body := strings.Repeat("determinism ", 30)
	first := Split(body)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Split(body))
	}
	assert.Equal(t, len(first), PartCount(body))
}

func TestDecodeSentCode(t *testing.T) {
	assert.Equal(t, SentOK, DecodeSentCode(CodeOK))
	assert.Equal(t, SentGenericFailure, DecodeSentCode(CodeGenericFailure))
	assert.Equal(t, SentRadioOff, DecodeSentCode(CodeRadioOff))
	assert.Equal(t, SentNullPDU, DecodeSentCode(CodeNullPDU))
	assert.Equal(t, SentNoService, DecodeSentCode(CodeNoService))
	assert.Equal(t, SentUnknownError, DecodeSentCode(99))
}
