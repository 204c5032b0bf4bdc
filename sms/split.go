// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sms

import "unicode/utf16"

// Encoding is the transport encoding a body fragments under.
type Encoding string

const (
	// EncodingGSM7 is the 7-bit default alphabet: 160 septets in a single
	// message, 153 per part once concatenation headers are needed.
	EncodingGSM7 Encoding = "gsm7"
	// EncodingUCS2 is the 16-bit fallback used when any character falls
	// outside the 7-bit set: 70 code units single, 67 per part.
	EncodingUCS2 Encoding = "ucs2"
)

// Per-fragment budgets, in septets (GSM-7) or UTF-16 code units (UCS-2).
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// gsm7Basic is the GSM 03.38 default alphabet. Each rune costs one septet.
var gsm7Basic = map[rune]struct{}{}

// gsm7Extension holds the escape-prefixed characters. Each costs two septets.
var gsm7Extension = map[rune]struct{}{}

func init() {
	const basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	for _, r := range basic {
		gsm7Basic[r] = struct{}{}
	}
	for _, r := range "\f^{}\\[~]|€" {
		gsm7Extension[r] = struct{}{}
	}
}

// septetCost returns the septet cost of a rune in GSM-7, or 0 if the rune
// is not representable.
func septetCost(r rune) int {
	if _, ok := gsm7Basic[r]; ok {
		return 1
	}
	if _, ok := gsm7Extension[r]; ok {
		return 2
	}
	return 0
}

// BodyEncoding reports the encoding a body would be transmitted with.
func BodyEncoding(body string) Encoding {
	for _, r := range body {
		if septetCost(r) == 0 {
			return EncodingUCS2
		}
	}
	return EncodingGSM7
}

// Split fragments a body into the ordered transmittable parts the radio
// would produce. It is pure: the same body always yields the same parts,
// so it serves both actual transmission and part-count queries. An empty
// body yields no parts.
func Split(body string) []string {
	if body == "" {
		return nil
	}
	if BodyEncoding(body) == EncodingGSM7 {
		return splitByCost(body, gsm7SingleLimit, gsm7MultiLimit, septetCost)
	}
	return splitByCost(body, ucs2SingleLimit, ucs2MultiLimit, ucs2Cost)
}

// PartCount reports how many parts a body splits into.
func PartCount(body string) int {
	return len(Split(body))
}

// ucs2Cost is the UTF-16 code unit cost of a rune. Runes outside the BMP
// encode as surrogate pairs and cost two units; a pair is never split
// across fragments.
func ucs2Cost(r rune) int {
	return len(utf16.Encode([]rune{r}))
}

// splitByCost chunks a body greedily by per-rune cost. A body that fits
// the single-message limit is returned whole; otherwise every fragment is
// filled up to the (smaller) multipart limit.
func splitByCost(body string, single, multi int, cost func(rune) int) []string {
	total := 0
	for _, r := range body {
		total += cost(r)
	}
	if total <= single {
		return []string{body}
	}

	var parts []string
	start, used := 0, 0
	for i, r := range body {
		c := cost(r)
		if used+c > multi {
			parts = append(parts, body[start:i])
			start, used = i, 0
		}
		used += c
	}
	if start < len(body) {
		parts = append(parts, body[start:])
	}
	return parts
}
