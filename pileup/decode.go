// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

// The read-results column of an mpileup line is decoded one symbol at a time
// with a cursor that may advance by more than one byte:
//
//   . ,      match to the reference base
//   ACGTacgt mismatch; counted under its own slot
//   +N... -N... insertion / deletion; N is a single digit and the N bases
//               after it are skipped
//   ^Q       start of a read segment; Q is a mapping quality and is skipped
//   *        deletion placeholder
//
// Everything else ($ read ends, N, IUPAC codes, '>' '<' reference skips) has
// no effect.

// CountResults tallies the read-result symbols in results against the
// reference base ref.  Matches against a reference base that isn't A/C/G/T are
// dropped.
func CountResults(results []byte, ref byte) (c Counts) {
	refSlot, refOK := BaseToSlot(ref)
	n := len(results)
	for i := 0; i < n; {
		switch sym := results[i]; sym {
		case '.', ',':
			if refOK {
				c[refSlot]++
			}
			i++
		case '+', '-':
			if sym == '+' {
				c[SlotIns]++
			} else {
				c[SlotDel]++
			}
			i += indelSkip(results[i+1:])
		case '^':
			i += 2
		case '*':
			c[SlotDel]++
			i++
		default:
			if slot, ok := BaseToSlot(sym); ok {
				c[slot]++
			}
			i++
		}
	}
	return
}

// indelSkip returns how far the cursor must move past an indel sign, given
// the bytes following the sign: the sign, one run-length digit and that many
// bases.  Only the first digit is read; any further digits of a longer run
// length are decoded as ordinary symbols.  A sign at the very end of the
// string, or one not followed by a digit, only skips itself.  The skip never
// runs past the end of the string.
func indelSkip(rest []byte) int {
	if len(rest) == 0 || rest[0] < '0' || rest[0] > '9' {
		return 1
	}
	skip := 2 + int(rest[0]-'0')
	if limit := 1 + len(rest); skip > limit {
		skip = limit
	}
	return skip
}

// ParseResults decodes results against ref and normalizes the counts.
func ParseResults(results []byte, ref byte) Feature {
	c := CountResults(results, ref)
	return c.Normalize()
}
