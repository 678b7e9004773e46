// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package translate

import "github.com/gopacket/gopacket/layers"

// MapV4ToV6 translates an ICMPv4 type/code pair per RFC 6145 §4.2
// (spec.md §4.7). extra carries the field whose meaning depends on the
// resulting type: the MTU for Packet Too Big, the byte pointer for
// Parameter Problem. ok is false when RFC 6145 defines no ICMPv6
// equivalent, in which case the message must be silently dropped.
func MapV4ToV6(tc layers.ICMPv4TypeCode, totalLen int, pointer uint8, cfg Config) (out layers.ICMPv6TypeCode, extra uint32, ok bool) {
	typ, code := tc.Type(), tc.Code()

	switch typ {
	case layers.ICMPv4TypeEchoRequest:
		return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0), 0, true
	case layers.ICMPv4TypeEchoReply:
		return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoReply, 0), 0, true

	case layers.ICMPv4TypeDestinationUnreachable:
		switch code {
		case 0, 1, 5, 6, 7, 8, 11, 12:
			return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 0), 0, true
		case 3:
			return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 4), 0, true
		case 9, 10, 13, 15:
			return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 1), 0, true
		case 2:
			return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeParameterProblem, 1), 6, true
		case 4:
			mtu, ok := cfg.PickPlateau(totalLen)
			if !ok {
				return 0, 0, false
			}
			return layers.CreateICMPv6TypeCode(layers.ICMPv6TypePacketTooBig, 0), uint32(mtu), true
		default:
			return 0, 0, false
		}

	case layers.ICMPv4TypeTimeExceeded:
		return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeTimeExceeded, code), 0, true

	case layers.ICMPv4TypeParameterProblem:
		if code != 0 {
			return 0, 0, false
		}
		v6ptr, ok := v4PointerToV6(pointer)
		if !ok {
			return 0, 0, false
		}
		return layers.CreateICMPv6TypeCode(layers.ICMPv6TypeParameterProblem, 0), uint32(v6ptr), true

	default:
		return 0, 0, false
	}
}

// MapV6ToV4 translates an ICMPv6 type/code pair per RFC 6145 §5.2.
func MapV6ToV4(tc layers.ICMPv6TypeCode, mtu uint32, pointer uint32) (out layers.ICMPv4TypeCode, extra uint32, ok bool) {
	typ, code := tc.Type(), tc.Code()

	switch typ {
	case layers.ICMPv6TypeEchoRequest:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), 0, true
	case layers.ICMPv6TypeEchoReply:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0), 0, true

	case layers.ICMPv6TypeDestinationUnreachable:
		switch code {
		case 0, 2, 3:
			return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 1), 0, true
		case 1:
			return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 10), 0, true
		case 4:
			return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 3), 0, true
		default:
			return 0, 0, false
		}

	case layers.ICMPv6TypePacketTooBig:
		v4mtu := mtu
		if v4mtu > 20 {
			v4mtu -= 20
		}
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 4), v4mtu, true

	case layers.ICMPv6TypeTimeExceeded:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, code), 0, true

	case layers.ICMPv6TypeParameterProblem:
		switch code {
		case 1:
			return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 2), 0, true
		case 0:
			v4ptr, ok := v6PointerToV4(uint8(pointer))
			if !ok {
				return 0, 0, false
			}
			return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeParameterProblem, 0), uint32(v4ptr), true
		default:
			return 0, 0, false
		}

	default:
		return 0, 0, false
	}
}

// v4PointerToV6 maps an IPv4 header byte offset to its IPv6 equivalent per
// RFC 6145 §4.2's Parameter Problem table. ok is false for fields with no
// IPv6 counterpart (identification, flags/fragment offset, checksum).
func v4PointerToV6(ptr uint8) (uint8, bool) {
	switch {
	case ptr == 0:
		return 0, true
	case ptr == 1:
		return 1, true
	case ptr == 2 || ptr == 3:
		return 4, true
	case ptr == 8:
		return 7, true
	case ptr == 9:
		return 6, true
	case ptr >= 12 && ptr <= 15:
		return 8, true
	case ptr >= 16 && ptr <= 19:
		return 24, true
	default:
		return 0, false
	}
}

// v6PointerToV4 maps an IPv6 header byte offset to its IPv4 equivalent per
// RFC 6145 §5.2's inverse table.
func v6PointerToV4(ptr uint8) (uint8, bool) {
	switch {
	case ptr == 0:
		return 0, true
	case ptr == 1:
		return 1, true
	case ptr == 4 || ptr == 5:
		return 2, true
	case ptr == 6:
		return 9, true
	case ptr == 7:
		return 8, true
	case ptr >= 8 && ptr <= 23:
		return 12, true
	case ptr >= 24 && ptr <= 39:
		return 16, true
	default:
		return 0, false
	}
}
