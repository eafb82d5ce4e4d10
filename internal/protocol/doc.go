// Package protocol implements the i-PRO Easy IP Setup wire protocol.
//
// i-PRO (formerly Panasonic) cameras and recorders answer a vendor
// specific UDP broadcast on port 10670. The search request is a fixed
// 94-byte frame reconstructed from packet captures of the official
// Easy IP Setup Tool; responses carry a fixed preamble followed by
// big-endian TLV records describing the device's identity and network
// configuration.
//
// # Frame layout
//
// Search request (94 bytes, all multi-byte fields big-endian):
//
//	[0:4]    header      protocol id 0x0001 + message type
//	[4:12]   command     discovery command constant
//	[12:18]  source MAC
//	[18:22]  source IPv4
//	[22:33]  flag segment (constant)
//	[33:37]  critical segment - third byte is the device-class filter;
//	         it must be 0x02 or recorders will not answer
//	[37:48]  zero pad
//	[48:50]  category filter 0xfff0 (all device classes)
//	[50:90]  twenty 2-byte requested tag codes
//	[90:92]  tag list terminator 0xffff
//	[92:94]  trailer 0x1170
//
// Search response: preamble with the protocol id at offset 0, the
// message type at offset 2 and the responding device's MAC at offset
// 6; TLV records (tag u16, length u16, value) start at offset 0x30 and
// run until the 0xffff terminator or the end of the frame.
//
// The package is pure: building and parsing frames never touches the
// network. See the discovery package for the broadcast session.
package protocol
