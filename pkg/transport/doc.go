// Package transport owns the UDP endpoint used to talk to LIFX devices.
//
// The transport layer handles:
//   - One UDP socket per endpoint, bound to an ephemeral or fixed port
//   - Unicast sends to known devices and subnet-broadcast sends for discovery
//   - Deadline-bounded receives that report timeouts as a non-fatal condition
//   - Enumeration of IPv4 subnet broadcast addresses
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   LIFX packets (pkg/wire)      │
//	├────────────────────────────────┤
//	│         UDP port 56700         │
//	├────────────────────────────────┤
//	│           IPv4                 │
//	└────────────────────────────────┘
//
// The endpoint performs no interpretation of the bytes it carries; retry
// and correlation policy live in the session layer so the socket layer can
// be swapped independently.
//
// Devices listen on UDP port 56700. Discovery packets go to every subnet
// broadcast address of the up, non-loopback IPv4 interfaces; addressed
// commands go to a device's last-known unicast address.
package transport
